package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestJSONRenderer(t *testing.T) {
	buf := &bytes.Buffer{}
	renderer := NewJSON(buf)
	if err := renderer.RenderResult(sampleResult()); err != nil {
		t.Fatalf("render json: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded["job"] != "deploy" || decoded["success"] != false {
		t.Fatalf("unexpected result %v", decoded)
	}
	steps, ok := decoded["run_results"].([]any)
	if !ok || len(steps) != 2 {
		t.Fatalf("expected two run results, got %v", decoded["run_results"])
	}
	if decoded["duration"] != 2.0 {
		t.Fatalf("expected duration in seconds, got %v", decoded["duration"])
	}
}

func TestJSONRendererNormalizesDocuments(t *testing.T) {
	var doc any
	if err := yaml.Unmarshal([]byte("ports:\n  80: http\n  443: https\n"), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	buf := &bytes.Buffer{}
	if err := NewJSON(buf).RenderDocument(doc); err != nil {
		t.Fatalf("render document: %v", err)
	}
	if !strings.Contains(buf.String(), `"80": "http"`) {
		t.Fatalf("expected integer keys formatted, got %s", buf.String())
	}
}

func TestYAMLRenderer(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewYAML(buf).RenderList([]ListEntry{{Key: "check", Location: "https://x/check.yaml", Remote: true}}); err != nil {
		t.Fatalf("render yaml: %v", err)
	}
	want := "- key: check\n  location: https://x/check.yaml\n  remote: true\n"
	if buf.String() != want {
		t.Fatalf("expected %q, got %q", want, buf.String())
	}
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := New("xml", &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	for _, format := range []string{"", "pretty", "JSON", "yaml"} {
		if _, err := New(format, &bytes.Buffer{}); err != nil {
			t.Fatalf("New(%q): %v", format, err)
		}
	}
}
