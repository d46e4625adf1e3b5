package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

type printOutput struct {
	Jobs      map[string]map[string]any `json:"jobs"`
	WebSource map[string]map[string]any `json:"websource"`
	Errors    map[string]string         `json:"errors"`
}

func TestPrintCommandJSON(t *testing.T) {
	chdir(t, projectRoot(t))

	out, _, err := execute(t, "", "print", "testdata/runspec.yaml", "--format", "json")
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}

	var doc printOutput
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(doc.Errors) != 0 {
		t.Fatalf("unexpected errors %v", doc.Errors)
	}
	if len(doc.Jobs) != 2 || doc.Jobs["hello"]["name"] != "Say hello" {
		t.Fatalf("unexpected jobs %v", doc.Jobs)
	}
	if got := doc.WebSource["job_get"]["password"]; got != maskedPassword {
		t.Fatalf("expected masked password, got %v", got)
	}
	if got := doc.WebSource["job_get"]["username"]; got != "agent" {
		t.Fatalf("expected username to be kept, got %v", got)
	}
}

func TestPrintCommandCollectsLoadErrors(t *testing.T) {
	root := projectRoot(t)
	tmp := t.TempDir()
	runspec := []byte("jobs:\n  hello: " + filepath.Join(root, "testdata", "jobs", "hello.yaml") + "\n  gone: missing.yaml\n")
	if err := os.WriteFile(filepath.Join(tmp, "runspec.yaml"), runspec, 0o644); err != nil {
		t.Fatalf("write run spec: %v", err)
	}
	chdir(t, tmp)

	out, _, err := execute(t, "", "print", "runspec.yaml", "--format", "json")
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}

	var doc printOutput
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if _, ok := doc.Errors["gone"]; !ok {
		t.Fatalf("expected load error for gone, got %v", doc.Errors)
	}
	if _, ok := doc.Jobs["hello"]; !ok || len(doc.Jobs) != 1 {
		t.Fatalf("expected only hello to load, got %v", doc.Jobs)
	}
	if doc.WebSource != nil {
		t.Fatalf("expected no websource, got %v", doc.WebSource)
	}
}
