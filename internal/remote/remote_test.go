package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ghowland/runman/internal/spec"
)

func jobsBody(t *testing.T, jobs []map[string]any) string {
	t.Helper()
	inner, err := json.Marshal(jobs)
	if err != nil {
		t.Fatalf("marshal jobs: %v", err)
	}
	outer, err := json.Marshal(map[string]string{"jobs": string(inner)})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return string(outer)
}

func TestFetchDecodesNestedJobs(t *testing.T) {
	var gotHost, gotUser, gotPass string
	var gotOK bool
	body := jobsBody(t, []map[string]any{
		{"id": 7, "job_key": "deploy", "job_data_server_md5_digest": "abc", "input_data_json": `{"port": 8080}`},
		{"id": "x-2", "job_key": "check", "job_data_server_md5_digest": "def"},
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotHost = r.PostForm.Get("hostname")
		gotUser, gotPass, gotOK = r.BasicAuth()
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := New(spec.WebSource{JobGet: spec.Endpoint{URL: srv.URL, Username: "agent", Password: "secret"}}, srv.Client(), nil)
	jobs, err := c.Fetch(context.Background(), "web01")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotHost != "web01" || !gotOK || gotUser != "agent" || gotPass != "secret" {
		t.Fatalf("unexpected request host=%q auth=%v %q/%q", gotHost, gotOK, gotUser, gotPass)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != "7" || jobs[0].JobKey != "deploy" || jobs[0].Digest != "abc" {
		t.Fatalf("unexpected first job %+v", jobs[0])
	}
	if jobs[1].ID != "x-2" || jobs[1].InputDataJSON != "" {
		t.Fatalf("unexpected second job %+v", jobs[1])
	}

	input, err := jobs[0].Input()
	if err != nil {
		t.Fatalf("Input: %v", err)
	}
	if input["port"] != json.Number("8080") {
		t.Fatalf("expected exact port number, got %#v", input["port"])
	}
	empty, err := jobs[1].Input()
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty input, got %v %v", empty, err)
	}
}

func TestFetchGetUsesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Query().Get("hostname") != "db1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
		}
		_, _ = w.Write([]byte(`{"jobs": "[]"}`))
	}))
	defer srv.Close()

	c := New(spec.WebSource{JobGet: spec.Endpoint{URL: srv.URL + "/jobs?team=ops", Method: "get"}}, srv.Client(), nil)
	jobs, err := c.Fetch(context.Background(), "db1")
	if err != nil || len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %v %v", jobs, err)
	}
}

func TestFetchTransportFailuresYieldNoJobs(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer failing.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	for _, u := range []string{failing.URL, closedURL} {
		c := New(spec.WebSource{JobGet: spec.Endpoint{URL: u}}, nil, nil)
		jobs, err := c.Fetch(context.Background(), "h")
		if !errors.Is(err, ErrTransport) {
			t.Fatalf("expected ErrTransport for %s, got %v", u, err)
		}
		if jobs == nil || len(jobs) != 0 {
			t.Fatalf("expected empty job list for %s, got %#v", u, jobs)
		}
	}
}

func TestDecodeJobs(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{name: "empty list fallback", body: `{"jobs":[]}`},
		{name: "empty string", body: `{"jobs":""}`},
		{name: "missing", body: `{}`},
		{name: "inline array", body: `{"jobs":[{"id":1,"job_key":"a"}]}`, want: 1},
		{name: "not json", body: `<html>`, wantErr: true},
		{name: "bad inner", body: `{"jobs":"[{"}`, wantErr: true},
		{name: "wrong shape", body: `{"jobs":"{\"id\":1}"}`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			jobs, err := DecodeJobs([]byte(tc.body))
			if tc.wantErr {
				if !errors.Is(err, ErrMalformedResponse) {
					t.Fatalf("expected ErrMalformedResponse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeJobs: %v", err)
			}
			if len(jobs) != tc.want {
				t.Fatalf("expected %d jobs, got %d", tc.want, len(jobs))
			}
		})
	}
}

func TestReportPostsIDAndData(t *testing.T) {
	var mu sync.Mutex
	var gotID, gotData string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		mu.Lock()
		gotID, gotData = r.PostForm.Get("id"), r.PostForm.Get("data")
		mu.Unlock()
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(spec.WebSource{JobReport: spec.Endpoint{URL: srv.URL}}, srv.Client(), nil)
	if err := c.Report(context.Background(), "7", map[string]string{"job_data_remote_md5_digest": "abc"}); err != nil {
		t.Fatalf("Report: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotID != "7" || gotData != `{"job_data_remote_md5_digest":"abc"}` {
		t.Fatalf("unexpected report id=%q data=%q", gotID, gotData)
	}
}

func TestReportSwallowsTransportFailure(t *testing.T) {
	c := New(spec.WebSource{JobReport: spec.Endpoint{URL: "http://127.0.0.1:1/report"}}, nil, nil)
	if err := c.Report(context.Background(), "1", map[string]any{}); err != nil {
		t.Fatalf("expected transport failure to be swallowed, got %v", err)
	}
}
