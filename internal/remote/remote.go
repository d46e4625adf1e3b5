// Package remote talks to the coordinator's job_get and job_report endpoints.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ghowland/runman/internal/logging"
	"github.com/ghowland/runman/internal/spec"
)

// ErrMalformedResponse is returned when the job_get body cannot be decoded.
var ErrMalformedResponse = errors.New("malformed job_get response")

// ErrTransport marks a job_get call that did not complete: the coordinator was
// unreachable or answered with a non-2xx status.
var ErrTransport = errors.New("job_get transport failure")

const maxBodyBytes = 16 << 20

// JobRequest is one unit of work handed out by the coordinator.
type JobRequest struct {
	ID            string `json:"id"`
	JobKey        string `json:"job_key"`
	Digest        string `json:"job_data_server_md5_digest"`
	InputDataJSON string `json:"input_data_json"`
}

// UnmarshalJSON accepts numeric or string ids, and input data given either as
// JSON-encoded text or as an inline object.
func (r *JobRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        json.RawMessage `json:"id"`
		JobKey    string          `json:"job_key"`
		Digest    string          `json:"job_data_server_md5_digest"`
		InputData json.RawMessage `json:"input_data_json"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := scalarText(raw.ID)
	if err != nil {
		return fmt.Errorf("job request id: %w", err)
	}
	input, err := scalarText(raw.InputData)
	if err != nil {
		return fmt.Errorf("job request input_data_json: %w", err)
	}
	*r = JobRequest{ID: id, JobKey: raw.JobKey, Digest: raw.Digest, InputDataJSON: input}
	return nil
}

// Input decodes the pre-supplied input data. Absent or null data yields an
// empty map.
func (r JobRequest) Input() (map[string]any, error) {
	text := strings.TrimSpace(r.InputDataJSON)
	if text == "" || text == "null" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode input data for request %s: %w", r.ID, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func scalarText(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(trimmed), nil
}

// Client performs the coordinator calls described by a websource.
type Client struct {
	source spec.WebSource
	http   *http.Client
	logger *slog.Logger
}

// New creates a client. A nil httpClient gets a 60 second timeout; a nil
// logger discards.
func New(source spec.WebSource, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{source: source, http: httpClient, logger: logger}
}

// Fetch asks job_get for the work pending for hostname. Transport failures and
// non-2xx responses yield an empty job list together with an error wrapping
// ErrTransport, so callers run nothing but still count the failed poll. A body
// that is not the expected envelope returns ErrMalformedResponse.
func (c *Client) Fetch(ctx context.Context, hostname string) ([]JobRequest, error) {
	body, err := c.call(ctx, c.source.JobGet, url.Values{"hostname": {hostname}})
	if err != nil {
		c.logger.Debug("fetch jobs failed", "url", c.source.JobGet.URL, "error", err)
		return []JobRequest{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	jobs, err := DecodeJobs(body)
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// DecodeJobs decodes a job_get body shaped {"jobs": "<JSON array>"}. The inner
// array may also be given directly.
func DecodeJobs(body []byte) ([]JobRequest, error) {
	var envelope struct {
		Jobs json.RawMessage `json:"jobs"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	raw := bytes.TrimSpace(envelope.Jobs)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		raw = bytes.TrimSpace([]byte(inner))
		if len(raw) == 0 {
			return nil, nil
		}
	}
	var jobs []JobRequest
	if err := json.Unmarshal(raw, &jobs); err != nil {
		return nil, fmt.Errorf("%w: jobs: %v", ErrMalformedResponse, err)
	}
	return jobs, nil
}

// Report sends data for request id to job_report. Transport failures are
// logged and swallowed; only an unencodable payload is an error.
func (c *Client) Report(ctx context.Context, id string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode report for request %s: %w", id, err)
	}
	body, err := c.call(ctx, c.source.JobReport, url.Values{"id": {id}, "data": {string(payload)}})
	if err != nil {
		c.logger.Warn("report failed", "id", id, "url", c.source.JobReport.URL, "error", err)
		return nil
	}
	c.logger.Debug("report sent", "id", id, "response", strings.TrimSpace(string(body)))
	return nil
}

func (c *Client) call(ctx context.Context, ep spec.Endpoint, args url.Values) ([]byte, error) {
	req, err := newRequest(ctx, ep, args)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s failed (%d): %s", req.Method, ep.URL, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func newRequest(ctx context.Context, ep spec.Endpoint, args url.Values) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(ep.Method))
	if method == "" {
		method = http.MethodPost
	}

	var (
		req *http.Request
		err error
	)
	switch method {
	case http.MethodGet:
		u, perr := url.Parse(ep.URL)
		if perr != nil {
			return nil, fmt.Errorf("parse url %q: %w", ep.URL, perr)
		}
		q := u.Query()
		for k, vs := range args {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	case http.MethodPost, http.MethodPut:
		req, err = http.NewRequestWithContext(ctx, method, ep.URL, strings.NewReader(args.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	default:
		return nil, fmt.Errorf("unsupported method %q for %s", ep.Method, ep.URL)
	}
	if err != nil {
		return nil, err
	}

	if ep.Username != "" {
		req.SetBasicAuth(ep.Username, ep.Password)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}
