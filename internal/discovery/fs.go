package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoJobs indicates that a run spec declares no jobs.
var ErrNoJobs = errors.New("no jobs declared")

// Location identifies where a job or websource document lives. Exactly one of
// Path and URL is set.
type Location struct {
	Raw  string `json:"raw" yaml:"raw"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
}

// String returns the resolved path or URL.
func (l Location) String() string {
	if l.URL != "" {
		return l.URL
	}
	return l.Path
}

// Remote reports whether the document must be fetched over HTTP.
func (l Location) Remote() bool {
	return l.URL != ""
}

// Resolve turns a document reference into a Location. Relative paths are
// resolved against root; file:// URIs become paths; http(s) URIs are kept.
func Resolve(root, raw string) (Location, error) {
	ref := strings.TrimSpace(raw)
	if ref == "" {
		return Location{}, fmt.Errorf("empty document location")
	}

	if strings.Contains(ref, "://") {
		u, err := url.Parse(ref)
		if err != nil {
			return Location{}, fmt.Errorf("parse location %q: %w", raw, err)
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return Location{Raw: raw, URL: u.String()}, nil
		case "file":
			ref = u.Path
		default:
			return Location{}, fmt.Errorf("unsupported location scheme %q in %q", u.Scheme, raw)
		}
	}

	if !filepath.IsAbs(ref) {
		ref = filepath.Join(root, ref)
	}
	return Location{Raw: raw, Path: filepath.Clean(ref)}, nil
}

// Jobs resolves every job location of a run spec, keyed by job key.
func Jobs(root string, locations map[string]string) (map[string]Location, error) {
	if len(locations) == 0 {
		return nil, ErrNoJobs
	}
	keys := make([]string, 0, len(locations))
	for k := range locations {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	resolved := make(map[string]Location, len(locations))
	for _, key := range keys {
		loc, err := Resolve(root, locations[key])
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", key, err)
		}
		resolved[key] = loc
	}
	return resolved, nil
}

// Reader loads documents from disk or over HTTP.
type Reader struct {
	Client *http.Client
}

// Read returns the raw bytes of the document at loc.
func (r Reader) Read(ctx context.Context, loc Location) ([]byte, error) {
	if loc.Remote() {
		return r.fetch(ctx, loc)
	}

	info, err := os.Stat(loc.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("document %q not found", loc.Raw)
		}
		return nil, fmt.Errorf("stat %q: %w", loc.Raw, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("document %q is a directory", loc.Raw)
	}
	data, err := os.ReadFile(loc.Path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", loc.Raw, err)
	}
	return data, nil
}

func (r Reader) fetch(ctx context.Context, loc Location) ([]byte, error) {
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %q: %w", loc.Raw, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", loc.Raw, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %q: unexpected status %d", loc.Raw, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", loc.Raw, err)
	}
	return data, nil
}
