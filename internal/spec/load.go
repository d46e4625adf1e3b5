package spec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ghowland/runman/internal/discovery"
	"gopkg.in/yaml.v3"
)

// RunSpec maps job keys to job spec locations and optionally names the
// websource the client polls. It is loaded once and not mutated afterwards.
type RunSpec struct {
	Path string
	Dir  string
	Jobs map[string]discovery.Location

	// Document is the generic parse of the run spec.
	Document any

	reader    discovery.Reader
	webSource yaml.Node
}

type runSpecDocument struct {
	Jobs      map[string]string `yaml:"jobs"`
	WebSource yaml.Node         `yaml:"websource"`
}

// LoadRunSpec reads and parses the run spec at path. Job locations are
// resolved relative to the run spec's directory.
func LoadRunSpec(path string, reader discovery.Reader) (*RunSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("run spec %q does not exist", path)
		}
		return nil, fmt.Errorf("read run spec %q: %w", path, err)
	}
	return DecodeRunSpec(data, path, reader)
}

// DecodeRunSpec parses run spec bytes; path anchors relative job locations.
func DecodeRunSpec(data []byte, path string, reader discovery.Reader) (*RunSpec, error) {
	var doc runSpecDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse run spec %q: %w", path, err)
	}
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("parse run spec %q: %w", path, err)
	}

	dir := filepath.Dir(path)
	jobs, err := discovery.Jobs(dir, doc.Jobs)
	if err != nil {
		if errors.Is(err, discovery.ErrNoJobs) {
			return nil, &ConfigError{Source: path, Problems: []string{"no jobs declared"}}
		}
		return nil, &ConfigError{Source: path, Problems: []string{err.Error()}}
	}

	return &RunSpec{
		Path:      path,
		Dir:       dir,
		Jobs:      jobs,
		Document:  generic,
		reader:    reader,
		webSource: doc.WebSource,
	}, nil
}

// JobKeys returns the declared job keys, sorted.
func (r *RunSpec) JobKeys() []string {
	keys := make([]string, 0, len(r.Jobs))
	for k := range r.Jobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Location returns where the job spec for key lives.
func (r *RunSpec) Location(key string) (discovery.Location, error) {
	loc, ok := r.Jobs[key]
	if !ok {
		return discovery.Location{}, fmt.Errorf("%w: %s", ErrUnknownJob, key)
	}
	return loc, nil
}

// HasWebSource reports whether the run spec declares a websource block.
func (r *RunSpec) HasWebSource() bool {
	return r.webSource.Kind != 0
}

// LoadWebSource returns the websource, reading it from its own document when
// the run spec names a location rather than declaring it inline. The generic
// parse is returned alongside for display.
func (r *RunSpec) LoadWebSource(ctx context.Context) (*WebSource, any, error) {
	if !r.HasWebSource() {
		return nil, nil, &ConfigError{Source: r.Path, Problems: []string{"no websource block specified"}}
	}

	node := &r.webSource
	source := r.Path
	if node.Kind == yaml.ScalarNode {
		loc, err := discovery.Resolve(r.Dir, node.Value)
		if err != nil {
			return nil, nil, fmt.Errorf("websource: %w", err)
		}
		data, err := r.reader.Read(ctx, loc)
		if err != nil {
			return nil, nil, fmt.Errorf("load websource: %w", err)
		}
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, nil, fmt.Errorf("parse websource %q: %w", loc.Raw, err)
		}
		if len(doc.Content) == 0 {
			return nil, nil, &ConfigError{Source: loc.Raw, Problems: []string{"empty document"}}
		}
		node = doc.Content[0]
		source = loc.Raw
	}

	var ws WebSource
	if err := node.Decode(&ws); err != nil {
		return nil, nil, fmt.Errorf("parse websource %q: %w", source, err)
	}
	var generic any
	if err := node.Decode(&generic); err != nil {
		return nil, nil, fmt.Errorf("parse websource %q: %w", source, err)
	}

	var problems []string
	if strings.TrimSpace(ws.JobGet.URL) == "" {
		problems = append(problems, "job_get.url is required")
	}
	if strings.TrimSpace(ws.JobReport.URL) == "" {
		problems = append(problems, "job_report.url is required")
	}
	if len(problems) > 0 {
		return nil, nil, &ConfigError{Source: source, Problems: problems}
	}
	return &ws, generic, nil
}

// LoadJob reads, parses and validates the job spec registered under key.
func (r *RunSpec) LoadJob(ctx context.Context, key string) (*Job, error) {
	loc, err := r.Location(key)
	if err != nil {
		return nil, err
	}
	data, err := r.reader.Read(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("load job spec %q: %w", key, err)
	}
	job, err := DecodeJob(data, loc.Raw)
	if err != nil {
		return nil, err
	}
	job.Key = key
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// DecodeJob parses job spec bytes into both the typed and the generic view.
// It does not validate.
func DecodeJob(data []byte, source string) (*Job, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse job spec %q: %w", source, err)
	}
	if node.Kind == 0 {
		return nil, &ConfigError{Source: source, Problems: []string{"empty document"}}
	}
	resolveYAML11(&node)

	var generic any
	if err := node.Decode(&generic); err != nil {
		return nil, fmt.Errorf("parse job spec %q: %w", source, err)
	}
	if generic == nil {
		return nil, &ConfigError{Source: source, Problems: []string{"empty document"}}
	}
	var job Job
	if err := node.Decode(&job); err != nil {
		return nil, fmt.Errorf("parse job spec %q: %w", source, err)
	}
	job.Source = source
	job.Document = generic
	return &job, nil
}
