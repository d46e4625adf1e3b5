// Package input resolves and validates the input a job needs before it runs.
package input

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ghowland/runman/internal/logging"
	"github.com/ghowland/runman/internal/spec"
)

// UnresolvableError reports required fields that could not be obtained
// without prompting.
type UnresolvableError struct {
	Job     string
	Missing []string
}

func (e *UnresolvableError) Error() string {
	return fmt.Sprintf("job %q: missing input %s and interactive collection is disabled", e.Job, strings.Join(e.Missing, ", "))
}

// Resolver merges direct input, an optional input file and interactive
// prompts into validated values.
type Resolver struct {
	Prompter Prompter
	Logger   *slog.Logger
}

// NewResolver creates a Resolver. A nil prompter makes every resolution
// non-interactive.
func NewResolver(prompter Prompter, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Resolver{Prompter: prompter, Logger: logger}
}

// Resolve returns validated values for every field the job declares.
//
// Direct values always win over the input file: file entries only fill keys
// that are still absent. Fields still missing afterwards are prompted for,
// unless nonInteractive is set, in which case an UnresolvableError names them.
func (r *Resolver) Resolve(job *spec.Job, direct map[string]any, file string, nonInteractive bool) (Values, error) {
	working := make(map[string]any, len(direct))
	for k, v := range direct {
		working[k] = v
	}

	if file != "" {
		fromFile, err := LoadFile(file)
		if err != nil {
			return nil, err
		}
		for k, v := range fromFile {
			if _, ok := working[k]; ok {
				r.Logger.Debug("input file value overridden by direct input", "field", k)
				continue
			}
			working[k] = v
		}
	}

	values := make(Values, len(job.Input))
	var missing []string
	for _, name := range job.InputKeys() {
		raw, ok := working[name]
		if !ok || raw == nil {
			missing = append(missing, name)
			continue
		}
		v, err := Validate(name, job.Input[name], raw)
		if err != nil {
			return nil, err
		}
		values[name] = v
	}

	for k := range working {
		if _, ok := job.Input[k]; !ok {
			r.Logger.Debug("ignoring undeclared input", "job", job.Key, "field", k)
		}
	}

	if len(missing) > 0 {
		if nonInteractive || r.Prompter == nil {
			return nil, &UnresolvableError{Job: job.Key, Missing: missing}
		}
		if err := r.collect(job, values, missing); err != nil {
			return nil, err
		}
	}

	for _, name := range job.InputKeys() {
		if _, ok := values[name]; !ok {
			return nil, fmt.Errorf("input %q still unresolved after collection", name)
		}
	}
	return values, nil
}

// collect prompts for the missing fields: first the fields that belong to no
// collect group, bare and in lexicographic order, then each group in
// declaration order behind its heading.
func (r *Resolver) collect(job *spec.Job, values Values, missing []string) error {
	grouped := map[string]struct{}{}
	for _, group := range job.Collect {
		for _, name := range group.Set {
			grouped[name] = struct{}{}
		}
	}

	var loose []string
	for _, name := range missing {
		if _, ok := grouped[name]; !ok {
			loose = append(loose, name)
		}
	}
	sort.Strings(loose)
	for _, name := range loose {
		if err := r.ask(job, name, values); err != nil {
			return err
		}
	}

	for _, group := range job.Collect {
		if heading := group.Heading(); heading != "" {
			if err := r.Prompter.Notice(heading); err != nil {
				return err
			}
		}
		for _, name := range group.Set {
			if _, ok := values[name]; ok {
				if err := r.Prompter.Notice(fmt.Sprintf("%s: already provided, skipping", name)); err != nil {
					return err
				}
				continue
			}
			if err := r.ask(job, name, values); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Resolver) ask(job *spec.Job, name string, values Values) error {
	field, ok := job.Input[name]
	if !ok {
		return fmt.Errorf("collect field %q is not declared in input", name)
	}
	answer, err := r.Prompter.Prompt(name)
	if err != nil {
		return err
	}
	v, err := Validate(name, field, answer)
	if err != nil {
		return err
	}
	values[name] = v
	return nil
}
