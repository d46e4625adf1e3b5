package spec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Validate checks the structural invariants of a job spec: known input
// types, parseable bounds and regexes, collect groups referring to declared
// inputs, command templates referring only to declared inputs, and well formed
// test cases. Every problem found is reported in a single ConfigError.
func (j *Job) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	for _, name := range j.InputKeys() {
		for _, p := range validateField(j.Input[name]) {
			add("input %q: %s", name, p)
		}
	}

	for gi, group := range j.Collect {
		for _, name := range group.Set {
			if _, ok := j.Input[name]; !ok {
				add("collect group %d (%s): field %q is not declared in input", gi+1, group.Heading(), name)
			}
		}
	}

	if len(j.Run) == 0 {
		add("run: no platforms declared")
	}
	for _, platform := range j.Platforms() {
		for idx, item := range j.Run[platform] {
			where := fmt.Sprintf("run %s[%d]", platform, idx)
			if strings.TrimSpace(item.Execute) == "" {
				add("%s: empty execute", where)
				continue
			}
			tmpl, err := ParseTemplate(where, item.Execute)
			if err != nil {
				add("%s: %v", where, err)
				continue
			}
			for _, field := range TemplateFields(tmpl) {
				if _, ok := j.Input[field]; !ok {
					add("%s: placeholder %q is not declared in input", where, field)
				}
			}
			for ti, tc := range item.Tests {
				for _, p := range validateTest(tc) {
					add("%s test %d: %s", where, ti+1, p)
				}
			}
		}
	}

	if len(problems) > 0 {
		return &ConfigError{Source: j.Source, Problems: problems}
	}
	return nil
}

func validateField(f InputField) []string {
	var problems []string
	switch f.Type {
	case "":
		return []string{"missing type"}
	case TypeText:
		lo, errLo := parseIntBound(f.Min)
		hi, errHi := parseIntBound(f.Max)
		for _, err := range []error{errLo, errHi} {
			if err != nil {
				problems = append(problems, err.Error())
			}
		}
		if errLo == nil && errHi == nil && f.Min.Set && f.Max.Set && lo > hi {
			problems = append(problems, fmt.Sprintf("min length %d exceeds max length %d", lo, hi))
		}
		if f.Regex != "" {
			if _, err := regexp.Compile(f.Regex); err != nil {
				problems = append(problems, fmt.Sprintf("regex: %v", err))
			}
		}
	case TypeInteger:
		lo, errLo := parseIntBound(f.Min)
		hi, errHi := parseIntBound(f.Max)
		for _, err := range []error{errLo, errHi} {
			if err != nil {
				problems = append(problems, err.Error())
			}
		}
		if errLo == nil && errHi == nil && f.Min.Set && f.Max.Set && lo > hi {
			problems = append(problems, fmt.Sprintf("min %d exceeds max %d", lo, hi))
		}
	case TypeDecimal:
		lo, errLo := parseDecimalBound(f.Min)
		hi, errHi := parseDecimalBound(f.Max)
		for _, err := range []error{errLo, errHi} {
			if err != nil {
				problems = append(problems, err.Error())
			}
		}
		if errLo == nil && errHi == nil && f.Min.Set && f.Max.Set && lo.GreaterThan(hi) {
			problems = append(problems, fmt.Sprintf("min %s exceeds max %s", lo, hi))
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown type %q", f.Type))
	}
	return problems
}

func validateTest(tc TestCase) []string {
	var problems []string
	switch tc.Phase() {
	case WhenDuring, WhenFinished:
	default:
		problems = append(problems, fmt.Sprintf("unknown when %q", tc.When))
	}
	if strings.TrimSpace(tc.Key) == "" {
		problems = append(problems, "missing key")
	}
	if !IsEquality(tc.Function) {
		problems = append(problems, fmt.Sprintf("unknown function %q", tc.Function))
	}
	for _, text := range []string{tc.LogSuccess, tc.LogFailure} {
		if text == "" {
			continue
		}
		if _, err := ParseTemplate(tc.Key, text); err != nil {
			problems = append(problems, err.Error())
		}
	}
	return problems
}

// IntBound parses an integer bound; ok is false when the bound is unset.
func IntBound(b Bound) (v int64, ok bool, err error) {
	if !b.Set {
		return 0, false, nil
	}
	v, err = parseIntBound(b)
	return v, err == nil, err
}

// DecimalBound parses a decimal bound; ok is false when the bound is unset.
func DecimalBound(b Bound) (v decimal.Decimal, ok bool, err error) {
	if !b.Set {
		return decimal.Zero, false, nil
	}
	v, err = parseDecimalBound(b)
	return v, err == nil, err
}

func parseIntBound(b Bound) (int64, error) {
	if !b.Set {
		return 0, nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(b.Raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bound %q is not an integer", b.Raw)
	}
	return v, nil
}

func parseDecimalBound(b Bound) (decimal.Decimal, error) {
	if !b.Set {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(strings.TrimSpace(b.Raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("bound %q is not a decimal", b.Raw)
	}
	return v, nil
}
