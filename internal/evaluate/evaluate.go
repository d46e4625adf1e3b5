// Package evaluate applies a run item's test cases to a step result.
package evaluate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ghowland/runman/internal/logging"
	"github.com/ghowland/runman/internal/report"
	"github.com/ghowland/runman/internal/spec"
	"github.com/shopspring/decimal"
)

// Evaluator runs test cases and logs their success and failure messages.
type Evaluator struct {
	logger *slog.Logger
}

// New creates an Evaluator logging through logger.
func New(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Evaluator{logger: logger}
}

// Evaluate runs the test cases of item whose phase matches the step's
// completion state, in declaration order, and records the outcome on step.
// A failing critical test stops evaluation; a failing warning test does not.
// The step succeeds when no produced test result failed.
//
// A test referring to an unknown key or an undefined function is a configuration
// error and is returned as such.
func (e *Evaluator) Evaluate(item spec.RunItem, step *report.StepResult) ([]report.TestResult, error) {
	phase := spec.WhenDuring
	if step.Completed() {
		phase = spec.WhenFinished
	}

	results := make([]report.TestResult, 0, len(item.Tests))
	fields := step.Fields()

	for idx, tc := range item.Tests {
		if tc.Phase() != phase {
			continue
		}
		if !spec.IsEquality(tc.Function) {
			return nil, &spec.ConfigError{
				Source:   fmt.Sprintf("test %d", idx+1),
				Problems: []string{fmt.Sprintf("unknown function %q", tc.Function)},
			}
		}
		actual, ok := step.Field(tc.Key)
		if !ok {
			return nil, &spec.ConfigError{
				Source:   fmt.Sprintf("test %d", idx+1),
				Problems: []string{fmt.Sprintf("step result has no key %q", tc.Key)},
			}
		}

		res := report.TestResult{Key: tc.Key, Success: Equal(actual, tc.Value)}
		if res.Success {
			if tc.LogSuccess != "" {
				res.Log = e.render(tc.LogSuccess, fields)
				e.logger.Info(res.Log, "key", tc.Key, "result", "success")
			}
			results = append(results, res)
			continue
		}

		if tc.LogFailure != "" {
			res.Log = e.render(tc.LogFailure, fields)
			e.logger.Warn(res.Log, "key", tc.Key, "result", "failure", "critical", tc.Critical)
		}
		if tc.Critical {
			res.Critical = true
			results = append(results, res)
			break
		}
		res.Warning = tc.Warning
		results = append(results, res)
	}

	step.TestResults = results
	step.Success = true
	for _, res := range results {
		if !res.Success {
			step.Success = false
			break
		}
	}
	return results, nil
}

func (e *Evaluator) render(text string, fields map[string]any) string {
	msg, err := spec.Render("log", text, fields)
	if err != nil {
		e.logger.Warn("render test log message failed", "error", err)
		return text
	}
	return msg
}

// Equal compares a step result value with an expected test value. When either
// side is a number both are compared numerically; otherwise their string forms
// must match exactly.
func Equal(actual, expected any) bool {
	if isNumber(actual) || isNumber(expected) {
		a, okA := toDecimal(actual)
		b, okB := toDecimal(expected)
		if okA && okB {
			return a.Equal(b)
		}
	}
	return stringify(actual) == stringify(expected)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number, decimal.Decimal:
		return true
	}
	return false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int8:
		return decimal.NewFromInt(int64(n)), true
	case int16:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint:
		return decimal.NewFromInt(int64(n)), true
	case uint8:
		return decimal.NewFromInt(int64(n)), true
	case uint16:
		return decimal.NewFromInt(int64(n)), true
	case uint32:
		return decimal.NewFromInt(int64(n)), true
	case uint64:
		d, err := decimal.NewFromString(strconv.FormatUint(n, 10))
		return d, err == nil
	case float32:
		return decimal.NewFromFloat32(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case decimal.Decimal:
		return n, true
	case string:
		d, err := decimal.NewFromString(n)
		return d, err == nil
	}
	return decimal.Zero, false
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case time.Time:
		return s.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
