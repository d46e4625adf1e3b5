package input

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ghowland/runman/internal/spec"
	"github.com/shopspring/decimal"
)

// Values holds validated input keyed by field name. Each value is a string,
// an int64 or a decimal.Decimal, according to the field's declared type.
type Values map[string]any

// Map returns the values as template render data.
func (v Values) Map() map[string]any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// ValidationError reports a value rejected by its field descriptor.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("input %q: %s (got %v)", e.Field, e.Reason, e.Value)
}

// Validate coerces raw to the field's declared type and applies its
// constraints. An unknown or missing type is a configuration error.
func Validate(name string, field spec.InputField, raw any) (any, error) {
	reject := func(format string, args ...any) error {
		return &ValidationError{Field: name, Value: raw, Reason: fmt.Sprintf(format, args...)}
	}

	switch field.Type {
	case spec.TypeText:
		s, ok := coerceText(raw)
		if !ok {
			return nil, reject("not a text value")
		}
		n := int64(utf8.RuneCountInString(s))
		if lo, ok, err := spec.IntBound(field.Min); err != nil {
			return nil, specError(name, err)
		} else if ok && n < lo {
			return nil, reject("length %d is below minimum %d", n, lo)
		}
		if hi, ok, err := spec.IntBound(field.Max); err != nil {
			return nil, specError(name, err)
		} else if ok && n > hi {
			return nil, reject("length %d exceeds maximum %d", n, hi)
		}
		if field.Regex != "" {
			re, err := regexp.Compile(field.Regex)
			if err != nil {
				return nil, specError(name, err)
			}
			if !re.MatchString(s) {
				return nil, reject("does not match %q", field.Regex)
			}
		}
		return s, nil

	case spec.TypeInteger:
		v, err := coerceInteger(raw)
		if err != nil {
			return nil, reject("%v", err)
		}
		if lo, ok, err := spec.IntBound(field.Min); err != nil {
			return nil, specError(name, err)
		} else if ok && v < lo {
			return nil, reject("below minimum %d", lo)
		}
		if hi, ok, err := spec.IntBound(field.Max); err != nil {
			return nil, specError(name, err)
		} else if ok && v > hi {
			return nil, reject("exceeds maximum %d", hi)
		}
		return v, nil

	case spec.TypeDecimal:
		v, err := coerceDecimal(raw)
		if err != nil {
			return nil, reject("%v", err)
		}
		if lo, ok, err := spec.DecimalBound(field.Min); err != nil {
			return nil, specError(name, err)
		} else if ok && v.LessThan(lo) {
			return nil, reject("below minimum %s", lo)
		}
		if hi, ok, err := spec.DecimalBound(field.Max); err != nil {
			return nil, specError(name, err)
		} else if ok && v.GreaterThan(hi) {
			return nil, reject("exceeds maximum %s", hi)
		}
		return v, nil

	case "":
		return nil, specError(name, fmt.Errorf("missing type"))
	default:
		return nil, specError(name, fmt.Errorf("unknown type %q", field.Type))
	}
}

func specError(name string, err error) error {
	return &spec.ConfigError{Source: "input " + name, Problems: []string{err.Error()}}
}

func coerceText(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case map[string]any, []any:
		return "", false
	default:
		return fmt.Sprint(v), true
	}
}

func coerceInteger(raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("integer out of range")
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("not an integer")
		}
		if v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, fmt.Errorf("integer out of range")
		}
		return int64(v), nil
	case json.Number:
		return parseInteger(v.String())
	case decimal.Decimal:
		if !v.IsInteger() {
			return 0, fmt.Errorf("not an integer")
		}
		return v.IntPart(), nil
	case string:
		return parseInteger(v)
	default:
		return 0, fmt.Errorf("not an integer")
	}
}

func parseInteger(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	return v, nil
}

func coerceDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, fmt.Errorf("not a decimal")
		}
		return decimal.NewFromFloat(v), nil
	case json.Number:
		return parseDecimal(v.String())
	case decimal.Decimal:
		return v, nil
	case string:
		return parseDecimal(v)
	default:
		return decimal.Zero, fmt.Errorf("not a decimal")
	}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a decimal")
	}
	return v, nil
}
