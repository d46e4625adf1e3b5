package input

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ghowland/runman/internal/spec"
	"github.com/shopspring/decimal"
)

func bound(raw string) spec.Bound {
	return spec.Bound{Raw: raw, Set: true}
}

func TestValidateBoundaries(t *testing.T) {
	cases := []struct {
		name  string
		field spec.InputField
		raw   any
		ok    bool
	}{
		{"integer below min", spec.InputField{Type: spec.TypeInteger, Min: bound("5")}, 4, false},
		{"integer at min", spec.InputField{Type: spec.TypeInteger, Min: bound("5")}, 5, true},
		{"integer at max", spec.InputField{Type: spec.TypeInteger, Max: bound("10")}, "10", true},
		{"integer above max", spec.InputField{Type: spec.TypeInteger, Max: bound("10")}, "11", false},
		{"integer non numeric", spec.InputField{Type: spec.TypeInteger}, "ten", false},
		{"integer fractional", spec.InputField{Type: spec.TypeInteger}, 2.5, false},
		{"integer json number", spec.InputField{Type: spec.TypeInteger}, json.Number("42"), true},
		{"text too short", spec.InputField{Type: spec.TypeText, Min: bound("3")}, "ab", false},
		{"text at min", spec.InputField{Type: spec.TypeText, Min: bound("3")}, "abc", true},
		{"text too long", spec.InputField{Type: spec.TypeText, Max: bound("2")}, "abc", false},
		{"text counts runes", spec.InputField{Type: spec.TypeText, Max: bound("4")}, "café", true},
		{"text regex anywhere", spec.InputField{Type: spec.TypeText, Regex: "[0-9]+"}, "web01", true},
		{"text regex miss", spec.InputField{Type: spec.TypeText, Regex: "^[0-9]+$"}, "web01", false},
		{"text from number", spec.InputField{Type: spec.TypeText, Min: bound("2")}, 42, true},
		{"decimal within", spec.InputField{Type: spec.TypeDecimal, Min: bound("0.1"), Max: bound("1.5")}, "1.50", true},
		{"decimal above max", spec.InputField{Type: spec.TypeDecimal, Max: bound("1.5")}, "1.5000001", false},
		{"decimal below min", spec.InputField{Type: spec.TypeDecimal, Min: bound("0.1")}, 0.09, false},
		{"decimal garbage", spec.InputField{Type: spec.TypeDecimal}, "1.2.3", false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Validate("f", c.field, c.raw)
			if c.ok && err != nil {
				t.Fatalf("expected accept, got %v", err)
			}
			if !c.ok {
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
			}
		})
	}
}

func TestValidateTypedResults(t *testing.T) {
	v, err := Validate("n", spec.InputField{Type: spec.TypeInteger}, " 7 ")
	if err != nil || v != int64(7) {
		t.Fatalf("expected int64 7, got %v (%T), %v", v, v, err)
	}

	d, err := Validate("d", spec.InputField{Type: spec.TypeDecimal}, json.Number("0.1"))
	if err != nil {
		t.Fatalf("decimal: %v", err)
	}
	dec, ok := d.(decimal.Decimal)
	if !ok || !dec.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("expected exact decimal 0.1, got %v", d)
	}
	sum := dec.Add(decimal.RequireFromString("0.2"))
	if sum.String() != "0.3" {
		t.Fatalf("expected exact arithmetic, got %s", sum)
	}
}

func TestValidateSpecErrors(t *testing.T) {
	for _, field := range []spec.InputField{{}, {Type: "float"}} {
		_, err := Validate("x", field, "1")
		var cfgErr *spec.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigError for %+v, got %v", field, err)
		}
	}
}
