// Package digest computes content digests of parsed job definitions.
//
// The canonical form matches Python's json.dumps(obj, sort_keys=True): map keys
// sorted, ", " and ": " separators, non-ASCII escaped as \uXXXX. Coordinators
// that hash job documents that way produce the same digest as the agent.
package digest

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Compute returns the hex MD5 digest of the canonical encoding of doc.
func Compute(doc any) (string, error) {
	data, err := Canonical(doc)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// Canonical encodes v deterministically with sorted map keys.
func Canonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		writeString(buf, val)
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int8:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int16:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case uint:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint8:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint16:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
	case float32:
		buf.WriteString(formatFloat(float64(val)))
	case float64:
		buf.WriteString(formatFloat(val))
	case json.Number:
		return encodeNumber(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		return encodeObject(buf, keys, func(k string) any { return val[k] })
	case map[any]any:
		return encodeAnyMap(buf, val)
	default:
		return encodeReflect(buf, v)
	}
	return nil
}

// encodeAnyMap sorts by numeric value when every key is a number, as Python
// sorts int keys before stringifying them. Other key mixes sort as strings.
func encodeAnyMap(buf *bytes.Buffer, m map[any]any) error {
	byKey := make(map[string]any, len(m))
	keys := make([]string, 0, len(m))
	numeric := make(map[string]float64, len(m))
	allNumeric := true
	for k, item := range m {
		ks := keyString(k)
		byKey[ks] = item
		keys = append(keys, ks)
		if f, ok := numericKey(k); ok {
			numeric[ks] = f
		} else {
			allNumeric = false
		}
	}
	if allNumeric {
		sort.SliceStable(keys, func(i, j int) bool { return numeric[keys[i]] < numeric[keys[j]] })
	} else {
		sort.Strings(keys)
	}
	return writeObject(buf, keys, func(k string) any { return byKey[k] })
}

func numericKey(k any) (float64, bool) {
	switch key := k.(type) {
	case int:
		return float64(key), true
	case int64:
		return float64(key), true
	case uint64:
		return float64(key), true
	case float64:
		return key, true
	}
	return 0, false
}

func encodeObject(buf *bytes.Buffer, keys []string, lookup func(string) any) error {
	sort.Strings(keys)
	return writeObject(buf, keys, lookup)
}

func writeObject(buf *bytes.Buffer, keys []string, lookup func(string) any) error {
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteString(", ")
		}
		writeString(buf, k)
		buf.WriteString(": ")
		if err := encode(buf, lookup(k)); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// encodeReflect handles typed slices and maps, and falls back to a JSON round
// trip for structs.
func encodeReflect(buf *bytes.Buffer, v any) error {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return encode(buf, items)
	case reflect.Map:
		m := make(map[any]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().Interface()] = iter.Value().Interface()
		}
		return encode(buf, m)
	case reflect.Pointer:
		if rv.IsNil() {
			buf.WriteString("null")
			return nil
		}
		return encode(buf, rv.Elem().Interface())
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("canonical encode %T: %w", v, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return fmt.Errorf("canonical encode %T: %w", v, err)
	}
	return encode(buf, generic)
}

func encodeNumber(buf *bytes.Buffer, n json.Number) error {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		buf.WriteString(s)
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("canonical encode number %q: %w", s, err)
	}
	buf.WriteString(formatFloat(f))
	return nil
}

func keyString(k any) string {
	switch key := k.(type) {
	case string:
		return key
	case bool:
		if key {
			return "true"
		}
		return "false"
	case nil:
		return "null"
	case float64:
		return formatFloat(key)
	default:
		return fmt.Sprint(key)
	}
}

// formatFloat mirrors Python's float repr: shortest round-trip digits, scientific
// notation outside [1e-4, 1e16), and a trailing ".0" on integral values.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

const hexDigits = "0123456789abcdef"

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			if r >= 0x20 && r <= 0x7e {
				buf.WriteRune(r)
				continue
			}
			if r > 0xffff {
				r -= 0x10000
				writeEscape(buf, 0xd800|((r>>10)&0x3ff))
				writeEscape(buf, 0xdc00|(r&0x3ff))
				continue
			}
			if r == utf8.RuneError {
				r = 0xfffd
			}
			writeEscape(buf, r)
		}
	}
	buf.WriteByte('"')
}

func writeEscape(buf *bytes.Buffer, r rune) {
	buf.WriteString(`\u`)
	buf.WriteByte(hexDigits[(r>>12)&0xf])
	buf.WriteByte(hexDigits[(r>>8)&0xf])
	buf.WriteByte(hexDigits[(r>>4)&0xf])
	buf.WriteByte(hexDigits[r&0xf])
}
