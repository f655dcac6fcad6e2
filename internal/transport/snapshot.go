package transport

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Snapshot is a decoded JSON object. Values are whatever encoding/json produces
// with UseNumber (string, bool, json.Number, nil, []any, map[string]any) or, for
// in-process transports, the equivalent Go values.
type Snapshot map[string]any

// Has reports whether key is present, even with a null value.
func (s Snapshot) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// IsNull reports whether key is present with an explicit null.
func (s Snapshot) IsNull(key string) bool {
	v, ok := s[key]
	return ok && v == nil
}

// String returns the value of key rendered as a string. Numbers are rendered
// in their decimal form.
func (s Snapshot) String(key string) (string, bool) {
	switch v := s[key].(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case decimal.Decimal:
		return v.String(), true
	default:
		return "", false
	}
}

// Str is String without the presence flag.
func (s Snapshot) Str(key string) string {
	v, _ := s.String(key)
	return v
}

// Bool returns the boolean value of key.
func (s Snapshot) Bool(key string) (bool, bool) {
	v, ok := s[key].(bool)
	return v, ok
}

// Int returns the integer value of key.
func (s Snapshot) Int(key string) (int, bool) {
	switch v := s[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

// Decimal returns the value of key as a decimal. The second result is false when
// the key is absent or null; the error is set when it is present but unreadable.
func (s Snapshot) Decimal(key string) (decimal.Decimal, bool, error) {
	raw, ok := s[key]
	if !ok || raw == nil {
		return decimal.Zero, false, nil
	}
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, true, nil
	case float64:
		return decimal.NewFromFloat(v), true, nil
	case int:
		return decimal.NewFromInt(int64(v)), true, nil
	case int64:
		return decimal.NewFromInt(v), true, nil
	}
	str, _ := s.String(key)
	d, err := decimal.NewFromString(str)
	if err != nil {
		return decimal.Zero, true, fmt.Errorf("%s is not a number: %w", key, err)
	}
	return d, true, nil
}

// Object returns the nested object at key.
func (s Snapshot) Object(key string) (Snapshot, bool) {
	switch v := s[key].(type) {
	case Snapshot:
		return v, true
	case map[string]any:
		return Snapshot(v), true
	default:
		return nil, false
	}
}

// List returns the objects in the array at key, skipping non-object elements.
func (s Snapshot) List(key string) []Snapshot {
	var out []Snapshot
	switch v := s[key].(type) {
	case []Snapshot:
		return v
	case []map[string]any:
		for _, m := range v {
			out = append(out, Snapshot(m))
		}
	case []any:
		for _, item := range v {
			switch m := item.(type) {
			case Snapshot:
				out = append(out, m)
			case map[string]any:
				out = append(out, Snapshot(m))
			}
		}
	}
	return out
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Snapshot:
		return t.Clone()
	case map[string]any:
		return Snapshot(t).Clone()
	case []Snapshot:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item.Clone()
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Decode parses a JSON object into a Snapshot, keeping numbers exact.
func Decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := decodeJSON(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}
