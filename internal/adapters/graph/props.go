package graph

import (
	"encoding/json"
	"fmt"
	"math"
)

// Props holds node properties. Values are restricted to strings, booleans
// and numbers so that every backend can store them.
type Props map[string]any

// String returns the string value of key, or "" if absent or not a string.
func (p Props) String(key string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

// Int returns the integer value of key. Backends hand numbers back as int,
// int64, float64 or json.Number depending on their encoding.
func (p Props) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

// Has reports whether key is present.
func (p Props) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Clone returns a shallow copy. A nil receiver yields an empty map.
func (p Props) Clone() Props {
	out := make(Props, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// validate checks keys and value types. The nid key is reserved.
func (p Props) validate() error {
	for k, v := range p {
		if !validIdent(k) || k == nidKey {
			return fmt.Errorf("%w: key %q", ErrInvalidProperty, k)
		}
		switch v.(type) {
		case string, bool, int, int32, int64, float32, float64, json.Number:
		default:
			return fmt.Errorf("%w: %q has type %T", ErrInvalidProperty, k, v)
		}
	}
	return nil
}

// contains reports whether every filter entry is present in p with an equal value.
func (p Props) contains(filter Props) bool {
	for k, want := range filter {
		got, ok := p[k]
		if !ok || !valueEqual(got, want) {
			return false
		}
	}
	return true
}

const nidKey = "nid"

func valueEqual(a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// normalizeNumber turns decoded JSON numbers into int64 when integral.
func normalizeNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
