package calibration

import (
	"encoding/json"
	"maps"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Keys the linear model reads.
const (
	KeyEmptyDecanterValue = "coffee_empty_decanter_value"
	KeyFullValue          = "coffee_full_value"
	KeyMaxNCups           = "max_ncups"
)

// Parameters is one version of the calibration mapping.
type Parameters map[string]any

// Normalize returns a copy with every numeric value widened to float64 and
// strings trimmed, so values decoded from TOML, JSON or the store compare
// equal.
func Normalize(in map[string]any) Parameters {
	out := make(Parameters, len(in))
	for k, v := range in {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case string:
		return strings.TrimSpace(n)
	default:
		return v
	}
}

// Equal reports structural equality: same keys and equal values after
// normalization.
func (p Parameters) Equal(other Parameters) bool {
	if len(p) != len(other) {
		return false
	}
	a, b := Normalize(p), Normalize(other)
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !valueEqual(av, bv) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		return af == bf || (math.IsNaN(af) && math.IsNaN(bf))
	}
	return reflect.DeepEqual(a, b)
}

// Float returns the numeric value stored under key. Numeric strings are
// accepted.
func (p Parameters) Float(key string) (float64, bool) {
	switch v := normalizeValue(p[key]).(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Keys returns the parameter names in sorted order.
func (p Parameters) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}

// Clone returns a normalized copy.
func (p Parameters) Clone() Parameters {
	return Normalize(p)
}
