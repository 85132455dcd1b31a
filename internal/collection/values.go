package collection

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Values converts any slice or array into []interface{}. The second result
// is false when v is not a list.
func Values(v interface{}) ([]interface{}, bool) {
	switch list := v.(type) {
	case nil:
		return nil, false
	case []interface{}:
		return list, true
	case []string:
		out := make([]interface{}, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Chunk splits values into contiguous groups of at most size elements,
// preserving order. The last chunk may be shorter.
func Chunk(values []interface{}, size int) [][]interface{} {
	if size <= 0 {
		size = 1
	}
	chunks := make([][]interface{}, 0, (len(values)+size-1)/size)
	for i := 0; i < len(values); i += size {
		end := i + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[i:end:end])
	}
	return chunks
}

// Equal compares two document values. Numbers compare by value regardless
// of their Go type, since documents round-trip through JSON as float64.
func Equal(a, b interface{}) bool {
	if fa, ok := toFloat64(a); ok {
		if fb, ok := toFloat64(b); ok {
			return fa == fb
		}
		return false
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		return ok && sa == sb
	}
	return reflect.DeepEqual(a, b)
}

// Contains reports whether list holds a value Equal to v.
func Contains(list []interface{}, v interface{}) bool {
	for _, item := range list {
		if Equal(item, v) {
			return true
		}
	}
	return false
}

// Intersects reports whether a and b share at least one Equal value.
func Intersects(a, b []interface{}) bool {
	for _, item := range b {
		if Contains(a, item) {
			return true
		}
	}
	return false
}

// Compare orders two values of the same kind (numbers, strings or bools).
// ok is false when they cannot be ordered against each other.
func Compare(a, b interface{}) (int, bool) {
	if fa, ok := toFloat64(a); ok {
		fb, ok := toFloat64(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// Key renders v as a stable map key, normalising numbers so that 3 and 3.0
// collide.
func Key(v interface{}) string {
	if f, ok := toFloat64(v); ok {
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return "s:" + val
	case bool:
		return "b:" + strconv.FormatBool(val)
	}
	return fmt.Sprintf("%T:%v", v, v)
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
