package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a sealed interface over the literal values a block program moves
// around. Only Number, String, Bool and Array implement it.
type Value interface {
	value() // Sealed - only these types implement it
}

// Number is a numeric literal.
type Number float64

func (Number) value() {}

// MarshalJSON rejects NaN and infinities, which JSON cannot carry.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("number %v is not representable in JSON", f)
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

// String is a string literal.
type String string

func (String) value() {}

// Bool is a boolean literal.
type Bool bool

func (Bool) value() {}

// Array is an ordered list of values. A matrix is an Array of Arrays.
type Array []Value

func (Array) value() {}

// Params maps parameter or port names to literal values.
// Use SortedKeys() for deterministic iteration.
type Params map[string]Value

// SortedKeys returns the parameter names in RFC 8785 order.
func (p Params) SortedKeys() []string {
	return sortedKeys(p)
}

// UnmarshalJSON implements json.Unmarshaler for Params.
func (p *Params) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = nil
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = make(Params, len(raw))
	for k, v := range raw {
		val, err := unmarshalValue(v)
		if err != nil {
			return fmt.Errorf("parameter %q: %w", k, err)
		}
		(*p)[k] = val
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for Array.
func (a *Array) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = make(Array, len(raw))
	for i, v := range raw {
		val, err := unmarshalValue(v)
		if err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
		(*a)[i] = val
	}
	return nil
}

// unmarshalValue decodes one JSON value into the matching Value type.
// JSON null has no literal counterpart and is rejected.
func unmarshalValue(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return String(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	case '[':
		var arr Array
		if err := arr.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return arr, nil
	case 'n':
		return nil, fmt.Errorf("null is not a literal value")
	case '{':
		return nil, fmt.Errorf("objects are not literal values")
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return Number(f), nil
	}
}

// FromGo converts a decoded YAML/JSON value into a Value.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case Value:
		return val, nil
	case int:
		return Number(val), nil
	case int64:
		return Number(val), nil
	case uint64:
		return Number(val), nil
	case float64:
		return Number(val), nil
	case float32:
		return Number(val), nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			e, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = e
		}
		return arr, nil
	case nil:
		return nil, fmt.Errorf("null is not a literal value")
	default:
		return nil, fmt.Errorf("unsupported literal type: %T", v)
	}
}

// ToGo converts a Value into plain Go values. Integral numbers become
// int64 so constraint languages see them as integers.
func ToGo(v Value) any {
	switch val := v.(type) {
	case Number:
		f := float64(val)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	case String:
		return string(val)
	case Bool:
		return bool(val)
	case Array:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = ToGo(e)
		}
		return out
	default:
		return nil
	}
}

// TagOf returns the port type tag a literal satisfies.
func TagOf(v Value) TypeTag {
	switch v.(type) {
	case Number:
		return TagNumber
	case Array:
		return TagArray
	default:
		return TagNone
	}
}

// Format renders a value the way generated statements and the console show it.
// A nil value renders as None.
func Format(v Value) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case Number:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case String:
		return strconv.Quote(string(val))
	case Bool:
		return strconv.FormatBool(bool(val))
	case Array:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = Format(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Vector reads a value as a list of numbers. A single Number is a vector of
// length one.
func Vector(v Value) ([]float64, error) {
	switch val := v.(type) {
	case Number:
		return []float64{float64(val)}, nil
	case Array:
		out := make([]float64, len(val))
		for i, e := range val {
			n, ok := e.(Number)
			if !ok {
				return nil, fmt.Errorf("element %d: expected number, got %s", i, Format(e))
			}
			out[i] = float64(n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected array of numbers, got %s", Format(v))
	}
}

// Matrix reads a value as rows of features. A flat array of numbers is a
// single-feature column, one row per element.
func Matrix(v Value) ([][]float64, error) {
	arr, ok := v.(Array)
	if !ok {
		return nil, fmt.Errorf("expected array, got %s", Format(v))
	}
	rows := make([][]float64, len(arr))
	width := -1
	for i, e := range arr {
		switch el := e.(type) {
		case Number:
			rows[i] = []float64{float64(el)}
		case Array:
			row, err := Vector(el)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			rows[i] = row
		default:
			return nil, fmt.Errorf("row %d: expected number or array, got %s", i, Format(e))
		}
		if width >= 0 && len(rows[i]) != width {
			return nil, fmt.Errorf("row %d: ragged matrix (%d columns, want %d)", i, len(rows[i]), width)
		}
		width = len(rows[i])
	}
	return rows, nil
}

// NumbersOf builds an Array from float64s.
func NumbersOf(fs ...float64) Array {
	arr := make(Array, len(fs))
	for i, f := range fs {
		arr[i] = Number(f)
	}
	return arr
}
