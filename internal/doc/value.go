package doc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the document node types.
type Value interface {
	docValue()
}

// Null is an explicit JSON null.
type Null struct{}

func (Null) docValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a string leaf. Placeholders only ever live in String leaves.
type String string

func (String) docValue() {}

// Int is an integral number.
type Int int64

func (Int) docValue() {}

// Float is a non-integral number.
type Float float64

func (Float) docValue() {}

// Bool is a boolean leaf.
type Bool bool

func (Bool) docValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) docValue() {}

// Object maps field names to values. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) docValue() {}

// SortedKeys returns keys in canonical order (UTF-16 code units, RFC 8785).
// For ASCII keys this is plain lexicographic order.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, CompareKeys)
	return keys
}

// Clone returns a deep copy of the object.
func (obj Object) Clone() Object {
	if obj == nil {
		return nil
	}
	return Clone(obj).(Object)
}

// CompareKeys orders strings by UTF-16 code units.
// Go's native string comparison works on UTF-8 bytes, which disagrees with
// UTF-16 order for characters above U+FFFF.
func CompareKeys(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// MarshalJSON implements json.Marshaler for Object with sorted keys.
func (obj Object) MarshalJSON() ([]byte, error) {
	return Marshal(obj)
}

// MarshalJSON implements json.Marshaler for Array.
func (arr Array) MarshalJSON() ([]byte, error) {
	return Marshal(arr)
}

// Clone deep-copies a value. Leaves are immutable and returned as-is.
func Clone(v Value) Value {
	switch val := v.(type) {
	case Array:
		if val == nil {
			return Array(nil)
		}
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case Object:
		if val == nil {
			return Object(nil)
		}
		out := make(Object, len(val))
		for k, elem := range val {
			out[k] = Clone(elem)
		}
		return out
	default:
		return v
	}
}

// Equal reports whether two documents are structurally equal.
// Int and Float compare numerically, so 1 equals 1.0. Two Ints compare exactly.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return isNull(a) && isNull(b)
	}
	if eq, ok := numbersEqual(a, b); ok {
		return eq
	}
	switch av := a.(type) {
	case Null:
		return isNull(b)
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, ae := range av {
			be, exists := bv[k]
			if !exists || !Equal(ae, be) {
				return false
			}
		}
		return true
	}
	return false
}

func isNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// numbersEqual compares a and b when a is a number. Two Ints compare
// exactly; an Int equals a Float only when the Float is that exact integer.
func numbersEqual(a, b Value) (eq, ok bool) {
	switch av := a.(type) {
	case Int:
		switch bv := b.(type) {
		case Int:
			return av == bv, true
		case Float:
			return intEqualsFloat(av, bv), true
		}
		return false, true
	case Float:
		switch bv := b.(type) {
		case Int:
			return intEqualsFloat(bv, av), true
		case Float:
			return av == bv, true
		}
		return false, true
	}
	return false, false
}

func intEqualsFloat(i Int, f Float) bool {
	x := float64(f)
	if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
		return false
	}
	return int64(x) == int64(i)
}

// TypeName returns a short human-readable name for the node type.
func TypeName(v Value) string {
	switch v.(type) {
	case nil, Null:
		return "null"
	case String:
		return "string"
	case Int, Float:
		return "number"
	case Bool:
		return "bool"
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// Marshal encodes a document as compact JSON with sorted object keys.
// Unlike MarshalCanonical it performs no Unicode normalization.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v, encodeString); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalIndent encodes a document as indented JSON with sorted object keys.
func MarshalIndent(v Value, indent string) ([]byte, error) {
	compact, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", indent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v Value, str func(string) ([]byte, error)) error {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case String:
		b, err := str(string(val))
		if err != nil {
			return err
		}
		buf.Write(b)
	case Int:
		fmt.Fprintf(buf, "%d", int64(val))
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-finite number %v cannot be encoded", f)
		}
		b, err := json.Marshal(f)
		if err != nil {
			return err
		}
		buf.Write(b)
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, elem, str); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := str(k)
			if err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeValue(buf, val[k], str); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown document value type: %T", v)
	}
	return nil
}

// encodeString writes a JSON string without HTML escaping.
func encodeString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
