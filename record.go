package tenf

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/Redshadow31/tenf-v2-sub007/codec"
)

// Kind identifies which JSON type a Record holds.
type Kind uint8

const (
	// KindNull is the JSON null value. It is also the zero Record.
	KindNull Kind = iota
	// KindBool is a JSON boolean.
	KindBool
	// KindNumber is a JSON number, held as float64.
	KindNumber
	// KindString is a JSON string.
	KindString
	// KindArray is a JSON array.
	KindArray
	// KindObject is a JSON object.
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Record is an opaque JSON document.
//
// The storage layer enforces no schema; callers decode into their own types
// with ReadInto or Get. The zero Record is JSON null. Records are immutable:
// Array and Object return copies.
type Record struct {
	v any
}

// NewRecord normalizes any JSON-serializable Go value into a Record by
// encoding and decoding it once.
func NewRecord(v any) (Record, error) {
	if r, ok := v.(Record); ok {
		return r, nil
	}
	data, err := codec.Default.Marshal(v)
	if err != nil {
		return Record{}, err
	}
	return parseRecord(codec.Default, data)
}

// MustRecord is like NewRecord but panics on error. Intended for tests and
// literals.
func MustRecord(v any) Record {
	r, err := NewRecord(v)
	if err != nil {
		panic(err)
	}
	return r
}

func parseRecord(c codec.Codec, data []byte) (Record, error) {
	var v any
	if err := c.Unmarshal(data, &v); err != nil {
		return Record{}, err
	}
	return Record{v: v}, nil
}

// Kind returns the JSON type of r.
func (r Record) Kind() Kind {
	switch r.v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case float64:
		return KindNumber
	case string:
		return KindString
	case []any:
		return KindArray
	case map[string]any:
		return KindObject
	default:
		// Unreachable for records built by this package.
		return KindNull
	}
}

// IsNull reports whether r is JSON null.
func (r Record) IsNull() bool { return r.v == nil }

// Bool returns the boolean value and whether r holds one.
func (r Record) Bool() (bool, bool) {
	b, ok := r.v.(bool)
	return b, ok
}

// Number returns the numeric value and whether r holds one.
func (r Record) Number() (float64, bool) {
	f, ok := r.v.(float64)
	return f, ok
}

// Text returns the string value and whether r holds one.
func (r Record) Text() (string, bool) {
	s, ok := r.v.(string)
	return s, ok
}

// Array returns the elements of a JSON array.
func (r Record) Array() ([]Record, bool) {
	a, ok := r.v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]Record, len(a))
	for i, e := range a {
		out[i] = Record{v: e}
	}
	return out, true
}

// Object returns the fields of a JSON object.
func (r Record) Object() (map[string]Record, bool) {
	m, ok := r.v.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]Record, len(m))
	for k, e := range m {
		out[k] = Record{v: e}
	}
	return out, true
}

// Fields returns the sorted field names of a JSON object, or nil.
func (r Record) Fields() []string {
	m, ok := r.v.(map[string]any)
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(m))
}

// Get returns the named field of a JSON object. ok is false when r is not
// an object or has no such field.
func (r Record) Get(field string) (Record, bool) {
	m, ok := r.v.(map[string]any)
	if !ok {
		return Record{}, false
	}
	e, ok := m[field]
	if !ok {
		return Record{}, false
	}
	return Record{v: e}, true
}

// Value returns the plain Go representation: nil, bool, float64, string,
// []any or map[string]any. The result must not be modified.
func (r Record) Value() any { return r.v }

// Decode decodes r into v, which must be a pointer.
func (r Record) Decode(v any) error {
	data, err := r.MarshalJSON()
	if err != nil {
		return err
	}
	return codec.Default.Unmarshal(data, v)
}

// Equal reports whether r and other hold the same JSON value.
func (r Record) Equal(other Record) bool {
	return reflect.DeepEqual(r.v, other.v)
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	return codec.Default.Marshal(r.v)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	var v any
	if err := codec.Default.Unmarshal(data, &v); err != nil {
		return err
	}
	r.v = v
	return nil
}

var (
	_ json.Marshaler   = Record{}
	_ json.Unmarshaler = (*Record)(nil)
	_ fmt.Stringer     = Record{}
)

// String renders r as compact JSON.
func (r Record) String() string {
	data, err := r.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid record: %v>", err)
	}
	return string(data)
}
