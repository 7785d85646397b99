// Package jsonvalue holds a tagged-variant representation of arbitrary JSON
// values and the decoders that build it from Go JSON trees and GraphQL
// literals.
package jsonvalue

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/morikuni/failure/v2"
)

// ErrorCode defines error types for value decoding
type ErrorCode string

const (
	// ErrUnsupportedType is returned when a Go value has no JSON counterpart
	ErrUnsupportedType ErrorCode = "UnsupportedType"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

// Kind is the tag of a Value
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a decoded JSON value. Only the field matching Kind is meaningful.
type Value struct {
	Kind   Kind
	Bool   bool
	Number float64
	String string
	List   []Value
	Object map[string]Value
}

func Null() Value                         { return Value{Kind: KindNull} }
func Bool(b bool) Value                   { return Value{Kind: KindBool, Bool: b} }
func Number(n float64) Value              { return Value{Kind: KindNumber, Number: n} }
func String(s string) Value               { return Value{Kind: KindString, String: s} }
func List(items ...Value) Value           { return Value{Kind: KindList, List: items} }
func Object(fields map[string]Value) Value { return Value{Kind: KindObject, Object: fields} }

// IsNull reports whether v is JSON null
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// Field returns the named member of an object value.
// It returns false when v is not an object, the member is missing, or the
// member is null.
func (v Value) Field(name string) (Value, bool) {
	if v.Kind != KindObject {
		return Value{}, false
	}
	f, ok := v.Object[name]
	if !ok || f.IsNull() {
		return Value{}, false
	}
	return f, true
}

// Interface converts v back into the plain Go tree produced by encoding/json.
func (v Value) Interface() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Number
	case KindString:
		return v.String
	case KindList:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		return ObjectInterface(v.Object)
	default:
		return nil
	}
}

// ObjectInterface converts an object's members into a plain map. A nil map
// stays nil.
func ObjectInterface(fields map[string]Value) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, f := range fields {
		out[k] = f.Interface()
	}
	return out
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler
func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return failure.Wrap(err)
	}
	decoded, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// GoString renders v compactly, with object keys sorted, for logs and test
// failure messages.
func (v Value) GoString() string {
	switch v.Kind {
	case KindString:
		return strconv.Quote(v.String)
	case KindList:
		s := "["
		for i, item := range v.List {
			if i > 0 {
				s += ","
			}
			s += item.GoString()
		}
		return s + "]"
	case KindObject:
		keys := make([]string, 0, len(v.Object))
		for k := range v.Object {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		s := "{"
		for i, k := range keys {
			if i > 0 {
				s += ","
			}
			s += strconv.Quote(k) + ":" + v.Object[k].GoString()
		}
		return s + "}"
	default:
		return fmt.Sprint(v.Interface())
	}
}
