// Package message models the structured payloads carried on pub/sub channels:
// a small tagged-union value type, paths that select scalars out of nested
// values, and per-type schemas used to validate fields and build messages.
package message

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Kind enumerates the shapes a Value can take.
type Kind int

const (
	// KindNumber is a scalar numeric value.
	KindNumber Kind = iota
	// KindString is a scalar text value.
	KindString
	// KindBool is a scalar boolean value.
	KindBool
	// KindRecord is a set of named member values.
	KindRecord
	// KindSequence is an ordered list of values.
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindRecord:
		return "record"
	case KindSequence:
		return "sequence"
	}
	return "unknown"
}

// Value is a dynamically shaped payload value. Traversal goes through the
// Kind accessors rather than reflection so extraction stays total.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	rec  map[string]Value
	seq  []Value
}

// NewNumber returns a numeric Value.
func NewNumber(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// NewString returns a text Value.
func NewString(s string) Value {
	return Value{kind: KindString, str: s}
}

// NewBool returns a boolean Value.
func NewBool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// NewRecord returns a record Value with the given members.
func NewRecord(members map[string]Value) Value {
	if members == nil {
		members = map[string]Value{}
	}
	return Value{kind: KindRecord, rec: members}
}

// NewSequence returns a sequence Value with the given elements.
func NewSequence(elems []Value) Value {
	return Value{kind: KindSequence, seq: elems}
}

// Kind returns the shape of the value.
func (v Value) Kind() Kind {
	return v.kind
}

// Number returns the numeric content, if this is a number.
func (v Value) Number() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Text returns the string content, if this is a string.
func (v Value) Text() (string, bool) {
	return v.str, v.kind == KindString
}

// Bool returns the boolean content, if this is a bool.
func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Field returns the named member of a record value.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindRecord {
		return Value{}, false
	}
	m, ok := v.rec[name]
	return m, ok
}

// At returns the i-th element of a sequence value.
func (v Value) At(i int) (Value, bool) {
	if v.kind != KindSequence || i < 0 || i >= len(v.seq) {
		return Value{}, false
	}
	return v.seq[i], true
}

// Len returns the element count of a sequence, or zero for any other kind.
func (v Value) Len() int {
	if v.kind != KindSequence {
		return 0
	}
	return len(v.seq)
}

// Interface converts the value into the shape encoding/json produces when
// unmarshaling into interface{}.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindBool:
		return v.b
	case KindRecord:
		out := make(map[string]interface{}, len(v.rec))
		for name, m := range v.rec {
			out[name] = m.Interface()
		}
		return out
	case KindSequence:
		out := make([]interface{}, 0, len(v.seq))
		for _, e := range v.seq {
			out = append(out, e.Interface())
		}
		return out
	}
	return nil
}

// FromInterface converts a json-shaped interface{} tree into a Value.
func FromInterface(raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case float64:
		return NewNumber(x), nil
	case int:
		return NewNumber(float64(x)), nil
	case string:
		return NewString(x), nil
	case bool:
		return NewBool(x), nil
	case map[string]interface{}:
		members := make(map[string]Value, len(x))
		for name, m := range x {
			mv, err := FromInterface(m)
			if err != nil {
				return Value{}, errors.Wrapf(err, "field %q", name)
			}
			members[name] = mv
		}
		return NewRecord(members), nil
	case []interface{}:
		elems := make([]Value, 0, len(x))
		for i, e := range x {
			ev, err := FromInterface(e)
			if err != nil {
				return Value{}, errors.Wrapf(err, "index %d", i)
			}
			elems = append(elems, ev)
		}
		return NewSequence(elems), nil
	}
	return Value{}, errors.Errorf("cannot convert %T into a value", raw)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromInterface(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
