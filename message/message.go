package message

import "github.com/pkg/errors"

// Message is one structured payload on the wire, tagged with its declared
// type and an identity frame.
type Message struct {
	Type    string `json:"type"`
	Frame   string `json:"frame"`
	Payload Value  `json:"payload"`
}

// Build constructs a message of the schema's type with every declared field
// zero-valued for its kind and the named numeric field set to value. This is
// the inverse of Extract for single-field outputs.
func Build(s Schema, frame, field string, value float64) (Message, error) {
	kind, ok := s.Fields[field]
	if !ok {
		return Message{}, errors.Wrapf(ErrUnknownField, "field %q of type %q", field, s.Type)
	}
	if !kind.Numeric() {
		return Message{}, errors.Wrapf(ErrTypeMismatch, "field %q of type %q is %s, want numeric", field, s.Type, kind)
	}
	members := make(map[string]Value, len(s.Fields))
	for name, fk := range s.Fields {
		members[name] = fk.zero()
	}
	members[field] = NewNumber(value)
	return Message{
		Type:    s.Type,
		Frame:   frame,
		Payload: NewRecord(members),
	}, nil
}
