package message

import (
	"sync"

	"github.com/pkg/errors"
)

// Schema construction/lookup failure classes.
var (
	ErrUnknownType  = errors.New("unknown message type")
	ErrUnknownField = errors.New("unknown field")
)

// FieldKind is the declared semantic type of a schema field. It is finer
// grained than Kind so schemas can record which integer or float flavor a
// field carries; all of the numeric family is represented as KindNumber in
// payload values.
type FieldKind int

const (
	// FieldFloat64 is a double precision float field.
	FieldFloat64 FieldKind = iota
	// FieldFloat32 is a single precision float field.
	FieldFloat32
	// FieldInt64 is a signed 64-bit integer field.
	FieldInt64
	// FieldInt32 is a signed 32-bit integer field.
	FieldInt32
	// FieldUint64 is an unsigned 64-bit integer field.
	FieldUint64
	// FieldUint32 is an unsigned 32-bit integer field.
	FieldUint32
	// FieldString is a text field.
	FieldString
	// FieldBool is a boolean field.
	FieldBool
	// FieldRecord is a nested record field.
	FieldRecord
	// FieldSequence is an ordered list field.
	FieldSequence
)

var fieldKindNames = map[FieldKind]string{
	FieldFloat64:  "float64",
	FieldFloat32:  "float32",
	FieldInt64:    "int64",
	FieldInt32:    "int32",
	FieldUint64:   "uint64",
	FieldUint32:   "uint32",
	FieldString:   "string",
	FieldBool:     "bool",
	FieldRecord:   "record",
	FieldSequence: "sequence",
}

func (k FieldKind) String() string {
	if name, ok := fieldKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseFieldKind parses the textual form used in schema declarations.
func ParseFieldKind(s string) (FieldKind, error) {
	for k, name := range fieldKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, errors.Errorf("unknown field kind %q", s)
}

// Numeric reports whether the kind belongs to the numeric family.
func (k FieldKind) Numeric() bool {
	switch k {
	case FieldFloat64, FieldFloat32, FieldInt64, FieldInt32, FieldUint64, FieldUint32:
		return true
	case FieldString, FieldBool, FieldRecord, FieldSequence:
		return false
	}
	return false
}

func (k FieldKind) zero() Value {
	switch k {
	case FieldString:
		return NewString("")
	case FieldBool:
		return NewBool(false)
	case FieldRecord:
		return NewRecord(nil)
	case FieldSequence:
		return NewSequence(nil)
	case FieldFloat64, FieldFloat32, FieldInt64, FieldInt32, FieldUint64, FieldUint32:
		return NewNumber(0)
	}
	return NewNumber(0)
}

// Schema describes the declared fields of one message type.
type Schema struct {
	Type   string
	Fields map[string]FieldKind
}

// Lookup resolves message type tags to schemas. The zero result follows the
// comma-ok convention so callers can distinguish unknown types.
type Lookup interface {
	Lookup(typeTag string) (Schema, bool)
}

// Registry is a map-backed Lookup safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

// NewRegistry returns an empty schema registry.
func NewRegistry() *Registry {
	return &Registry{schemas: map[string]Schema{}}
}

// Register adds or replaces the schema for its type tag.
func (r *Registry) Register(s Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.Type] = s
}

// Lookup implements Lookup.
func (r *Registry) Lookup(typeTag string) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[typeTag]
	return s, ok
}
