package message

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Extraction failure classes; wrapped errors carry the failing step, test
// with errors.Is.
var (
	ErrEmptyPath       = errors.New("path has no steps")
	ErrMissingField    = errors.New("no such field")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrTypeMismatch    = errors.New("value kind mismatch")
)

// Step selects one member of a structured value: either a named field of a
// record or an index into a sequence.
type Step struct {
	field   string
	index   int
	isIndex bool
}

// FieldStep returns a step selecting the named record member.
func FieldStep(name string) Step {
	return Step{field: name}
}

// IndexStep returns a step selecting the i-th sequence element.
func IndexStep(i int) Step {
	return Step{index: i, isIndex: true}
}

func (s Step) String() string {
	if s.isIndex {
		return "[" + strconv.Itoa(s.index) + "]"
	}
	return s.field
}

// Path locates a scalar inside a nested value, applied step by step from the
// left. Paths are never empty; ParsePath rejects empty input.
type Path []Step

func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		if i > 0 && !s.isIndex {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// ParsePath parses a dotted path with optional bracketed index suffixes,
// e.g. "pose.position[1].x".
func ParsePath(s string) (Path, error) {
	if strings.TrimSpace(s) == "" {
		return nil, ErrEmptyPath
	}
	var path Path
	for _, seg := range strings.Split(s, ".") {
		name := seg
		var indexes []int
		for {
			open := strings.IndexByte(name, '[')
			if open < 0 {
				break
			}
			rest := name[open:]
			name = name[:open]
			for rest != "" {
				if rest[0] != '[' {
					return nil, errors.Errorf("malformed path segment %q", seg)
				}
				closing := strings.IndexByte(rest, ']')
				if closing < 0 {
					return nil, errors.Errorf("unterminated index in path segment %q", seg)
				}
				idx, err := strconv.Atoi(rest[1:closing])
				if err != nil || idx < 0 {
					return nil, errors.Errorf("bad index %q in path segment %q", rest[1:closing], seg)
				}
				indexes = append(indexes, idx)
				rest = rest[closing+1:]
			}
		}
		if name == "" && len(indexes) == 0 {
			return nil, errors.Errorf("empty segment in path %q", s)
		}
		if name != "" {
			path = append(path, FieldStep(name))
		}
		for _, idx := range indexes {
			path = append(path, IndexStep(idx))
		}
	}
	return path, nil
}

// Extract applies the path to the value and returns the scalar number at the
// end. Any inapplicable step fails with one of the error classes above.
func Extract(v Value, p Path) (float64, error) {
	if len(p) == 0 {
		return 0, ErrEmptyPath
	}
	cur := v
	for _, step := range p {
		if step.isIndex {
			if cur.Kind() != KindSequence {
				return 0, errors.Wrapf(ErrTypeMismatch, "cannot index into %s value at %q", cur.Kind(), step)
			}
			next, ok := cur.At(step.index)
			if !ok {
				return 0, errors.Wrapf(ErrIndexOutOfRange, "index %d of sequence with %d elements", step.index, cur.Len())
			}
			cur = next
			continue
		}
		if cur.Kind() != KindRecord {
			return 0, errors.Wrapf(ErrTypeMismatch, "cannot select field %q from %s value", step.field, cur.Kind())
		}
		next, ok := cur.Field(step.field)
		if !ok {
			return 0, errors.Wrapf(ErrMissingField, "field %q", step.field)
		}
		cur = next
	}
	num, ok := cur.Number()
	if !ok {
		return 0, errors.Wrapf(ErrTypeMismatch, "path %q ends at a %s value, want number", p, cur.Kind())
	}
	return num, nil
}
