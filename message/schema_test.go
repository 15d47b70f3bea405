package message

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

var effortSchema = Schema{
	Type: "actuator/Effort",
	Fields: map[string]FieldKind{
		"effort": FieldFloat64,
		"ticks":  FieldInt32,
		"label":  FieldString,
		"ok":     FieldBool,
	},
}

func TestFieldKind(t *testing.T) {
	for _, numeric := range []FieldKind{FieldFloat64, FieldFloat32, FieldInt64, FieldInt32, FieldUint64, FieldUint32} {
		test.That(t, numeric.Numeric(), test.ShouldBeTrue)
	}
	for _, other := range []FieldKind{FieldString, FieldBool, FieldRecord, FieldSequence} {
		test.That(t, other.Numeric(), test.ShouldBeFalse)
	}

	k, err := ParseFieldKind("float64")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, k, test.ShouldEqual, FieldFloat64)
	test.That(t, k.String(), test.ShouldEqual, "float64")
	_, err = ParseFieldKind("quaternion")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	_, ok := registry.Lookup("actuator/Effort")
	test.That(t, ok, test.ShouldBeFalse)

	registry.Register(effortSchema)
	s, ok := registry.Lookup("actuator/Effort")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, s.Fields["effort"], test.ShouldEqual, FieldFloat64)
}

func TestBuild(t *testing.T) {
	msg, err := Build(effortSchema, "arm_base", "effort", 0.75)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, msg.Type, test.ShouldEqual, "actuator/Effort")
	test.That(t, msg.Frame, test.ShouldEqual, "arm_base")

	// the named field carries the value, everything else is zeroed
	effort, ok := msg.Payload.Field("effort")
	test.That(t, ok, test.ShouldBeTrue)
	n, _ := effort.Number()
	test.That(t, n, test.ShouldEqual, 0.75)
	label, ok := msg.Payload.Field("label")
	test.That(t, ok, test.ShouldBeTrue)
	s, _ := label.Text()
	test.That(t, s, test.ShouldEqual, "")

	_, err = Build(effortSchema, "arm_base", "torque", 1)
	test.That(t, errors.Is(err, ErrUnknownField), test.ShouldBeTrue)

	_, err = Build(effortSchema, "arm_base", "label", 1)
	test.That(t, errors.Is(err, ErrTypeMismatch), test.ShouldBeTrue)
}

func TestBuildExtractRoundTrip(t *testing.T) {
	msg, err := Build(effortSchema, "arm_base", "effort", -12.625)
	test.That(t, err, test.ShouldBeNil)

	path, err := ParsePath("effort")
	test.That(t, err, test.ShouldBeNil)
	v, err := Extract(msg.Payload, path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, -12.625)
}
