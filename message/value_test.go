package message

import (
	"encoding/json"
	"testing"

	"go.viam.com/test"
)

func TestValueAccessors(t *testing.T) {
	num := NewNumber(4.25)
	test.That(t, num.Kind(), test.ShouldEqual, KindNumber)
	n, ok := num.Number()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, n, test.ShouldEqual, 4.25)
	_, ok = num.Text()
	test.That(t, ok, test.ShouldBeFalse)

	rec := NewRecord(map[string]Value{"x": NewNumber(1)})
	x, ok := rec.Field("x")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, x.Kind(), test.ShouldEqual, KindNumber)
	_, ok = rec.Field("y")
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = rec.At(0)
	test.That(t, ok, test.ShouldBeFalse)

	seq := NewSequence([]Value{NewNumber(1), NewString("two")})
	test.That(t, seq.Len(), test.ShouldEqual, 2)
	second, ok := seq.At(1)
	test.That(t, ok, test.ShouldBeTrue)
	s, ok := second.Text()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, s, test.ShouldEqual, "two")
	_, ok = seq.At(2)
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = seq.At(-1)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestValueJSONRoundTrip(t *testing.T) {
	raw := []byte(`{"pose":{"position":[1.5,2.5,3.5],"valid":true},"frame":"base"}`)
	var v Value
	test.That(t, json.Unmarshal(raw, &v), test.ShouldBeNil)
	test.That(t, v.Kind(), test.ShouldEqual, KindRecord)

	pose, ok := v.Field("pose")
	test.That(t, ok, test.ShouldBeTrue)
	position, ok := pose.Field("position")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, position.Len(), test.ShouldEqual, 3)

	encoded, err := json.Marshal(v)
	test.That(t, err, test.ShouldBeNil)
	var again Value
	test.That(t, json.Unmarshal(encoded, &again), test.ShouldBeNil)
	test.That(t, again.Interface(), test.ShouldResemble, v.Interface())
}

func TestFromInterface(t *testing.T) {
	v, err := FromInterface(map[string]interface{}{
		"speeds": []interface{}{1.0, 2.0},
		"name":   "left",
		"on":     true,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v.Kind(), test.ShouldEqual, KindRecord)

	_, err = FromInterface(map[string]interface{}{"bad": make(chan int)})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `field "bad"`)
}
