package mqttpubsub

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/pidloop/message"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	msg := message.Message{
		Type:  "actuator/Effort",
		Frame: "arm_base",
		Payload: message.NewRecord(map[string]message.Value{
			"effort": message.NewNumber(0.5),
			"label":  message.NewString("left"),
			"gains":  message.NewSequence([]message.Value{message.NewNumber(1), message.NewNumber(2)}),
		}),
	}

	data, err := encodeEnvelope(msg)
	test.That(t, err, test.ShouldBeNil)

	decoded, err := decodeEnvelope(data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded.Type, test.ShouldEqual, msg.Type)
	test.That(t, decoded.Frame, test.ShouldEqual, msg.Frame)
	test.That(t, decoded.Payload.Interface(), test.ShouldResemble, msg.Payload.Interface())
}

func TestDecodeEnvelopeErrors(t *testing.T) {
	_, err := decodeEnvelope([]byte("not json"))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = decodeEnvelope([]byte(`{"frame":"base","payload":{}}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "type tag")
}
