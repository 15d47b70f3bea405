package control

import (
	"testing"
	"time"

	"go.viam.com/test"
)

const dt = 10 * time.Millisecond

func TestStepProportionalOnly(t *testing.T) {
	pid := NewPID(Gains{Kp: 1.0, Tau: 1.0}, Bounds{Min: -10, Max: 10})
	out := pid.Step(1.0, 0.0, dt)
	test.That(t, out, test.ShouldAlmostEqual, 1.0)

	pid = NewPID(Gains{Kp: 2.5, Tau: 1.0}, Bounds{Min: -100, Max: 100})
	out = pid.Step(3.0, 1.0, dt)
	test.That(t, out, test.ShouldAlmostEqual, 5.0)
}

func TestStepClampsToBounds(t *testing.T) {
	pid := NewPID(Gains{Kp: 1.0, Tau: 1.0}, Bounds{Min: -10, Max: 10})
	out := pid.Step(1000.0, 0.0, dt)
	test.That(t, out, test.ShouldEqual, 10.0)
	out = pid.Step(-1000.0, 0.0, dt)
	test.That(t, out, test.ShouldEqual, -10.0)
}

func TestStepAlwaysWithinBounds(t *testing.T) {
	bounds := Bounds{Min: -2.5, Max: 2.5}
	for _, gains := range []Gains{
		{Kp: 1, Tau: 1},
		{Kp: 10, Ki: 5, Tau: 1},
		{Kp: 3, Ki: 2, Kd: 1, Tau: 0.5},
		{Kd: 50, Tau: 1},
	} {
		pid := NewPID(gains, bounds)
		for i := 0; i < 200; i++ {
			setpoint := float64(i%17) - 8
			measurement := float64((i*7)%23) - 11
			out := pid.Step(setpoint, measurement, dt)
			test.That(t, out, test.ShouldBeBetweenOrEqual, bounds.Min, bounds.Max)
		}
	}
}

func TestStepIntegralAccumulation(t *testing.T) {
	pid := NewPID(Gains{Ki: 1.0, Tau: 1.0}, Bounds{Min: -100, Max: 100})
	out := pid.Step(1.0, 0.0, time.Second)
	test.That(t, out, test.ShouldAlmostEqual, 1.0)
	out = pid.Step(1.0, 0.0, time.Second)
	test.That(t, out, test.ShouldAlmostEqual, 2.0)
}

func TestStepDerivativeOnMeasurement(t *testing.T) {
	// a setpoint step must not kick the derivative term
	pid := NewPID(Gains{Kd: 1.0, Tau: 1.0}, Bounds{Min: -100, Max: 100})
	out := pid.Step(0.0, 5.0, time.Second)
	test.That(t, out, test.ShouldAlmostEqual, -5.0)
	// setpoint jumps, measurement holds: derivative goes back to zero
	out = pid.Step(100.0, 5.0, time.Second)
	test.That(t, out, test.ShouldAlmostEqual, 0.0)
}

func TestStepDerivativeFilter(t *testing.T) {
	pid := NewPID(Gains{Kd: 1.0, Tau: 0.5}, Bounds{Min: -100, Max: 100})
	out := pid.Step(0.0, 0.0, time.Second)
	test.That(t, out, test.ShouldAlmostEqual, 0.0)
	// raw derivative 1.0, filtered 0.5
	out = pid.Step(0.0, 1.0, time.Second)
	test.That(t, out, test.ShouldAlmostEqual, -0.5)
	// raw derivative 0.0, filter decays
	out = pid.Step(0.0, 1.0, time.Second)
	test.That(t, out, test.ShouldAlmostEqual, -0.25)
}

func TestReconfigurePreservesAccumulators(t *testing.T) {
	pid := NewPID(Gains{Ki: 1.0, Tau: 1.0}, Bounds{Min: -100, Max: 100})
	out := pid.Step(1.0, 0.0, time.Second)
	test.That(t, out, test.ShouldAlmostEqual, 1.0)

	pid.Reconfigure(Gains{Ki: 1.0, Kp: 0.0, Tau: 1.0}, Bounds{Min: -100, Max: 100})
	out = pid.Step(1.0, 0.0, time.Second)
	test.That(t, out, test.ShouldAlmostEqual, 2.0)

	test.That(t, pid.Gains().Ki, test.ShouldEqual, 1.0)
	test.That(t, pid.Bounds().Max, test.ShouldEqual, 100.0)
}

func TestReset(t *testing.T) {
	pid := NewPID(Gains{Ki: 1.0, Tau: 1.0}, Bounds{Min: -100, Max: 100})
	pid.Step(1.0, 0.0, time.Second)
	pid.Reset()
	out := pid.Step(1.0, 0.0, time.Second)
	test.That(t, out, test.ShouldAlmostEqual, 1.0)
}

func TestBoundsClamp(t *testing.T) {
	b := Bounds{Min: -1, Max: 1}
	test.That(t, b.Clamp(0.5), test.ShouldEqual, 0.5)
	test.That(t, b.Clamp(2), test.ShouldEqual, 1.0)
	test.That(t, b.Clamp(-2), test.ShouldEqual, -1.0)
	test.That(t, b.Clamp(1), test.ShouldEqual, 1.0)
	test.That(t, b.Clamp(-1), test.ShouldEqual, -1.0)
}
