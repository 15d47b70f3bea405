// Package control implements a generic feedback controller: a PID state
// machine driven at a fixed rate by a single-goroutine loop that takes its
// setpoint and measurement from pub/sub channels and publishes its output to
// another.
package control

import "time"

// Gains holds the PID coefficients. Tau sets the strength of the low-pass
// filter applied to the derivative term, in [0, 1]; 1 disables filtering.
type Gains struct {
	Kp  float64
	Ki  float64
	Kd  float64
	Tau float64
}

// Bounds is the closed interval the output is clamped to.
type Bounds struct {
	Min float64
	Max float64
}

// Clamp restricts v to the interval.
func (b Bounds) Clamp(v float64) float64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// PID is the discrete PID state machine. It is owned and stepped by a single
// controller goroutine and is not safe for concurrent use.
type PID struct {
	gains  Gains
	bounds Bounds

	integral        float64
	filteredDeriv   float64
	prevMeasurement float64
}

// NewPID returns a PID with zeroed accumulators.
func NewPID(gains Gains, bounds Bounds) *PID {
	return &PID{gains: gains, bounds: bounds}
}

// Step advances the controller by dt and returns the clamped output.
//
// The derivative acts on the measurement rather than the error so a setpoint
// step does not spike it. The integral accumulates plainly; clamping the
// output does not un-accumulate it, so poorly tuned setups can wind up.
// Inputs must be finite.
func (p *PID) Step(setpoint, measurement float64, dt time.Duration) float64 {
	dtS := dt.Seconds()
	errVal := setpoint - measurement
	p.integral += errVal * dtS
	rawDeriv := (measurement - p.prevMeasurement) / dtS
	p.filteredDeriv = p.gains.Tau*rawDeriv + (1-p.gains.Tau)*p.filteredDeriv
	p.prevMeasurement = measurement
	out := p.gains.Kp*errVal + p.gains.Ki*p.integral - p.gains.Kd*p.filteredDeriv
	return p.bounds.Clamp(out)
}

// Reconfigure swaps in new coefficients and bounds without touching the
// accumulated state, so a live tuning change cannot jump the output.
func (p *PID) Reconfigure(gains Gains, bounds Bounds) {
	p.gains = gains
	p.bounds = bounds
}

// Reset zeroes the accumulated state. Nothing calls this implicitly.
func (p *PID) Reset() {
	p.integral = 0
	p.filteredDeriv = 0
	p.prevMeasurement = 0
}

// Gains returns the coefficients currently in effect.
func (p *PID) Gains() Gains {
	return p.gains
}

// Bounds returns the clamp interval currently in effect.
func (p *PID) Bounds() Bounds {
	return p.bounds
}
