package control

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Scheduler arms one-shot ticks. Fire callbacks run on the clock's goroutine;
// callers are expected to hand the event off to their own queue immediately.
type Scheduler interface {
	ScheduleOnce(delay time.Duration, fire func()) TickHandle
}

// TickHandle cancels a pending tick. Cancel is idempotent and a no-op once
// the tick has fired.
type TickHandle interface {
	Cancel()
}

type clockScheduler struct {
	c clock.Clock
}

// NewScheduler returns a Scheduler backed by the given clock. Pass
// clock.New() in production and a mock clock in tests.
func NewScheduler(c clock.Clock) Scheduler {
	return &clockScheduler{c: c}
}

func (s *clockScheduler) ScheduleOnce(delay time.Duration, fire func()) TickHandle {
	return &clockTick{timer: s.c.AfterFunc(delay, fire)}
}

type clockTick struct {
	timer *clock.Timer
}

func (t *clockTick) Cancel() {
	t.timer.Stop()
}
