package control

import (
	"context"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/pidloop/message"
	"go.viam.com/pidloop/pubsub"
)

// inboxSize bounds how many pending events a controller may hold. Inbound
// envelopes beyond it are dropped (only the latest value matters); ticks and
// reconfigurations are never dropped.
const inboxSize = 32

type eventKind int

const (
	eventEnvelope eventKind = iota
	eventTick
	eventReconfigure
)

type event struct {
	kind   eventKind
	env    pubsub.Envelope
	gains  Gains
	bounds Bounds
}

// Controller runs one feedback loop. It stores the latest setpoint and
// measurement seen on its source channels and, at a fixed rate, publishes a
// PID output computed from them.
//
// All state below the inbox is owned by the single run goroutine; external
// goroutines only enqueue events, so no locking guards the PID or the stored
// input values.
type Controller struct {
	name   string
	cfg    Config
	logger golog.Logger

	transport pubsub.Transport
	scheduler Scheduler

	setpointSrc    Source
	measurementSrc Source
	sink           Sink
	outputSchema   message.Schema

	inbox chan event

	pid             *PID
	setpoint        float64
	haveSetpoint    bool
	measurement     float64
	haveMeasurement bool
	tick            TickHandle

	mu                      sync.Mutex
	started                 bool
	closed                  bool
	cancelCtx               context.Context
	cancel                  context.CancelFunc
	activeBackgroundWorkers sync.WaitGroup
}

// NewController validates cfg and builds a controller. A validation failure
// rejects the configuration outright: the error describes the reason and no
// controller is returned.
func NewController(
	name string,
	cfg Config,
	transport pubsub.Transport,
	scheduler Scheduler,
	schemas message.Lookup,
	logger golog.Logger,
) (*Controller, error) {
	if err := cfg.Validate(name, schemas); err != nil {
		return nil, err
	}
	setpointSrc, measurementSrc, sink, err := cfg.resolve()
	if err != nil {
		return nil, utils.NewConfigValidationError(name, err)
	}
	outputSchema, ok := schemas.Lookup(sink.Type)
	if !ok {
		return nil, utils.NewConfigValidationError(name, errors.Wrapf(message.ErrUnknownType, "output type %q", sink.Type))
	}
	cancelCtx, cancel := context.WithCancel(context.Background())
	return &Controller{
		name:           name,
		cfg:            cfg,
		logger:         logger,
		transport:      transport,
		scheduler:      scheduler,
		setpointSrc:    setpointSrc,
		measurementSrc: measurementSrc,
		sink:           sink,
		outputSchema:   outputSchema,
		inbox:          make(chan event, inboxSize),
		pid:            NewPID(cfg.Gains(), cfg.Bounds()),
		cancelCtx:      cancelCtx,
		cancel:         cancel,
	}, nil
}

// Name returns the controller's instance identity on the transport.
func (c *Controller) Name() string {
	return c.name
}

// Start subscribes the source channels, arms the first tick, and launches
// the loop goroutine.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.Errorf("controller %q already closed", c.name)
	}
	if c.started {
		return errors.Errorf("controller %q already started", c.name)
	}
	deliver := func(env pubsub.Envelope) {
		c.enqueueEnvelope(env)
	}
	if err := c.transport.Subscribe(c.name, c.setpointSrc.Address, deliver); err != nil {
		return errors.Wrapf(err, "cannot subscribe %q to setpoint channel", c.name)
	}
	if err := c.transport.Subscribe(c.name, c.measurementSrc.Address, deliver); err != nil {
		utils.UncheckedError(c.transport.Unsubscribe(c.name))
		return errors.Wrapf(err, "cannot subscribe %q to measurement channel", c.name)
	}
	c.tick = c.scheduler.ScheduleOnce(c.cfg.Period(), c.onTickFired)
	c.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(c.run, c.activeBackgroundWorkers.Done)
	c.started = true
	c.logger.Infow("controller running",
		"name", c.name,
		"period", c.cfg.Period(),
		"setpoint", c.setpointSrc.Address,
		"measurement", c.measurementSrc.Address,
		"output", c.sink.Address,
	)
	return nil
}

// UpdateTuning replaces the gains and bounds of the live controller. The
// update is an ordinary inbox event, so it is ordered with ticks and inbound
// messages, and it preserves the stored inputs and PID accumulators.
func (c *Controller) UpdateTuning(gains Gains, bounds Bounds) {
	c.enqueueMust(event{kind: eventReconfigure, gains: gains, bounds: bounds})
}

// Close stops the loop: the pending tick is cancelled, the subscriptions
// are released, and no further events are processed. Closing twice is a
// no-op.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	c.mu.Unlock()

	c.cancel()
	if started {
		c.activeBackgroundWorkers.Wait()
		if err := c.transport.Unsubscribe(c.name); err != nil {
			return errors.Wrapf(err, "cannot unsubscribe controller %q", c.name)
		}
	}
	c.logger.Infow("controller stopped", "name", c.name)
	return nil
}

// enqueueEnvelope is best effort: when the inbox is full the newest envelope
// loses, since a later one will refresh the same stored value anyway.
func (c *Controller) enqueueEnvelope(env pubsub.Envelope) {
	select {
	case c.inbox <- event{kind: eventEnvelope, env: env}:
	default:
		c.logger.Debugw("inbox full, dropping envelope", "name", c.name, "channel", env.Address)
	}
}

// enqueueMust blocks until the event is queued or the controller shuts
// down. Ticks and reconfigurations go through here because losing a tick
// would stall the cycle forever.
func (c *Controller) enqueueMust(e event) {
	select {
	case c.inbox <- e:
	case <-c.cancelCtx.Done():
	}
}

func (c *Controller) onTickFired() {
	c.enqueueMust(event{kind: eventTick})
}

func (c *Controller) run() {
	defer func() {
		if c.tick != nil {
			c.tick.Cancel()
		}
	}()
	for {
		select {
		case <-c.cancelCtx.Done():
			return
		case e := <-c.inbox:
			switch e.kind {
			case eventEnvelope:
				c.handleEnvelope(e.env)
			case eventTick:
				c.handleTick()
			case eventReconfigure:
				c.pid.Reconfigure(e.gains, e.bounds)
				c.logger.Infow("tuning updated", "name", c.name, "gains", e.gains, "bounds", e.bounds)
			}
		}
	}
}

func (c *Controller) handleEnvelope(env pubsub.Envelope) {
	switch {
	case c.setpointSrc.Matches(env):
		v, err := message.Extract(env.Message.Payload, c.setpointSrc.Path)
		if err != nil {
			c.logger.Debugw("setpoint extraction failed, keeping previous value", "name", c.name, "error", err)
			return
		}
		c.setpoint = v
		c.haveSetpoint = true
	case c.measurementSrc.Matches(env):
		v, err := message.Extract(env.Message.Payload, c.measurementSrc.Path)
		if err != nil {
			c.logger.Debugw("measurement extraction failed, keeping previous value", "name", c.name, "error", err)
			return
		}
		c.measurement = v
		c.haveMeasurement = true
	}
}

func (c *Controller) handleTick() {
	// Re-arm unconditionally, computed or not, to keep the cycle alive.
	defer func() {
		c.tick = c.scheduler.ScheduleOnce(c.cfg.Period(), c.onTickFired)
	}()
	if !c.haveSetpoint || !c.haveMeasurement {
		return
	}
	out := c.pid.Step(c.setpoint, c.measurement, c.cfg.Period())
	msg, err := message.Build(c.outputSchema, c.sink.Frame, c.sink.Field, out)
	if err != nil {
		// Unreachable after validation; only a schema re-registration
		// behind our back could trigger it.
		c.logger.Errorw("cannot build output message", "name", c.name, "error", err)
		return
	}
	if err := c.transport.Publish(c.name, c.sink.Address, msg); err != nil {
		c.logger.Warnw("cannot publish output", "name", c.name, "channel", c.sink.Address, "error", err)
	}
}
