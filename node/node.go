package node

import (
	"context"
	"sync"

	"github.com/edaniels/golog"
	"go.uber.org/multierr"

	"go.viam.com/pidloop/control"
	"go.viam.com/pidloop/message"
	"go.viam.com/pidloop/pubsub"
)

// Node owns a set of running controllers built from one config.
type Node struct {
	logger    golog.Logger
	transport pubsub.Transport
	scheduler control.Scheduler
	schemas   message.Lookup

	mu          sync.Mutex
	controllers map[string]*control.Controller
	closed      bool
}

// New builds, validates, and starts one controller per config entry. Any
// failure tears down the controllers already started and reports the reason;
// a node never comes up partially.
func New(
	cfg *Config,
	transport pubsub.Transport,
	scheduler control.Scheduler,
	schemas message.Lookup,
	logger golog.Logger,
) (*Node, error) {
	named, err := cfg.controllerConfigs()
	if err != nil {
		return nil, err
	}
	n := &Node{
		logger:      logger,
		transport:   transport,
		scheduler:   scheduler,
		schemas:     schemas,
		controllers: map[string]*control.Controller{},
	}
	for _, nc := range named {
		ctrl, err := control.NewController(nc.name, nc.cfg, transport, scheduler, schemas, logger)
		if err != nil {
			return nil, multierr.Combine(err, n.Close(context.Background()))
		}
		if err := ctrl.Start(); err != nil {
			return nil, multierr.Combine(err, n.Close(context.Background()))
		}
		n.controllers[nc.name] = ctrl
	}
	logger.Infow("node running", "controllers", len(n.controllers))
	return n, nil
}

// Reconfigure applies the tuning parameters (gains, filter strength, output
// bounds) from a fresh config to the running controllers, matched by name.
// Structural options (channels, paths, types, rate) require a restart and
// are ignored here; entries naming unknown controllers are skipped with a
// warning.
func (n *Node) Reconfigure(cfg *Config) error {
	named, err := cfg.controllerConfigs()
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	updated := map[string]bool{}
	for _, nc := range named {
		ctrl, ok := n.controllers[nc.name]
		if !ok {
			n.logger.Warnw("config names unknown controller, restart to add it", "name", nc.name)
			continue
		}
		ctrl.UpdateTuning(nc.cfg.Gains(), nc.cfg.Bounds())
		updated[nc.name] = true
	}
	for name := range n.controllers {
		if !updated[name] {
			n.logger.Warnw("running controller missing from config, restart to remove it", "name", name)
		}
	}
	return nil
}

// Close shuts every controller down, combining any errors.
func (n *Node) Close(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	var err error
	for _, ctrl := range n.controllers {
		err = multierr.Combine(err, ctrl.Close(ctx))
	}
	return err
}
