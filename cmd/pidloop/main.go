// Package main runs a set of PID controllers from a JSON config file,
// wired together over an in-process broker or an external MQTT broker.
package main

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/pidloop/control"
	"go.viam.com/pidloop/node"
	"go.viam.com/pidloop/pubsub"
	"go.viam.com/pidloop/pubsub/mqttpubsub"
)

var logger = golog.NewDevelopmentLogger("pidloop")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"config,required,usage=path to node config file"`
	MQTTBroker string `flag:"mqtt,usage=MQTT broker URL; in-process broker when empty"`
	NoWatch    bool   `flag:"no-watch,usage=do not apply tuning updates on config file changes"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg, err := node.ReadConfig(argsParsed.ConfigFile)
	if err != nil {
		return err
	}
	schemas, err := cfg.SchemaRegistry()
	if err != nil {
		return err
	}

	var transport pubsub.Transport
	var closeTransport func(context.Context) error
	if argsParsed.MQTTBroker != "" {
		mqttTransport, err := mqttpubsub.New(ctx, argsParsed.MQTTBroker, logger)
		if err != nil {
			return errors.Wrap(err, "cannot connect transport")
		}
		transport = mqttTransport
		closeTransport = mqttTransport.Close
	} else {
		transport = pubsub.NewBroker(logger)
	}

	n, err := node.New(cfg, transport, control.NewScheduler(clock.New()), schemas, logger)
	if err != nil {
		if closeTransport != nil {
			return multierr.Combine(err, closeTransport(context.Background()))
		}
		return err
	}
	if !argsParsed.NoWatch {
		if err := n.Watch(ctx, argsParsed.ConfigFile); err != nil {
			return multierr.Combine(err, n.Close(context.Background()))
		}
	}

	<-ctx.Done()
	err = n.Close(context.Background())
	if closeTransport != nil {
		err = multierr.Combine(err, closeTransport(context.Background()))
	}
	return err
}
