// Package pubsub defines the transport contract controllers speak, plus an
// in-process broker implementation of it for single-process deployments.
package pubsub

import (
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/pidloop/message"
)

// Address is a hierarchical channel name, an ordered sequence of tokens.
// Equality is structural.
type Address []string

// ParseAddress parses a slash-separated channel address such as
// "robot/arm/setpoint". Empty addresses and empty tokens are rejected.
func ParseAddress(s string) (Address, error) {
	trimmed := strings.Trim(s, "/")
	if trimmed == "" {
		return nil, errors.New("empty channel address")
	}
	tokens := strings.Split(trimmed, "/")
	for _, tok := range tokens {
		if tok == "" {
			return nil, errors.Errorf("empty token in channel address %q", s)
		}
	}
	return Address(tokens), nil
}

func (a Address) String() string {
	return strings.Join(a, "/")
}

// Equal reports structural equality of two addresses.
func (a Address) Equal(other Address) bool {
	if len(a) != len(other) {
		return false
	}
	for i, tok := range a {
		if other[i] != tok {
			return false
		}
	}
	return true
}

// Envelope is one delivered message together with the address it arrived on.
type Envelope struct {
	Address Address
	Message message.Message
}

// Transport multiplexes messages across named channels. Deliver callbacks
// must not block; subscribers hand envelopes off to their own queues.
type Transport interface {
	// Subscribe registers the identified subscriber on a channel address.
	Subscribe(id string, addr Address, deliver func(Envelope)) error
	// Unsubscribe drops all of the identified subscriber's registrations.
	// Unsubscribing an unknown id is a no-op.
	Unsubscribe(id string) error
	// Publish sends a message to every subscriber of the channel address.
	Publish(id string, addr Address, msg message.Message) error
}
