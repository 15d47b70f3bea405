package pubsub

import (
	"sync"

	"github.com/edaniels/golog"

	"go.viam.com/pidloop/message"
)

type subscription struct {
	id      string
	deliver func(Envelope)
}

// Broker is an in-process Transport. Delivery happens synchronously on the
// publisher's goroutine under the broker lock, which keeps each subscriber's
// envelope order identical to publish order.
type Broker struct {
	mu     sync.Mutex
	subs   map[string][]subscription
	logger golog.Logger
}

// NewBroker returns an empty in-process broker.
func NewBroker(logger golog.Logger) *Broker {
	return &Broker{
		subs:   map[string][]subscription{},
		logger: logger,
	}
}

// Subscribe implements Transport.
func (b *Broker) Subscribe(id string, addr Address, deliver func(Envelope)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := addr.String()
	b.subs[key] = append(b.subs[key], subscription{id: id, deliver: deliver})
	b.logger.Debugw("subscribed", "id", id, "channel", key)
	return nil
}

// Unsubscribe implements Transport.
func (b *Broker) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, subs := range b.subs {
		kept := subs[:0]
		for _, s := range subs {
			if s.id != id {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(b.subs, key)
			continue
		}
		b.subs[key] = kept
	}
	return nil
}

// Publish implements Transport.
func (b *Broker) Publish(id string, addr Address, msg message.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	env := Envelope{Address: addr, Message: msg}
	for _, s := range b.subs[addr.String()] {
		s.deliver(env)
	}
	return nil
}
