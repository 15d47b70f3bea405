// Package mqttpubsub bridges the pubsub transport contract onto an MQTT
// broker, so controllers on different processes can exchange channels.
// Channel addresses map directly onto MQTT topics and envelopes travel as
// JSON.
package mqttpubsub

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/pidloop/message"
	"go.viam.com/pidloop/pubsub"
)

const defaultQoS = 1

type subscription struct {
	id      string
	topic   string
	deliver func(pubsub.Envelope)
}

// Transport is a pubsub.Transport carried over an MQTT connection.
type Transport struct {
	logger golog.Logger
	conn   *autopaho.ConnectionManager

	cancelCtx context.Context
	cancel    context.CancelFunc

	mu   sync.Mutex
	subs []*subscription
}

// New connects to the broker at brokerURL and returns a ready transport.
func New(ctx context.Context, brokerURL string, logger golog.Logger) (*Transport, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, errors.Wrapf(err, "bad broker url %q", brokerURL)
	}
	cancelCtx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		logger:    logger,
		cancelCtx: cancelCtx,
		cancel:    cancel,
	}
	cliCfg := autopaho.ClientConfig{
		BrokerUrls: []*url.URL{u},
		KeepAlive:  20,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			logger.Infow("mqtt connection up", "broker", brokerURL)
			t.resubscribeAll(cm)
		},
		OnConnectError: func(err error) {
			logger.Warnw("mqtt connection attempt failed", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "pidloop-" + uuid.NewString(),
			Router:   paho.NewSingleHandlerRouter(t.route),
			OnClientError: func(err error) {
				logger.Warnw("mqtt client error", "error", err)
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				logger.Warnw("mqtt server disconnect", "reasonCode", d.ReasonCode)
			},
		},
	}
	conn, err := autopaho.NewConnection(cancelCtx, cliCfg)
	if err != nil {
		cancel()
		return nil, err
	}
	if err := conn.AwaitConnection(ctx); err != nil {
		cancel()
		return nil, errors.Wrap(err, "cannot reach mqtt broker")
	}
	t.conn = conn
	return t, nil
}

// Subscribe implements pubsub.Transport.
func (t *Transport) Subscribe(id string, addr pubsub.Address, deliver func(pubsub.Envelope)) error {
	topic := addr.String()
	t.mu.Lock()
	t.subs = append(t.subs, &subscription{id: id, topic: topic, deliver: deliver})
	t.mu.Unlock()
	if _, err := t.conn.Subscribe(t.cancelCtx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: defaultQoS}},
	}); err != nil {
		t.removeSubscription(id, topic)
		return errors.Wrapf(err, "cannot subscribe to %q", topic)
	}
	return nil
}

// Unsubscribe implements pubsub.Transport.
func (t *Transport) Unsubscribe(id string) error {
	t.mu.Lock()
	kept := t.subs[:0]
	var orphaned []string
	for _, s := range t.subs {
		if s.id != id {
			kept = append(kept, s)
		} else {
			orphaned = append(orphaned, s.topic)
		}
	}
	t.subs = kept
	var release []string
	for _, topic := range orphaned {
		still := false
		for _, s := range t.subs {
			if s.topic == topic {
				still = true
				break
			}
		}
		if !still {
			release = append(release, topic)
		}
	}
	t.mu.Unlock()
	if len(release) == 0 {
		return nil
	}
	if _, err := t.conn.Unsubscribe(t.cancelCtx, &paho.Unsubscribe{Topics: release}); err != nil {
		return errors.Wrapf(err, "cannot unsubscribe topics %v", release)
	}
	return nil
}

// Publish implements pubsub.Transport.
func (t *Transport) Publish(id string, addr pubsub.Address, msg message.Message) error {
	payload, err := encodeEnvelope(msg)
	if err != nil {
		return err
	}
	if _, err := t.conn.Publish(t.cancelCtx, &paho.Publish{
		QoS:     defaultQoS,
		Topic:   addr.String(),
		Payload: payload,
	}); err != nil {
		return errors.Wrapf(err, "cannot publish to %q", addr)
	}
	return nil
}

// Close disconnects from the broker.
func (t *Transport) Close(ctx context.Context) error {
	defer t.cancel()
	if t.conn == nil {
		return nil
	}
	return t.conn.Disconnect(ctx)
}

func (t *Transport) route(m *paho.Publish) {
	addr, err := pubsub.ParseAddress(m.Topic)
	if err != nil {
		t.logger.Warnw("dropping message on unroutable topic", "topic", m.Topic, "error", err)
		return
	}
	msg, err := decodeEnvelope(m.Payload)
	if err != nil {
		t.logger.Warnw("dropping undecodable message", "topic", m.Topic, "error", err)
		return
	}
	env := pubsub.Envelope{Address: addr, Message: msg}
	t.mu.Lock()
	targets := make([]func(pubsub.Envelope), 0, len(t.subs))
	for _, s := range t.subs {
		if s.topic == m.Topic {
			targets = append(targets, s.deliver)
		}
	}
	t.mu.Unlock()
	for _, deliver := range targets {
		deliver(env)
	}
}

func (t *Transport) resubscribeAll(cm *autopaho.ConnectionManager) {
	t.mu.Lock()
	seen := map[string]bool{}
	var opts []paho.SubscribeOptions
	for _, s := range t.subs {
		if seen[s.topic] {
			continue
		}
		seen[s.topic] = true
		opts = append(opts, paho.SubscribeOptions{Topic: s.topic, QoS: defaultQoS})
	}
	t.mu.Unlock()
	if len(opts) == 0 {
		return
	}
	if _, err := cm.Subscribe(t.cancelCtx, &paho.Subscribe{Subscriptions: opts}); err != nil {
		t.logger.Warnw("cannot restore subscriptions", "error", err)
	}
}

func (t *Transport) removeSubscription(id, topic string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.subs[:0]
	for _, s := range t.subs {
		if s.id != id || s.topic != topic {
			kept = append(kept, s)
		}
	}
	t.subs = kept
}

// wireEnvelope is the JSON shape of a message on an MQTT topic.
type wireEnvelope struct {
	Type    string        `json:"type"`
	Frame   string        `json:"frame"`
	Payload message.Value `json:"payload"`
}

func encodeEnvelope(msg message.Message) ([]byte, error) {
	data, err := json.Marshal(wireEnvelope{Type: msg.Type, Frame: msg.Frame, Payload: msg.Payload})
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode envelope")
	}
	return data, nil
}

func decodeEnvelope(data []byte) (message.Message, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return message.Message{}, errors.Wrap(err, "cannot decode envelope")
	}
	if wire.Type == "" {
		return message.Message{}, errors.New("envelope missing type tag")
	}
	return message.Message{Type: wire.Type, Frame: wire.Frame, Payload: wire.Payload}, nil
}
