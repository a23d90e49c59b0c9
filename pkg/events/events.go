package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/relay/pkg/metrics"
	"github.com/rs/zerolog"
)

// Topic names are part of the wire contract between write-path services and
// gateway shards.
const (
	TopicContentCreated  = "content:created"
	TopicContentLiked    = "content:liked"
	TopicPresenceOnline  = "presence:online"
	TopicPresenceOffline = "presence:offline"
)

// Envelope is the message format carried on every topic.
type Envelope struct {
	Topic       string          `json:"topic"`
	Payload     json.RawMessage `json:"payload"`
	OriginShard string          `json:"originShard,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Decode unmarshals the payload into v
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", e.Topic, err)
	}
	return nil
}

// Handler is invoked once per message delivered to a subscription. Handlers
// run on the subscription's own goroutine, never on the publisher's.
type Handler func(ctx context.Context, env Envelope)

// Subscription is an active registration of a Handler on a topic
type Subscription interface {
	Topic() string
	Unsubscribe() error
}

// Bus is a fire-and-forget publish/subscribe channel keyed by topic.
//
// Publish returns once the message is handed to the transport and never waits
// for subscribers. Subscribers that register after a publish never see it.
type Bus interface {
	Publish(ctx context.Context, topic string, payload any) error
	Subscribe(ctx context.Context, topic string, handler Handler) (Subscription, error)
	Close() error
}

// Options are shared by all bus implementations
type Options struct {
	// Origin is stamped into every published envelope for diagnostics
	Origin string
	// QueueSize bounds the per-subscription backlog of the in-memory broker
	QueueSize int
	Logger    zerolog.Logger
}

func newEnvelope(topic, origin string, payload any) (Envelope, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, nil, fmt.Errorf("marshalling %s payload: %w", topic, err)
	}
	env := Envelope{
		Topic:       topic,
		Payload:     raw,
		OriginShard: origin,
		Timestamp:   time.Now().UTC(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, nil, fmt.Errorf("marshalling envelope: %w", err)
	}
	return env, data, nil
}

// decodeWire parses a message received from an external transport. Messages
// published by producers that do not use envelopes are wrapped as-is.
func decodeWire(topic string, data []byte) Envelope {
	var env Envelope
	if err := json.Unmarshal(data, &env); err == nil && env.Topic != "" && len(env.Payload) > 0 {
		return env
	}
	return Envelope{
		Topic:     topic,
		Payload:   json.RawMessage(data),
		Timestamp: time.Now().UTC(),
	}
}

// invoke runs h, containing any panic so one handler cannot take the process
// down or stop later deliveries.
func invoke(ctx context.Context, logger zerolog.Logger, h Handler, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			metrics.BusErrors.WithLabelValues("handler").Inc()
			logger.Error().
				Interface("panic", r).
				Str("topic", env.Topic).
				Msg("event handler panicked")
		}
	}()
	metrics.BusReceived.WithLabelValues(env.Topic).Inc()
	h(ctx, env)
}
