package events

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cuemby/relay/pkg/metrics"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSBus is a Bus backed by core NATS subjects. Topics map to subjects by
// replacing ':' with '.', so content:liked is published on content.liked.
type NATSBus struct {
	conn   *nats.Conn
	origin string
	logger zerolog.Logger

	mu   sync.Mutex
	subs map[*natsSub]struct{}
}

type natsSub struct {
	bus   *NATSBus
	topic string
	sub   *nats.Subscription
	once  sync.Once
}

// NewNATSBus creates a bus on an existing connection. The caller keeps
// ownership of the connection.
func NewNATSBus(conn *nats.Conn, opts Options) *NATSBus {
	return &NATSBus{
		conn:   conn,
		origin: opts.Origin,
		logger: opts.Logger,
		subs:   make(map[*natsSub]struct{}),
	}
}

// Subject returns the NATS subject used for topic
func Subject(topic string) string {
	return strings.ReplaceAll(topic, ":", ".")
}

// Publish hands the event to the NATS client's outbound buffer
func (b *NATSBus) Publish(ctx context.Context, topic string, payload any) error {
	_, data, err := newEnvelope(topic, b.origin, payload)
	if err != nil {
		metrics.BusErrors.WithLabelValues("publish").Inc()
		return err
	}
	if err := b.conn.Publish(Subject(topic), data); err != nil {
		metrics.BusErrors.WithLabelValues("publish").Inc()
		return fmt.Errorf("publishing to nats subject %s: %w", Subject(topic), err)
	}
	metrics.BusPublished.WithLabelValues(topic).Inc()
	return nil
}

// Subscribe registers handler; the NATS client delivers each subscription's
// messages on its own goroutine.
func (b *NATSBus) Subscribe(ctx context.Context, topic string, handler Handler) (Subscription, error) {
	handlerCtx := context.WithoutCancel(ctx)
	s, err := b.conn.Subscribe(Subject(topic), func(msg *nats.Msg) {
		invoke(handlerCtx, b.logger, handler, decodeWire(topic, msg.Data))
	})
	if err != nil {
		metrics.BusErrors.WithLabelValues("subscribe").Inc()
		return nil, fmt.Errorf("subscribing to nats subject %s: %w", Subject(topic), err)
	}
	// Make sure the server has registered interest before returning
	if err := b.conn.Flush(); err != nil {
		_ = s.Unsubscribe()
		metrics.BusErrors.WithLabelValues("subscribe").Inc()
		return nil, fmt.Errorf("flushing nats subscription %s: %w", Subject(topic), err)
	}

	sub := &natsSub{bus: b, topic: topic, sub: s}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub, nil
}

// Close unsubscribes every subscription created by this bus
func (b *NATSBus) Close() error {
	b.mu.Lock()
	subs := make([]*natsSub, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	return nil
}

func (s *natsSub) Topic() string {
	return s.topic
}

func (s *natsSub) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		err = s.sub.Unsubscribe()
	})
	return err
}
