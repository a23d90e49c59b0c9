package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/relay/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBus is a Bus backed by Redis PUBLISH/SUBSCRIBE. The channel name is
// the topic and the message body is the JSON envelope.
type RedisBus struct {
	client *redis.Client
	origin string
	logger zerolog.Logger

	mu   sync.Mutex
	subs map[*redisSub]struct{}
}

type redisSub struct {
	bus    *RedisBus
	topic  string
	pubsub *redis.PubSub
	done   chan struct{}
	once   sync.Once
}

// NewRedisBus creates a bus on an existing client. The caller keeps ownership
// of the client.
func NewRedisBus(client *redis.Client, opts Options) *RedisBus {
	return &RedisBus{
		client: client,
		origin: opts.Origin,
		logger: opts.Logger,
		subs:   make(map[*redisSub]struct{}),
	}
}

// Publish sends the event to every Redis subscriber of topic
func (b *RedisBus) Publish(ctx context.Context, topic string, payload any) error {
	_, data, err := newEnvelope(topic, b.origin, payload)
	if err != nil {
		metrics.BusErrors.WithLabelValues("publish").Inc()
		return err
	}
	if err := b.client.Publish(ctx, topic, data).Err(); err != nil {
		metrics.BusErrors.WithLabelValues("publish").Inc()
		return fmt.Errorf("publishing to redis channel %s: %w", topic, err)
	}
	metrics.BusPublished.WithLabelValues(topic).Inc()
	return nil
}

// Subscribe waits for Redis to confirm the subscription before returning, so
// any publish issued afterwards is guaranteed to be observed.
func (b *RedisBus) Subscribe(ctx context.Context, topic string, handler Handler) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		metrics.BusErrors.WithLabelValues("subscribe").Inc()
		return nil, fmt.Errorf("subscribing to redis channel %s: %w", topic, err)
	}

	sub := &redisSub{
		bus:    b,
		topic:  topic,
		pubsub: pubsub,
		done:   make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	handlerCtx := context.WithoutCancel(ctx)
	messages := pubsub.Channel()
	go func() {
		defer close(sub.done)
		for msg := range messages {
			env := decodeWire(msg.Channel, []byte(msg.Payload))
			invoke(handlerCtx, b.logger, handler, env)
		}
	}()

	b.logger.Debug().Str("topic", topic).Msg("subscribed to redis channel")
	return sub, nil
}

// Close unsubscribes every subscription created by this bus
func (b *RedisBus) Close() error {
	b.mu.Lock()
	subs := make([]*redisSub, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	return nil
}

func (s *redisSub) Topic() string {
	return s.topic
}

func (s *redisSub) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()

		err = s.pubsub.Close()
		<-s.done
	})
	return err
}
