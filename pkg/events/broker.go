package events

import (
	"context"
	"errors"
	"sync"

	"github.com/cuemby/relay/pkg/metrics"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by operations on a closed bus
var ErrClosed = errors.New("bus closed")

// Broker is an in-process Bus. Each subscription owns a buffered queue and a
// goroutine; a full queue drops the message rather than blocking publishers.
type Broker struct {
	subscribers map[string]map[*brokerSub]struct{}
	mu          sync.RWMutex
	closed      bool

	origin    string
	queueSize int
	logger    zerolog.Logger
}

type brokerSub struct {
	broker  *Broker
	topic   string
	handler Handler
	queue   chan Envelope
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// NewBroker creates a new in-memory broker
func NewBroker(opts Options) *Broker {
	size := opts.QueueSize
	if size <= 0 {
		size = 256
	}
	return &Broker{
		subscribers: make(map[string]map[*brokerSub]struct{}),
		origin:      opts.Origin,
		queueSize:   size,
		logger:      opts.Logger,
	}
}

// Publish fans the event out to the subscriptions registered at call time
func (b *Broker) Publish(ctx context.Context, topic string, payload any) error {
	env, _, err := newEnvelope(topic, b.origin, payload)
	if err != nil {
		metrics.BusErrors.WithLabelValues("publish").Inc()
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	for sub := range b.subscribers[topic] {
		select {
		case sub.queue <- env:
		default:
			// Subscriber queue full, skip
			metrics.BusDropped.Inc()
			b.logger.Warn().Str("topic", topic).Msg("subscription queue full, dropping event")
		}
	}
	metrics.BusPublished.WithLabelValues(topic).Inc()
	return nil
}

// Subscribe registers handler on topic
func (b *Broker) Subscribe(ctx context.Context, topic string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &brokerSub{
		broker:  b,
		topic:   topic,
		handler: handler,
		queue:   make(chan Envelope, b.queueSize),
		ctx:     subCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[*brokerSub]struct{})
	}
	b.subscribers[topic][sub] = struct{}{}

	go sub.run()
	return sub, nil
}

// SubscriberCount returns the number of active subscriptions on topic
func (b *Broker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}

// Close stops every subscription and rejects further use
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var subs []*brokerSub
	for _, set := range b.subscribers {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	b.subscribers = make(map[string]map[*brokerSub]struct{})
	b.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	return nil
}

func (s *brokerSub) run() {
	defer close(s.done)
	for {
		select {
		case env := <-s.queue:
			invoke(s.ctx, s.broker.logger, s.handler, env)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *brokerSub) Topic() string {
	return s.topic
}

// Unsubscribe removes the subscription; queued but undelivered events are discarded
func (s *brokerSub) Unsubscribe() error {
	s.broker.mu.Lock()
	if set, ok := s.broker.subscribers[s.topic]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(s.broker.subscribers, s.topic)
		}
	}
	s.broker.mu.Unlock()

	s.stop()
	return nil
}

func (s *brokerSub) stop() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}
