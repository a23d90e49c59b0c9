package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/cuemby/relay/pkg/events"
	"github.com/cuemby/relay/pkg/log"
	"github.com/cuemby/relay/pkg/metrics"
	"github.com/cuemby/relay/pkg/registry"
	"github.com/cuemby/relay/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var errShutdown = errors.New("gateway shutting down")

// Shard is a gateway process: it accepts websocket clients, keeps them in a
// local registry and pushes bus events to them.
type Shard struct {
	cfg       Config
	bus       events.Bus
	registry  *registry.Registry
	admission *admission
	collector *metrics.Collector
	logger    zerolog.Logger

	// parent of every session context
	ctx      context.Context
	cancel   context.CancelFunc
	sessions sync.WaitGroup
	wg       sync.WaitGroup

	mu       sync.Mutex
	stopping bool
	subs     []events.Subscription
	server   *http.Server
}

// NewShard creates a shard publishing and subscribing on bus
func NewShard(cfg Config, bus events.Bus, logger zerolog.Logger) *Shard {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Shard{
		cfg:       cfg,
		bus:       bus,
		registry:  registry.New(),
		admission: newAdmission(cfg.AcceptRate, cfg.AcceptBurst, logger),
		collector: metrics.NewCollector(cfg.MetricsInterval),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.collector.Track(metrics.GatewayConnections, func() float64 {
		return float64(s.registry.Len())
	})
	return s
}

// ID returns the shard id
func (s *Shard) ID() string {
	return s.cfg.ShardID
}

// Registry returns the shard's connection registry
func (s *Shard) Registry() *registry.Registry {
	return s.registry
}

// Subscribe attaches the shard to every topic it consumes and starts
// sampling its metrics.
func (s *Shard) Subscribe(ctx context.Context) error {
	handlers := []struct {
		topic   string
		handler events.Handler
	}{
		{events.TopicContentCreated, s.relay(types.MessageNewContent)},
		{events.TopicContentLiked, s.relay(types.MessageContentLiked)},
		{events.TopicPresenceOnline, s.observePresence},
		{events.TopicPresenceOffline, s.observePresence},
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range handlers {
		sub, err := s.bus.Subscribe(ctx, h.topic, h.handler)
		if err != nil {
			for _, prev := range s.subs {
				_ = prev.Unsubscribe()
			}
			s.subs = nil
			return fmt.Errorf("subscribing to %s: %w", h.topic, err)
		}
		s.subs = append(s.subs, sub)
	}

	s.collector.Start()
	s.wg.Add(1)
	go s.sweepAdmission()
	s.logger.Info().Int("topics", len(s.subs)).Msg("Gateway subscribed to bus")
	return nil
}

func (s *Shard) sweepAdmission() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.admission.sweep(10 * time.Minute)
		case <-s.ctx.Done():
			return
		}
	}
}

// Handler returns the shard's HTTP surface
func (s *Shard) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.With(s.admission.middleware).Get("/ws", s.handleUpgrade)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", metrics.ReadyHandler())
	r.Get("/live", metrics.LivenessHandler())
	r.Handle("/metrics", metrics.Handler())
	return r
}

// Start serves the shard on its configured address until Stop is called
func (s *Shard) Start() error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.server = server
	s.mu.Unlock()

	s.logger.Info().Str("addr", s.cfg.Addr).Msg("Gateway listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway server failed: %w", err)
	}
	return nil
}

// Stop stops accepting clients, detaches from the bus and closes every live
// session, waiting for them until ctx is done.
func (s *Shard) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopping = true
	server := s.server
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	var firstErr error
	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// Close outside ForEach: the close handler removes from the registry.
	var live []*session
	s.registry.ForEach(registry.All(), func(c registry.Connection) {
		if sess, ok := c.Sender.(*session); ok {
			live = append(live, sess)
		}
	})
	for _, sess := range live {
		sess.Close(errShutdown)
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if firstErr == nil {
			firstErr = ctx.Err()
		}
	}

	s.collector.Stop()
	s.wg.Wait()
	s.logger.Info().Int("closed_sessions", len(live)).Msg("Gateway stopped")
	return firstErr
}

// Broadcast pushes a message to every open local connection and returns the
// number of connections it was queued for.
func (s *Shard) Broadcast(msgType types.MessageType, data any) int {
	return s.deliver(registry.All(), msgType, data)
}

// SendToUser pushes a message to the open local connections of userID
func (s *Shard) SendToUser(userID string, msgType types.MessageType, data any) int {
	return s.deliver(registry.ByUser(userID), msgType, data)
}

func (s *Shard) deliver(pred registry.Predicate, msgType types.MessageType, data any) int {
	frame, err := encodeFrame(msgType, data)
	if err != nil {
		s.logger.Error().Err(err).Str("type", string(msgType)).Msg("Failed to encode frame")
		return 0
	}

	sent := 0
	s.registry.ForEach(openOnly(pred), func(c registry.Connection) {
		if c.Sender.Send(frame) {
			sent++
		}
	})
	return sent
}

// relay returns a bus handler forwarding the event payload as msgType
func (s *Shard) relay(msgType types.MessageType) events.Handler {
	return func(ctx context.Context, env events.Envelope) {
		sent := s.Broadcast(msgType, env.Payload)
		metrics.GatewayDeliveries.WithLabelValues(env.Topic).Add(float64(sent))
		s.logger.Debug().
			Str("topic", env.Topic).
			Str("type", string(msgType)).
			Int("delivered", sent).
			Msg("Broadcast event")
	}
}

func (s *Shard) observePresence(ctx context.Context, env events.Envelope) {
	var p types.Presence
	if err := env.Decode(&p); err != nil {
		s.logger.Debug().Err(err).Msg("Ignoring malformed presence event")
		return
	}
	s.logger.Debug().
		Str("topic", env.Topic).
		Str("user_id", p.UserID).
		Str("origin_shard", p.ShardID).
		Msg("Presence changed")
}

func (s *Shard) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     s.cfg.AllowedOrigins,
		InsecureSkipVerify: len(s.cfg.AllowedOrigins) == 0,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Websocket upgrade failed")
		return
	}

	id := uuid.NewString()
	userID := r.URL.Query().Get("userId")
	logger := log.WithConnectionID(s.logger, id)

	if !s.track() {
		_ = ws.Close(websocket.StatusGoingAway, errShutdown.Error())
		return
	}
	defer s.sessions.Done()

	sess := newSession(s.ctx, id, ws, s.cfg, logger)
	conn := registry.Connection{
		ID:          id,
		UserID:      userID,
		ShardID:     s.cfg.ShardID,
		ConnectedAt: time.Now().UTC(),
		Sender:      sess,
	}

	sess.onMessage = s.handleMessage
	sess.onClose = s.handleClose
	if err := s.registry.Add(conn); err != nil {
		logger.Error().Err(err).Msg("Failed to register connection")
		// the id belongs to another entry, keep its registration
		sess.onClose = nil
		sess.Close(err)
		return
	}

	go sess.writePump()
	s.reply(sess, types.MessageConnected, types.ConnectedData{
		ConnectionID: id,
		ShardID:      s.cfg.ShardID,
		Message:      "Connected to relay gateway, shard " + s.cfg.ShardID,
	})
	if !sess.open() {
		return
	}
	logger.Info().Str("user_id", userID).Msg("Client connected")

	sess.readPump()
	<-sess.Done()
}

// track counts a new session unless Stop has begun
func (s *Shard) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopping {
		return false
	}
	s.sessions.Add(1)
	return true
}

func (s *Shard) handleMessage(sess *session, msg []byte) {
	if sess.State() != StateOpen {
		return
	}
	if !sess.allow() {
		metrics.GatewayInboundMessages.WithLabelValues("rate_limited").Inc()
		sess.logger.Warn().Msg("Inbound message rate exceeded, dropping message")
		return
	}

	var in types.InboundMessage
	if err := json.Unmarshal(msg, &in); err != nil {
		metrics.GatewayInboundMessages.WithLabelValues("malformed").Inc()
		sess.logger.Debug().Err(err).Msg("Ignoring malformed message")
		return
	}

	switch in.Type {
	case types.MessagePing:
		metrics.GatewayInboundMessages.WithLabelValues(string(in.Type)).Inc()
		s.reply(sess, types.MessagePong, types.PongData{Timestamp: time.Now().UTC()})
	case types.MessageSubscribeUser:
		metrics.GatewayInboundMessages.WithLabelValues(string(in.Type)).Inc()
		s.subscribeUser(sess, in.UserID)
	default:
		metrics.GatewayInboundMessages.WithLabelValues("unknown").Inc()
		sess.logger.Debug().Str("type", string(in.Type)).Msg("Ignoring unknown message type")
	}
}

func (s *Shard) subscribeUser(sess *session, userID string) {
	if userID == "" {
		return
	}
	if !s.registry.AssociateUser(sess.id, userID) {
		conn, ok := s.registry.Get(sess.id)
		if !ok {
			return
		}
		if conn.UserID == userID {
			s.reply(sess, types.MessageSubscribed, types.SubscribedData{UserID: userID})
			return
		}
		sess.logger.Warn().
			Str("user_id", conn.UserID).
			Str("requested_user_id", userID).
			Msg("Connection already associated with a user, ignoring SUBSCRIBE_USER")
		return
	}
	s.publishPresence(events.TopicPresenceOnline, sess.id, userID)
	s.reply(sess, types.MessageSubscribed, types.SubscribedData{UserID: userID})
	sess.logger.Info().Str("user_id", userID).Msg("User associated")
}

func (s *Shard) handleClose(sess *session, reason error) {
	conn, ok := s.registry.Remove(sess.id)
	if !ok {
		return
	}
	if conn.UserID != "" {
		s.publishPresence(events.TopicPresenceOffline, conn.ID, conn.UserID)
	}
	sess.logger.Info().
		Str("user_id", conn.UserID).
		Dur("connected_for", time.Since(conn.ConnectedAt)).
		Msg("Client disconnected")
}

func (s *Shard) publishPresence(topic, connID, userID string) {
	err := s.bus.Publish(context.Background(), topic, types.Presence{
		UserID:       userID,
		ShardID:      s.cfg.ShardID,
		ConnectionID: connID,
	})
	if err != nil {
		metrics.BusErrors.WithLabelValues("publish").Inc()
		s.logger.Warn().Err(err).Str("topic", topic).Msg("Presence publish failed")
	}
}

func (s *Shard) reply(sess *session, msgType types.MessageType, data any) {
	frame, err := encodeFrame(msgType, data)
	if err != nil {
		sess.logger.Error().Err(err).Msg("Failed to encode reply")
		return
	}
	sess.Send(frame)
}

type healthResponse struct {
	Status      string    `json:"status"`
	ShardID     string    `json:"shardId"`
	Connections int       `json:"connections"`
	Timestamp   time.Time `json:"timestamp"`
}

func (s *Shard) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		ShardID:     s.cfg.ShardID,
		Connections: s.registry.Len(),
		Timestamp:   time.Now().UTC(),
	}
	code := http.StatusOK
	if metrics.GetHealth().Status == "unhealthy" {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// openOnly restricts pred to sessions in the OPEN state. Senders that are
// not gateway sessions carry no lifecycle and always match.
func openOnly(pred registry.Predicate) registry.Predicate {
	return func(c registry.Connection) bool {
		if sess, ok := c.Sender.(*session); ok && sess.State() != StateOpen {
			return false
		}
		return pred(c)
	}
}

func encodeFrame(msgType types.MessageType, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(types.OutboundMessage{Type: msgType, Data: raw})
}
