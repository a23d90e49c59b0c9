package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/cuemby/relay/pkg/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// State is the lifecycle phase of a session
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// errIdle is the close reason for sessions that stop reading
var errIdle = errors.New("read idle timeout")

type messageHandler func(s *session, msg []byte)
type closeHandler func(s *session, reason error)

// session is a single websocket connection with its own read and write
// pumps. Send never blocks; Close is safe to call from any goroutine and
// only the first call has an effect.
type session struct {
	id      string
	conn    *websocket.Conn
	cfg     Config
	send    chan []byte
	limiter *rate.Limiter
	state   atomic.Int32

	onMessage messageHandler
	onClose   closeHandler

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}

	logger zerolog.Logger
}

func newSession(parent context.Context, id string, conn *websocket.Conn, cfg Config, logger zerolog.Logger) *session {
	ctx, cancel := context.WithCancel(parent)
	s := &session{
		id:      id,
		conn:    conn,
		cfg:     cfg,
		send:    make(chan []byte, cfg.SendQueue),
		limiter: rate.NewLimiter(rate.Limit(cfg.MessageRate), cfg.MessageBurst),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		logger:  logger,
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// State returns the current lifecycle phase
func (s *session) State() State {
	return State(s.state.Load())
}

// open moves a connecting session to OPEN. A session closed in the meantime
// stays closed.
func (s *session) open() bool {
	return s.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen))
}

// Send queues frame for the write pump. It reports false when the session is
// closed or its queue is full; a full queue drops the frame.
func (s *session) Send(frame []byte) bool {
	if s.ctx.Err() != nil {
		return false
	}
	select {
	case s.send <- frame:
		return true
	case <-s.ctx.Done():
		return false
	default:
		metrics.GatewayDroppedFrames.Inc()
		s.logger.Warn().Msg("Send queue full, dropping frame")
		return false
	}
}

// Close tears the session down and runs the close handler exactly once.
func (s *session) Close(reason error) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.cancel()

		status := websocket.StatusNormalClosure
		if errors.Is(reason, errIdle) {
			status = websocket.StatusPolicyViolation
		}
		_ = s.conn.Close(status, "")

		s.logger.Debug().
			AnErr("reason", reason).
			Str("status", websocket.CloseStatus(reason).String()).
			Msg("Session closed")

		if s.onClose != nil {
			s.onClose(s, reason)
		}
		close(s.done)
	})
}

// Done is closed once the session has fully terminated
func (s *session) Done() <-chan struct{} {
	return s.done
}

// allow reports whether an inbound message fits the per-connection rate
func (s *session) allow() bool {
	return s.limiter.Allow()
}

func (s *session) readPump() {
	var readErr error
	defer func() {
		s.Close(readErr)
	}()

	for {
		readCtx, cancelRead := s.readContext()
		typ, msg, err := s.conn.Read(readCtx)
		idle := errors.Is(readCtx.Err(), context.DeadlineExceeded)
		cancelRead()
		if err != nil {
			if idle {
				err = errIdle
			}
			readErr = err
			return
		}
		if typ != websocket.MessageText && typ != websocket.MessageBinary {
			continue
		}
		if s.onMessage != nil {
			s.onMessage(s, msg)
		}
	}
}

// readContext bounds a single read by the idle timeout, if one is set
func (s *session) readContext() (context.Context, context.CancelFunc) {
	if s.cfg.ReadTimeout <= 0 {
		return context.WithCancel(s.ctx)
	}
	return context.WithTimeout(s.ctx, s.cfg.ReadTimeout)
}

func (s *session) writePump() {
	var writeErr error
	defer func() {
		if writeErr != nil {
			s.Close(writeErr)
		}
	}()

	for {
		select {
		case frame := <-s.send:
			writeCtx, cancel := context.WithTimeout(s.ctx, s.cfg.WriteTimeout)
			err := s.conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				writeErr = err
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}
