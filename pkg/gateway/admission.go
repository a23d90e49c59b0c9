package gateway

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the limiter map between sweeps
const maxTrackedClients = 10000

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// admission limits how fast a single client address may open websocket
// sessions. A zero rate admits everything.
type admission struct {
	rate   rate.Limit
	burst  int
	logger zerolog.Logger

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

func newAdmission(perSecond float64, burst int, logger zerolog.Logger) *admission {
	if burst <= 0 {
		burst = 1
	}
	return &admission{
		rate:    rate.Limit(perSecond),
		burst:   burst,
		logger:  logger,
		clients: make(map[string]*clientLimiter),
	}
}

func (a *admission) allow(r *http.Request) bool {
	if a.rate <= 0 {
		return true
	}
	ip := clientIP(r)

	a.mu.Lock()
	c, ok := a.clients[ip]
	if !ok {
		if len(a.clients) >= maxTrackedClients {
			a.sweepLocked(time.Minute)
		}
		c = &clientLimiter{limiter: rate.NewLimiter(a.rate, a.burst)}
		a.clients[ip] = c
	}
	c.lastSeen = time.Now()
	a.mu.Unlock()

	return c.limiter.Allow()
}

// sweep forgets clients idle for longer than idle
func (a *admission) sweep(idle time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sweepLocked(idle)
}

func (a *admission) sweepLocked(idle time.Duration) {
	cutoff := time.Now().Add(-idle)
	for ip, c := range a.clients {
		if c.lastSeen.Before(cutoff) {
			delete(a.clients, ip)
		}
	}
}

// middleware rejects upgrades over the per-address rate with 429
func (a *admission) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.allow(r) {
			a.logger.Warn().Str("client_ip", clientIP(r)).Msg("Connection rate exceeded, rejecting upgrade")
			http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client address, preferring proxy headers
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
