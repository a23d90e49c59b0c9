package health

import (
	"context"
	"time"
)

// PingChecker wraps a dependency's own ping, such as a Redis PING or a bbolt
// read transaction.
type PingChecker struct {
	ping func(ctx context.Context) error
}

// NewPingChecker creates a checker around ping
func NewPingChecker(ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{ping: ping}
}

// Check performs the ping
func (p *PingChecker) Check(ctx context.Context) Result {
	start := time.Now()
	if err := p.ping(ctx); err != nil {
		return Result{
			Healthy:   false,
			Message:   err.Error(),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	return Result{
		Healthy:   true,
		Message:   "ok",
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type
func (p *PingChecker) Type() CheckType {
	return CheckTypePing
}
