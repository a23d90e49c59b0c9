package health

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/relay/pkg/metrics"
	"github.com/rs/zerolog"
)

type monitored struct {
	name    string
	checker Checker
	status  *Status
}

// Monitor runs checkers on an interval and reports each one to the
// process-wide component health used by /health and /ready.
type Monitor struct {
	cfg    Config
	logger zerolog.Logger

	mu     sync.Mutex
	checks []*monitored

	wg sync.WaitGroup
}

// NewMonitor creates a monitor. Zero fields of cfg fall back to DefaultConfig.
func NewMonitor(cfg Config, logger zerolog.Logger) *Monitor {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = def.Retries
	}
	return &Monitor{cfg: cfg, logger: logger}
}

// Add registers checker under the component name
func (m *Monitor) Add(name string, checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checks = append(m.checks, &monitored{name: name, checker: checker, status: NewStatus()})
	metrics.RegisterComponent(name, true, "pending first check")
}

// Start checks every component once, then again on each interval until ctx
// is done.
func (m *Monitor) Start(ctx context.Context) {
	m.CheckAll(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.CheckAll(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Wait blocks until the monitor loop has exited
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// CheckAll runs every checker once and records the results
func (m *Monitor) CheckAll(ctx context.Context) {
	m.mu.Lock()
	checks := append([]*monitored(nil), m.checks...)
	m.mu.Unlock()

	for _, c := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
		result := c.checker.Check(checkCtx)
		cancel()

		wasHealthy := c.status.Healthy
		c.status.Update(result, m.cfg)
		metrics.UpdateComponent(c.name, c.status.Healthy, result.Message)

		switch {
		case wasHealthy && !c.status.Healthy:
			m.logger.Warn().Str("component", c.name).Str("reason", result.Message).Msg("Dependency unhealthy")
		case !wasHealthy && c.status.Healthy:
			m.logger.Info().Str("component", c.name).Msg("Dependency recovered")
		}
	}
}
