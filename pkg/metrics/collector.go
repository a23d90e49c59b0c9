package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector periodically samples in-process values into gauges.
type Collector struct {
	interval time.Duration

	mu      sync.Mutex
	samples []sample

	stopCh   chan struct{}
	stopOnce sync.Once
}

type sample struct {
	gauge prometheus.Gauge
	fn    func() float64
}

// NewCollector creates a collector that samples every interval
func NewCollector(interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Track registers fn to be sampled into gauge on every tick
func (c *Collector) Track(gauge prometheus.Gauge, fn func() float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, sample{gauge: gauge, fn: fn})
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Collector) collect() {
	c.mu.Lock()
	samples := append([]sample(nil), c.samples...)
	c.mu.Unlock()

	for _, s := range samples {
		s.gauge.Set(s.fn())
	}
}
