package metrics

import (
	"time"

	"github.com/heron-streaming/tam/pkg/registry"
)

// Collector periodically recomputes the worker-state gauge vector from the
// registry's current snapshot, mirroring the teacher's poll-and-set
// collector shape rather than updating gauges inline on every transition.
type Collector struct {
	registry *registry.Registry
	stopCh   chan struct{}
}

// NewCollector builds a Collector over reg.
func NewCollector(reg *registry.Registry) *Collector {
	return &Collector{registry: reg, stopCh: make(chan struct{})}
}

// Start begins collecting on a 5-second interval, collecting once
// immediately.
func (c *Collector) Start() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
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

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	counts := make(map[string]int)
	for _, w := range c.registry.Snapshot() {
		counts[string(w.State)]++
	}
	WorkersByState.Reset()
	for state, n := range counts {
		WorkersByState.WithLabelValues(state).Set(float64(n))
	}
}
