package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Well-known counter names used across the service.
const (
	CounterProgressionsStarted   = "progressions_started"
	CounterProgressionsResumed   = "progressions_resumed"
	CounterProgressionsCancelled = "progressions_cancelled"
	CounterDeliveriesDispatched  = "deliveries_dispatched"
	CounterDeliveriesCompleted   = "deliveries_completed"
	CounterMutationFailures      = "delivery_mutation_failures"
	CounterRequestsCreated       = "delivery_requests_created"
	CounterRequestsApproved      = "delivery_requests_approved"
	CounterRequestsDenied        = "delivery_requests_denied"
)

// Metrics is a process-local metrics collector
type Metrics struct {
	mu        sync.RWMutex
	counters  map[string]*int64
	gauges    map[string]*int64
	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		counters:  make(map[string]*int64),
		gauges:    make(map[string]*int64),
		startTime: time.Now(),
	}
}

// IncrementCounter increments a counter metric by 1.
func (m *Metrics) IncrementCounter(name string) {
	atomic.AddInt64(m.counter(name), 1)
}

// SetGauge sets a gauge metric to a point-in-time value.
func (m *Metrics) SetGauge(name string, value int64) {
	atomic.StoreInt64(m.gauge(name), value)
}

// GetCounter returns the current value of a counter.
func (m *Metrics) GetCounter(name string) int64 {
	return atomic.LoadInt64(m.counter(name))
}

// Snapshot returns the current values of all metrics plus process uptime.
func (m *Metrics) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := make(map[string]int64, len(m.counters))
	for name, v := range m.counters {
		counters[name] = atomic.LoadInt64(v)
	}
	gauges := make(map[string]int64, len(m.gauges))
	for name, v := range m.gauges {
		gauges[name] = atomic.LoadInt64(v)
	}

	return map[string]interface{}{
		"counters":       counters,
		"gauges":         gauges,
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
	}
}

func (m *Metrics) counter(name string) *int64 {
	m.mu.RLock()
	v, ok := m.counters[name]
	m.mu.RUnlock()
	if ok {
		return v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.counters[name]; ok {
		return v
	}
	v = new(int64)
	m.counters[name] = v
	return v
}

func (m *Metrics) gauge(name string) *int64 {
	m.mu.RLock()
	v, ok := m.gauges[name]
	m.mu.RUnlock()
	if ok {
		return v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.gauges[name]; ok {
		return v
	}
	v = new(int64)
	m.gauges[name] = v
	return v
}
