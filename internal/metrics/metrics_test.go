package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountersAndGauges(t *testing.T) {
	m := NewMetrics()

	require.Zero(t, m.GetCounter(CounterDeliveriesDispatched))

	m.IncrementCounter(CounterDeliveriesDispatched)
	m.IncrementCounter(CounterDeliveriesDispatched)
	m.IncrementCounter(CounterDeliveriesCompleted)
	m.SetGauge("goroutines", 12)
	m.SetGauge("goroutines", 7)

	require.Equal(t, int64(2), m.GetCounter(CounterDeliveriesDispatched))
	require.Equal(t, int64(1), m.GetCounter(CounterDeliveriesCompleted))

	snapshot := m.Snapshot()
	counters := snapshot["counters"].(map[string]int64)
	gauges := snapshot["gauges"].(map[string]int64)

	require.Equal(t, int64(2), counters[CounterDeliveriesDispatched])
	require.Equal(t, int64(7), gauges["goroutines"])
	require.Contains(t, snapshot, "uptime_seconds")
}

func TestConcurrentIncrements(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.IncrementCounter(CounterProgressionsStarted)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(5000), m.GetCounter(CounterProgressionsStarted))
}
