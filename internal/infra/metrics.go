package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	commandsApplied  atomic.Uint64
	commandsRejected atomic.Uint64
	queriesServed    atomic.Uint64
	ordersPosted     atomic.Uint64
	ordersFilled     atomic.Uint64
	errorsTotal      atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
	lastSeq           atomic.Uint64
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordCommand records a sequenced command with its latency.
func (m *Metrics) RecordCommand(seq uint64, accepted bool, latencyNs int64) {
	if accepted {
		m.commandsApplied.Add(1)
	} else {
		m.commandsRejected.Add(1)
	}
	m.lastSeq.Store(seq)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordQuery records a read-only request.
func (m *Metrics) RecordQuery() {
	m.queriesServed.Add(1)
}

// RecordOrderPosted records a new sell order.
func (m *Metrics) RecordOrderPosted() {
	m.ordersPosted.Add(1)
}

// RecordOrderFilled records a successful fill.
func (m *Metrics) RecordOrderFilled() {
	m.ordersFilled.Add(1)
}

// RecordError records an infrastructure error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	CommandsApplied   uint64    `json:"commands_applied"`
	CommandsRejected  uint64    `json:"commands_rejected"`
	QueriesServed     uint64    `json:"queries_served"`
	OrdersPosted      uint64    `json:"orders_posted"`
	OrdersFilled      uint64    `json:"orders_filled"`
	ErrorsTotal       uint64    `json:"errors_total"`
	AvgLatencyNs      int64     `json:"avg_latency_ns"`
	ActiveConnections int32     `json:"active_connections"`
	LastSeq           uint64    `json:"last_seq"`
	Timestamp         time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		CommandsApplied:   m.commandsApplied.Load(),
		CommandsRejected:  m.commandsRejected.Load(),
		QueriesServed:     m.queriesServed.Load(),
		OrdersPosted:      m.ordersPosted.Load(),
		OrdersFilled:      m.ordersFilled.Load(),
		ErrorsTotal:       m.errorsTotal.Load(),
		AvgLatencyNs:      avgLatency,
		ActiveConnections: m.activeConnections.Load(),
		LastSeq:           m.lastSeq.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.commandsApplied.Store(0)
	m.commandsRejected.Store(0)
	m.queriesServed.Store(0)
	m.ordersPosted.Store(0)
	m.ordersFilled.Store(0)
	m.errorsTotal.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeConnections.Store(0)
	m.lastSeq.Store(0)
}
