package infra

import (
	"testing"
)

func TestMetrics_RecordCommand(t *testing.T) {
	m := &Metrics{}

	m.RecordCommand(1, true, 1000)
	m.RecordCommand(2, false, 2000)
	m.RecordCommand(3, true, 3000)

	snap := m.Snapshot()

	if snap.CommandsApplied != 2 {
		t.Errorf("Expected 2 applied, got %d", snap.CommandsApplied)
	}
	if snap.CommandsRejected != 1 {
		t.Errorf("Expected 1 rejected, got %d", snap.CommandsRejected)
	}
	if snap.LastSeq != 3 {
		t.Errorf("Expected last seq 3, got %d", snap.LastSeq)
	}

	// Average latency: (1000 + 2000 + 3000) / 3 = 2000
	if snap.AvgLatencyNs != 2000 {
		t.Errorf("Expected avg latency 2000, got %d", snap.AvgLatencyNs)
	}
}

func TestMetrics_Orders(t *testing.T) {
	m := &Metrics{}

	m.RecordOrderPosted()
	m.RecordOrderPosted()
	m.RecordOrderFilled()
	m.RecordQuery()

	snap := m.Snapshot()
	if snap.OrdersPosted != 2 || snap.OrdersFilled != 1 || snap.QueriesServed != 1 {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}
}

func TestMetrics_Connections(t *testing.T) {
	m := &Metrics{}

	m.IncrementConnections()
	m.IncrementConnections()
	m.IncrementConnections()

	snap := m.Snapshot()
	if snap.ActiveConnections != 3 {
		t.Errorf("Expected 3 connections, got %d", snap.ActiveConnections)
	}

	m.DecrementConnections()
	snap = m.Snapshot()
	if snap.ActiveConnections != 2 {
		t.Errorf("Expected 2 connections, got %d", snap.ActiveConnections)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}

	m.RecordCommand(1, true, 1000)
	m.RecordError()
	m.IncrementConnections()

	m.Reset()
	snap := m.Snapshot()

	if snap.CommandsApplied != 0 {
		t.Error("Expected 0 commands after reset")
	}
	if snap.ErrorsTotal != 0 {
		t.Error("Expected 0 errors after reset")
	}
	if snap.ActiveConnections != 0 {
		t.Error("Expected 0 connections after reset")
	}
}
