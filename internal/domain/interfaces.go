package domain

import (
	"context"
)

// Journal is the append-only record of applied commands.
type Journal interface {
	Append(ctx context.Context, entry *JournalEntry) error
	// Since returns entries with Seq > seq in ascending order.
	Since(ctx context.Context, seq uint64) ([]JournalEntry, error)
}

// StateStore persists working-state snapshots.
type StateStore interface {
	SaveState(ctx context.Context, state *State) error
	// LoadState returns false when no snapshot has been saved yet.
	LoadState(ctx context.Context) (*State, bool, error)
}
