package app

import (
	"context"
	"fmt"
	"log/slog"

	"token_market/internal/domain"
	"token_market/internal/engine"
	"token_market/internal/exchange"
	"token_market/internal/infra"
	"token_market/internal/infra/storage"
	"token_market/internal/ledger"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Storage   *storage.Storage
	Ledger    *ledger.Ledger
	Exchange  *exchange.Exchange
	Sequencer *engine.Sequencer
	Metrics   *infra.Metrics
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{Metrics: infra.GlobalMetrics}
}

// Initialize loads configuration, opens storage and rebuilds the working state
// from the latest snapshot plus every journal entry after it.
func (b *Bootstrap) Initialize(ctx context.Context, configPath string) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))
	slog.Info("🚀 Bootstrapping Token Market...", slog.String("version", cfg.App.Version))

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 4. Ledger and exchange
	l, err := ledger.New(domain.Identity(cfg.Ledger.Administrator))
	if err != nil {
		return err
	}
	ex, err := exchange.New(l, domain.Identity(cfg.Ledger.ExchangeIdentity))
	if err != nil {
		return err
	}
	b.Ledger, b.Exchange = l, ex

	// 5. Restore snapshot
	lastSeq, err := b.restore(ctx)
	if err != nil {
		return err
	}

	// 6. Sequencer + journal replay
	b.Sequencer = engine.NewSequencer(l, ex, engine.Options{
		InboxSize:     cfg.Engine.InboxSize,
		Journal:       store,
		StateStore:    store,
		Metrics:       b.Metrics,
		SnapshotEvery: cfg.Storage.SnapshotEvery,
		StartSeq:      lastSeq,
		DumpPath:      cfg.Engine.DumpPath,
	})

	entries, err := store.Since(ctx, lastSeq)
	if err != nil {
		return err
	}
	if err := b.Sequencer.Replay(entries); err != nil {
		return err
	}

	// 7. Invariants must hold before accepting traffic
	if err := l.VerifyInvariants(); err != nil {
		return err
	}
	if err := ex.VerifyEscrow(); err != nil {
		return err
	}

	slog.Info("✅ State recovered",
		slog.Uint64("snapshot_seq", lastSeq),
		slog.Int("replayed", len(entries)),
		slog.Uint64("last_seq", b.Sequencer.LastSeq()))
	return nil
}

func (b *Bootstrap) restore(ctx context.Context) (uint64, error) {
	state, ok, err := b.Storage.LoadState(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		slog.Info("No snapshot found, starting from genesis")
		return 0, nil
	}

	if err := b.Ledger.Restore(state.Ledger); err != nil {
		return 0, fmt.Errorf("snapshot at seq %d: %w", state.LastSeq, err)
	}
	if err := b.Exchange.Restore(state.Book); err != nil {
		return 0, fmt.Errorf("snapshot at seq %d: %w", state.LastSeq, err)
	}
	return state.LastSeq, nil
}

// Close releases storage. Call after the sequencer has stopped.
func (b *Bootstrap) Close() error {
	if b.Storage == nil {
		return nil
	}
	return b.Storage.Close()
}
