package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"token_market/internal/command"
	"token_market/internal/domain"
	"token_market/internal/exchange"
	"token_market/internal/infra"
	"token_market/internal/ledger"
)

// ErrStopped is returned by Submit once the sequencer has exited.
var ErrStopped = errors.New("sequencer stopped")

type envelope struct {
	req   command.Request
	reply chan command.Result
}

// Options configures a Sequencer. Nil Journal and StateStore disable persistence.
type Options struct {
	InboxSize     int
	Journal       domain.Journal
	StateStore    domain.StateStore
	Metrics       *infra.Metrics
	SnapshotEvery uint64 // 0 disables periodic snapshots
	StartSeq      uint64 // last sequence already reflected in the ledger
	DumpPath      string
}

// Sequencer is the single writer in front of the ledger and exchange. Every
// mutating command gets the next sequence number, is applied, then journaled
// with its outcome before the caller sees the result.
type Sequencer struct {
	inbox    chan envelope
	done     chan struct{}
	ledger   *ledger.Ledger
	exchange *exchange.Exchange

	journal domain.Journal
	states  domain.StateStore
	metrics *infra.Metrics

	snapshotEvery uint64
	sinceSnapshot uint64
	nextSeq       uint64
	dumpPath      string

	now       func() time.Time
	appliedAt time.Time // time of the command being applied
}

// NewSequencer creates a new sequencer instance.
func NewSequencer(l *ledger.Ledger, ex *exchange.Exchange, opts Options) *Sequencer {
	if opts.InboxSize <= 0 {
		opts.InboxSize = 1024
	}
	if opts.Metrics == nil {
		opts.Metrics = infra.GlobalMetrics
	}
	if opts.DumpPath == "" {
		opts.DumpPath = "panic_dump.json"
	}

	s := &Sequencer{
		inbox:         make(chan envelope, opts.InboxSize),
		done:          make(chan struct{}),
		ledger:        l,
		exchange:      ex,
		journal:       opts.Journal,
		states:        opts.StateStore,
		metrics:       opts.Metrics,
		snapshotEvery: opts.SnapshotEvery,
		nextSeq:       opts.StartSeq + 1,
		dumpPath:      opts.DumpPath,
		now:           time.Now,
	}
	ex.SetClock(func() time.Time { return s.appliedAt })
	return s
}

// LastSeq returns the last assigned sequence number. Only safe before Run or
// from the sequencer goroutine.
func (s *Sequencer) LastSeq() uint64 {
	return s.nextSeq - 1
}

// Submit queues req and waits for its result. A command that was queued is
// applied even if ctx ends before the result arrives.
func (s *Sequencer) Submit(ctx context.Context, req command.Request) (command.Result, error) {
	env := envelope{req: req, reply: make(chan command.Result, 1)}

	select {
	case s.inbox <- env:
	case <-s.done:
		return command.Result{}, ErrStopped
	case <-ctx.Done():
		return command.Result{}, ctx.Err()
	}

	select {
	case res := <-env.reply:
		return res, nil
	case <-s.done:
		return command.Result{}, ErrStopped
	case <-ctx.Done():
		return command.Result{}, ctx.Err()
	}
}

// Run starts the main command loop. This MUST be run in a single goroutine.
// On a clean stop it writes a final snapshot.
func (s *Sequencer) Run(ctx context.Context) error {
	slog.Info("Sequencer started", slog.Uint64("next_seq", s.nextSeq))
	defer close(s.done)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			s.DumpState(s.dumpPath)
			// Halt after dump; the journal is the source of truth on restart.
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Sequencer stopping...", slog.Uint64("last_seq", s.LastSeq()))
			return s.snapshot(context.WithoutCancel(ctx))
		case env := <-s.inbox:
			env.reply <- s.process(ctx, env.req)
		}
	}
}

func (s *Sequencer) process(ctx context.Context, req command.Request) command.Result {
	start := time.Now()

	if req.Kind.IsQuery() {
		res := s.query(req)
		s.metrics.RecordQuery()
		return res
	}

	// 1. Sequence
	seq := s.nextSeq
	s.appliedAt = s.now()

	// 2. Apply
	res := s.apply(req)
	res.Seq = seq

	// 3. Journal the outcome (halt policy on failure)
	s.record(ctx, seq, req, res.Err)
	s.nextSeq++

	// 4. Observe
	s.metrics.RecordCommand(seq, res.Err == nil, time.Since(start).Nanoseconds())
	if res.Err == nil {
		switch req.Kind {
		case command.KindPostSellOrder:
			s.metrics.RecordOrderPosted()
		case command.KindPostBuyOrder:
			s.metrics.RecordOrderFilled()
		}
	} else {
		slog.InfoContext(ctx, "Command rejected",
			slog.Uint64("seq", seq),
			slog.String("kind", string(req.Kind)),
			slog.String("caller", string(req.Caller)),
			slog.String("code", domain.Code(res.Err)),
			slog.Any("error", res.Err))
	}

	// 5. Periodic snapshot
	if s.snapshotEvery > 0 {
		s.sinceSnapshot++
		if s.sinceSnapshot >= s.snapshotEvery {
			if err := s.snapshot(ctx); err != nil {
				s.metrics.RecordError()
				slog.Error("Snapshot failed", slog.Any("error", err))
			}
		}
	}

	return res
}

func (s *Sequencer) record(ctx context.Context, seq uint64, req command.Request, applyErr error) {
	if s.journal == nil {
		return
	}

	payload, err := json.Marshal(req)
	if err != nil {
		panic(fmt.Sprintf("PERSISTENCE_FAILURE: encode seq %d: %v", seq, err))
	}
	entry := &domain.JournalEntry{
		Seq:       seq,
		Kind:      string(req.Kind),
		Caller:    string(req.Caller),
		Payload:   string(payload),
		Code:      domain.Code(applyErr),
		AppliedAt: s.appliedAt,
	}
	if err := s.journal.Append(context.WithoutCancel(ctx), entry); err != nil {
		panic(fmt.Sprintf("PERSISTENCE_FAILURE: %v", err))
	}
}

// apply dispatches a mutating command.
func (s *Sequencer) apply(req command.Request) command.Result {
	var res command.Result

	// Escrow moves only through exchange settlement.
	if req.Caller == s.exchange.Identity() {
		res.Err = domain.NewOperationError(string(req.Kind), domain.ErrUnauthorized)
		return res
	}

	switch req.Kind {
	case command.KindIssue:
		res.Err = s.ledger.Issue(req.Caller, req.Target, req.AssetID, req.Quantity, req.Memo)
	case command.KindTransfer:
		res.Err = s.ledger.Transfer(req.Caller, req.From, req.To, req.AssetID, req.Quantity, req.Memo)
	case command.KindSetApprovalForAll:
		res.Err = s.ledger.SetApprovalForAll(req.Caller, req.Operator, req.Approved)
	case command.KindDeposit:
		holder := req.Target
		if holder == "" {
			holder = req.Caller
		}
		res.Err = s.ledger.Deposit(req.Caller, holder, req.Value)
	case command.KindWithdraw:
		res.Err = s.ledger.Withdraw(req.Caller, req.Value)
	case command.KindPostSellOrder:
		res.OrderID, res.Err = s.exchange.PostSellOrder(req.Caller, req.AssetID, req.Quantity, req.Price)
	case command.KindPostBuyOrder:
		res.OrderID = req.OrderID
		res.Err = s.exchange.PostBuyOrder(req.Caller, req.OrderID, req.Quantity, req.Value)
	default:
		res.Err = domain.NewOperationError(string(req.Kind), domain.ErrUnknownCommand)
	}
	return res
}

func (s *Sequencer) query(req command.Request) command.Result {
	var res command.Result

	switch req.Kind {
	case command.KindBalanceOf:
		res.Quantity = s.ledger.BalanceOf(req.Target, req.AssetID)
	case command.KindTotalSupply:
		res.Quantity = s.ledger.TotalSupply(req.AssetID)
	case command.KindIsApprovedForAll:
		res.Approved = s.ledger.IsApprovedForAll(req.Target, req.Operator)
	case command.KindFundsOf:
		res.Funds = s.ledger.FundsOf(req.Target)
	case command.KindGetOrderBook:
		res.Orders = s.exchange.GetOrderBook()
	case command.KindOpenOrders:
		res.Orders = s.exchange.OpenOrders()
	default:
		res.Err = domain.NewOperationError(string(req.Kind), domain.ErrUnknownCommand)
	}
	return res
}

// Replay re-applies journaled commands without journaling them again. It must
// run before Run. Entries must continue the sequence exactly and reproduce
// their recorded outcome.
func (s *Sequencer) Replay(entries []domain.JournalEntry) error {
	for i := range entries {
		entry := &entries[i]
		if entry.Seq != s.nextSeq {
			return fmt.Errorf("REPLAY_GAP_DETECTED: expected %d, got %d", s.nextSeq, entry.Seq)
		}

		var req command.Request
		if err := json.Unmarshal([]byte(entry.Payload), &req); err != nil {
			return fmt.Errorf("decode journal entry %d: %w", entry.Seq, err)
		}

		s.appliedAt = entry.AppliedAt
		res := s.apply(req)
		if code := domain.Code(res.Err); code != entry.Code {
			return fmt.Errorf("REPLAY_DIVERGENCE: seq %d recorded %q, replayed %q", entry.Seq, entry.Code, code)
		}
		s.nextSeq++
	}

	if len(entries) > 0 {
		slog.Info("Journal replayed",
			slog.Int("entries", len(entries)),
			slog.Uint64("last_seq", s.LastSeq()))
	}
	return nil
}

// State captures the ledger and order book at the last applied sequence.
func (s *Sequencer) State() *domain.State {
	return &domain.State{
		LastSeq: s.LastSeq(),
		Ledger:  s.ledger.Snapshot(),
		Book:    s.exchange.Snapshot(),
	}
}

func (s *Sequencer) snapshot(ctx context.Context) error {
	s.sinceSnapshot = 0
	if s.states == nil {
		return nil
	}
	state := s.State()
	if err := s.states.SaveState(ctx, state); err != nil {
		return fmt.Errorf("save snapshot at seq %d: %w", state.LastSeq, err)
	}
	slog.Debug("Snapshot saved", slog.Uint64("seq", state.LastSeq))
	return nil
}

// DumpState writes the entire internal state to a file (for post-mortem).
func (s *Sequencer) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	b, err := json.MarshalIndent(s.State(), "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
