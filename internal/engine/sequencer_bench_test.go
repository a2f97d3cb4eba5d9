package engine

import (
	"context"
	"testing"

	"token_market/internal/command"
	"token_market/internal/domain"
)

// BenchmarkSequencer_Process measures the hot path without channel overhead.
func BenchmarkSequencer_Process(b *testing.B) {
	s := newTestSequencer(b, Options{})
	ctx := context.Background()

	req := command.Request{Kind: command.KindDeposit, Caller: owner, Target: buyer, Value: domain.MustEther("1")}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		s.process(ctx, req)
	}
}

// BenchmarkSequencer_FullPipeline measures end-to-end Submit round trips.
func BenchmarkSequencer_FullPipeline(b *testing.B) {
	s := newTestSequencer(b, Options{InboxSize: 1024})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	req := command.Request{Kind: command.KindDeposit, Caller: owner, Target: buyer, Value: domain.MustEther("1")}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := s.Submit(ctx, req); err != nil {
			b.Fatal(err)
		}
	}

	b.StopTimer()
	cancel()
	<-done
}
