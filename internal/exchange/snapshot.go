package exchange

import (
	"fmt"

	"token_market/internal/domain"
)

// Snapshot returns the order book for persistence.
func (e *Exchange) Snapshot() domain.BookState {
	orders := e.GetOrderBook()
	return domain.BookState{
		NextOrderID: uint64(len(orders)),
		Orders:      orders,
	}
}

// Restore replaces the order book. Ids must be dense from 0 and every order's
// remaining quantity must be covered by the exchange's ledger balance.
func (e *Exchange) Restore(state domain.BookState) error {
	if state.NextOrderID != uint64(len(state.Orders)) {
		return fmt.Errorf("restore order book: next id %d with %d orders", state.NextOrderID, len(state.Orders))
	}

	orders := make([]*domain.Order, len(state.Orders))
	for i := range state.Orders {
		o := state.Orders[i]
		if o.ID != uint64(i) {
			return fmt.Errorf("restore order book: order at position %d has id %d", i, o.ID)
		}
		if o.Remaining > o.Quantity {
			return fmt.Errorf("restore order book: order %d remaining %d exceeds quantity %d", o.ID, o.Remaining, o.Quantity)
		}
		orders[i] = &o
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.orders
	e.orders = orders
	if err := e.verifyEscrow(); err != nil {
		e.orders = prev
		return fmt.Errorf("restore order book: %w", err)
	}
	return nil
}

// VerifyEscrow checks that the exchange's ledger balance covers the remaining
// quantity of every asset listed in the book.
func (e *Exchange) VerifyEscrow() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.verifyEscrow()
}

func (e *Exchange) verifyEscrow() error {
	seen := make(map[domain.AssetID]bool)
	for _, o := range e.orders {
		if seen[o.AssetID] {
			continue
		}
		seen[o.AssetID] = true

		held := e.ledger.BalanceOf(e.identity, o.AssetID)
		if need := e.escrowed(o.AssetID); held < need {
			return fmt.Errorf("ESCROW_INVARIANT_VIOLATED: asset %d held=%d, open=%d", o.AssetID, held, need)
		}
	}
	return nil
}
