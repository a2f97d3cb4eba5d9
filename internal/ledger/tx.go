package ledger

import (
	"fmt"
	"log/slog"

	"token_market/internal/domain"
	"token_market/pkg/safe"

	"github.com/shopspring/decimal"
)

// Tx is a unit of work inside Ledger.Update. Each mutation pushes its inverse
// onto an undo log that is replayed in reverse on rollback.
// A Tx must not be used after Update returns.
type Tx struct {
	l      *Ledger
	undo   []func()
	closed bool
}

// OnRollback registers fn to run if the enclosing Update fails. Collaborators
// use it to undo state they own alongside ledger mutations.
func (tx *Tx) OnRollback(fn func()) {
	tx.mustBeOpen()
	tx.undo = append(tx.undo, fn)
}

func (tx *Tx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	tx.closed = true
}

func (tx *Tx) commit() {
	tx.undo = nil
	tx.closed = true
}

func (tx *Tx) mustBeOpen() {
	if tx.closed {
		panic("LEDGER_TX_CLOSED")
	}
}

// Issue mints quantity of asset to target. Administrator only. A zero quantity
// passes the checks and changes nothing.
func (tx *Tx) Issue(caller, target domain.Identity, asset domain.AssetID, quantity uint64, memo string) error {
	const op = "issue"
	tx.mustBeOpen()

	if err := tx.l.requireAdministrator(caller); err != nil {
		return domain.NewOperationError(op, err)
	}
	if err := requireIdentities(target); err != nil {
		return domain.NewOperationError(op, err)
	}
	if quantity == 0 {
		return nil
	}

	// Supply bounds every balance, so checking it first covers the balance too.
	supply, err := safe.Add(tx.l.supply[asset], quantity)
	if err != nil {
		return domain.NewOperationError(op, domain.ErrOverflow)
	}
	balance := safe.MustAdd(tx.l.balanceOf(target, asset), quantity)

	tx.setSupply(asset, supply)
	tx.setBalance(target, asset, balance)

	logMemo(op, memo,
		slog.String("target", string(target)),
		slog.Uint64("asset", uint64(asset)),
		slog.Uint64("quantity", quantity))
	return nil
}

// Transfer moves quantity of asset from one holder to another. The caller must
// be from or an operator approved by from. A zero quantity changes nothing.
func (tx *Tx) Transfer(caller, from, to domain.Identity, asset domain.AssetID, quantity uint64, memo string) error {
	const op = "transfer"
	tx.mustBeOpen()

	if err := requireIdentities(caller, from, to); err != nil {
		return domain.NewOperationError(op, err)
	}
	if err := tx.l.requireOperator(caller, from); err != nil {
		return domain.NewOperationError(op, err)
	}
	if quantity == 0 {
		return nil
	}

	fromBalance := tx.l.balanceOf(from, asset)
	if fromBalance < quantity {
		return domain.NewOperationError(op, domain.ErrInsufficientBalance)
	}
	if from == to {
		return nil
	}

	tx.setBalance(from, asset, safe.MustSub(fromBalance, quantity))
	tx.setBalance(to, asset, safe.MustAdd(tx.l.balanceOf(to, asset), quantity))

	logMemo(op, memo,
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.Uint64("asset", uint64(asset)),
		slog.Uint64("quantity", quantity))
	return nil
}

// SetApprovalForAll grants or revokes operator's right to move caller's balances.
// Idempotent.
func (tx *Tx) SetApprovalForAll(caller, operator domain.Identity, approved bool) error {
	const op = "set_approval_for_all"
	tx.mustBeOpen()

	if err := requireIdentities(caller, operator); err != nil {
		return domain.NewOperationError(op, err)
	}
	if caller == operator {
		return domain.NewOperationError(op, fmt.Errorf("%w: self approval", domain.ErrInvalidIdentity))
	}

	tx.setApproval(caller, operator, approved)
	return nil
}

// BalanceOf reads inside the unit of work, observing its uncommitted writes.
func (tx *Tx) BalanceOf(holder domain.Identity, asset domain.AssetID) uint64 {
	return tx.l.balanceOf(holder, asset)
}

func (tx *Tx) TotalSupply(asset domain.AssetID) uint64 {
	return tx.l.supply[asset]
}

func (tx *Tx) FundsOf(holder domain.Identity) decimal.Decimal {
	return tx.l.fundsOf(holder)
}

// Entries persist at zero once created.
func (tx *Tx) setBalance(holder domain.Identity, asset domain.AssetID, quantity uint64) {
	key := balanceKey{holder: holder, asset: asset}
	prev, existed := tx.l.balances[key]
	tx.undo = append(tx.undo, func() {
		if existed {
			tx.l.balances[key] = prev
		} else {
			delete(tx.l.balances, key)
		}
	})
	tx.l.balances[key] = quantity
}

func (tx *Tx) setSupply(asset domain.AssetID, quantity uint64) {
	prev, existed := tx.l.supply[asset]
	tx.undo = append(tx.undo, func() {
		if existed {
			tx.l.supply[asset] = prev
		} else {
			delete(tx.l.supply, asset)
		}
	})
	tx.l.supply[asset] = quantity
}

func (tx *Tx) setApproval(owner, operator domain.Identity, approved bool) {
	prev := tx.l.approvals[owner][operator]
	tx.undo = append(tx.undo, func() {
		tx.l.putApproval(owner, operator, prev)
	})
	tx.l.putApproval(owner, operator, approved)
}

func (tx *Tx) setFunds(holder domain.Identity, value decimal.Decimal) {
	prev, existed := tx.l.funds[holder]
	tx.undo = append(tx.undo, func() {
		if existed {
			tx.l.funds[holder] = prev
		} else {
			delete(tx.l.funds, holder)
		}
	})
	tx.l.funds[holder] = value
}

func (l *Ledger) putApproval(owner, operator domain.Identity, approved bool) {
	ops, ok := l.approvals[owner]
	if !approved {
		if ok {
			delete(ops, operator)
			if len(ops) == 0 {
				delete(l.approvals, owner)
			}
		}
		return
	}
	if !ok {
		ops = make(map[domain.Identity]bool)
		l.approvals[owner] = ops
	}
	ops[operator] = true
}
