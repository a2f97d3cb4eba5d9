package ledger

import (
	"log/slog"
	"sync"

	"token_market/internal/domain"

	"github.com/shopspring/decimal"
)

type balanceKey struct {
	holder domain.Identity
	asset  domain.AssetID
}

// Ledger is the single source of truth for who owns how much of which asset,
// who may move whose assets, and how much payment value each identity holds.
// All mutations go through Update and are serialized by one lock.
type Ledger struct {
	mu sync.Mutex

	admin     domain.Identity
	balances  map[balanceKey]uint64
	supply    map[domain.AssetID]uint64
	approvals map[domain.Identity]map[domain.Identity]bool // owner -> operators
	funds     map[domain.Identity]decimal.Decimal
}

// New creates an empty ledger administered by admin.
func New(admin domain.Identity) (*Ledger, error) {
	if !admin.Valid() {
		return nil, domain.NewOperationError("new_ledger", domain.ErrInvalidIdentity)
	}
	return &Ledger{
		admin:     admin,
		balances:  make(map[balanceKey]uint64),
		supply:    make(map[domain.AssetID]uint64),
		approvals: make(map[domain.Identity]map[domain.Identity]bool),
		funds:     make(map[domain.Identity]decimal.Decimal),
	}, nil
}

// Administrator returns the identity allowed to issue.
func (l *Ledger) Administrator() domain.Identity {
	return l.admin
}

// Update runs fn as one indivisible unit. If fn returns an error or panics,
// every mutation made through tx is undone before Update returns.
func (l *Ledger) Update(fn func(tx *Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &Tx{l: l}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	tx.commit()
	return nil
}

// Issue mints quantity of asset to target. Administrator only.
func (l *Ledger) Issue(caller, target domain.Identity, asset domain.AssetID, quantity uint64, memo string) error {
	return l.Update(func(tx *Tx) error {
		return tx.Issue(caller, target, asset, quantity, memo)
	})
}

// Transfer moves quantity of asset from one holder to another.
func (l *Ledger) Transfer(caller, from, to domain.Identity, asset domain.AssetID, quantity uint64, memo string) error {
	return l.Update(func(tx *Tx) error {
		return tx.Transfer(caller, from, to, asset, quantity, memo)
	})
}

// SetApprovalForAll grants or revokes operator's right to move caller's balances.
func (l *Ledger) SetApprovalForAll(caller, operator domain.Identity, approved bool) error {
	return l.Update(func(tx *Tx) error {
		return tx.SetApprovalForAll(caller, operator, approved)
	})
}

// Deposit credits payment value to holder. Administrator only.
func (l *Ledger) Deposit(caller, holder domain.Identity, value decimal.Decimal) error {
	return l.Update(func(tx *Tx) error {
		return tx.Deposit(caller, holder, value)
	})
}

// Withdraw debits payment value from the caller.
func (l *Ledger) Withdraw(caller domain.Identity, value decimal.Decimal) error {
	return l.Update(func(tx *Tx) error {
		return tx.Withdraw(caller, value)
	})
}

// BalanceOf returns holder's quantity of asset; absent entries read as zero.
func (l *Ledger) BalanceOf(holder domain.Identity, asset domain.AssetID) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceOf(holder, asset)
}

// TotalSupply returns the issued quantity of asset.
func (l *Ledger) TotalSupply(asset domain.AssetID) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply[asset]
}

// IsApprovedForAll reports whether operator may move owner's balances.
func (l *Ledger) IsApprovedForAll(owner, operator domain.Identity) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.approvals[owner][operator]
}

// FundsOf returns holder's payment balance.
func (l *Ledger) FundsOf(holder domain.Identity) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fundsOf(holder)
}

func (l *Ledger) balanceOf(holder domain.Identity, asset domain.AssetID) uint64 {
	return l.balances[balanceKey{holder: holder, asset: asset}]
}

func (l *Ledger) fundsOf(holder domain.Identity) decimal.Decimal {
	v, ok := l.funds[holder]
	if !ok {
		return decimal.Zero
	}
	return v
}

func logMemo(op string, memo string, attrs ...any) {
	if memo == "" {
		slog.Debug("ledger "+op, attrs...)
		return
	}
	slog.Debug("ledger "+op, append(attrs, slog.String("memo", memo))...)
}
