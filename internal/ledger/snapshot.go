package ledger

import (
	"fmt"
	"sort"

	"token_market/internal/domain"
	"token_market/pkg/safe"

	"github.com/shopspring/decimal"
)

// Snapshot returns a copy of the working state, sorted for stable output.
func (l *Ledger) Snapshot() domain.LedgerState {
	l.mu.Lock()
	defer l.mu.Unlock()

	state := domain.LedgerState{
		Administrator: l.admin,
		Balances:      make([]domain.BalanceEntry, 0, len(l.balances)),
		Supplies:      make([]domain.SupplyEntry, 0, len(l.supply)),
		Funds:         make([]domain.FundsEntry, 0, len(l.funds)),
	}

	for k, q := range l.balances {
		state.Balances = append(state.Balances, domain.BalanceEntry{Holder: k.holder, AssetID: k.asset, Quantity: q})
	}
	sort.Slice(state.Balances, func(i, j int) bool {
		a, b := state.Balances[i], state.Balances[j]
		if a.AssetID != b.AssetID {
			return a.AssetID < b.AssetID
		}
		return a.Holder < b.Holder
	})

	for asset, q := range l.supply {
		state.Supplies = append(state.Supplies, domain.SupplyEntry{AssetID: asset, Quantity: q})
	}
	sort.Slice(state.Supplies, func(i, j int) bool {
		return state.Supplies[i].AssetID < state.Supplies[j].AssetID
	})

	for owner, ops := range l.approvals {
		for op := range ops {
			state.Approvals = append(state.Approvals, domain.ApprovalGrant{Owner: owner, Operator: op})
		}
	}
	sort.Slice(state.Approvals, func(i, j int) bool {
		a, b := state.Approvals[i], state.Approvals[j]
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		return a.Operator < b.Operator
	})

	for holder, v := range l.funds {
		state.Funds = append(state.Funds, domain.FundsEntry{Holder: holder, Value: v})
	}
	sort.Slice(state.Funds, func(i, j int) bool {
		return state.Funds[i].Holder < state.Funds[j].Holder
	})

	return state
}

// Restore replaces the working state. The snapshot must belong to the same
// administrator and satisfy the supply invariant; otherwise nothing changes.
func (l *Ledger) Restore(state domain.LedgerState) error {
	if state.Administrator != "" && state.Administrator != l.admin {
		return fmt.Errorf("restore ledger: snapshot administrator %q does not match %q: %w",
			state.Administrator, l.admin, domain.ErrUnauthorized)
	}

	balances := make(map[balanceKey]uint64, len(state.Balances))
	sums := make(map[domain.AssetID]uint64)
	for _, e := range state.Balances {
		if !e.Holder.Valid() {
			return fmt.Errorf("restore ledger: %w", domain.ErrInvalidIdentity)
		}
		balances[balanceKey{holder: e.Holder, asset: e.AssetID}] = e.Quantity
		sum, err := safe.Add(sums[e.AssetID], e.Quantity)
		if err != nil {
			return fmt.Errorf("restore ledger: asset %d: %w", e.AssetID, domain.ErrOverflow)
		}
		sums[e.AssetID] = sum
	}

	supply := make(map[domain.AssetID]uint64, len(state.Supplies))
	for _, e := range state.Supplies {
		supply[e.AssetID] = e.Quantity
	}
	if err := checkSupply(supply, sums); err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}

	approvals := make(map[domain.Identity]map[domain.Identity]bool)
	for _, g := range state.Approvals {
		if !g.Owner.Valid() || !g.Operator.Valid() {
			return fmt.Errorf("restore ledger: approval: %w", domain.ErrInvalidIdentity)
		}
		if g.Owner == g.Operator {
			return fmt.Errorf("restore ledger: self approval for %s: %w", g.Owner, domain.ErrInvalidIdentity)
		}
		if _, ok := approvals[g.Owner]; !ok {
			approvals[g.Owner] = make(map[domain.Identity]bool)
		}
		approvals[g.Owner][g.Operator] = true
	}

	funds := make(map[domain.Identity]decimal.Decimal, len(state.Funds))
	for _, f := range state.Funds {
		if !f.Holder.Valid() {
			return fmt.Errorf("restore ledger: funds: %w", domain.ErrInvalidIdentity)
		}
		if f.Value.IsNegative() {
			return fmt.Errorf("restore ledger: negative funds for %s: %w", f.Holder, domain.ErrInvalidValue)
		}
		funds[f.Holder] = f.Value
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = balances
	l.supply = supply
	l.approvals = approvals
	l.funds = funds
	return nil
}

// VerifyInvariants checks that every asset's supply equals the sum of its balances.
func (l *Ledger) VerifyInvariants() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	sums := make(map[domain.AssetID]uint64)
	for k, q := range l.balances {
		sum, err := safe.Add(sums[k.asset], q)
		if err != nil {
			return fmt.Errorf("LEDGER_INVARIANT_OVERFLOW: asset %d", k.asset)
		}
		sums[k.asset] = sum
	}
	return checkSupply(l.supply, sums)
}

func checkSupply(supply, sums map[domain.AssetID]uint64) error {
	for asset, sum := range sums {
		if supply[asset] != sum {
			return fmt.Errorf("LEDGER_INVARIANT_SUPPLY_MISMATCH: asset %d supply=%d, balances=%d",
				asset, supply[asset], sum)
		}
	}
	for asset, s := range supply {
		if _, ok := sums[asset]; !ok && s != 0 {
			return fmt.Errorf("LEDGER_INVARIANT_SUPPLY_MISMATCH: asset %d supply=%d, balances=0", asset, s)
		}
	}
	return nil
}
