package domain

import "github.com/shopspring/decimal"

// BalanceEntry is one row of the balance table.
type BalanceEntry struct {
	Holder   Identity `json:"holder"`
	AssetID  AssetID  `json:"asset_id"`
	Quantity uint64   `json:"quantity"`
}

type SupplyEntry struct {
	AssetID  AssetID `json:"asset_id"`
	Quantity uint64  `json:"quantity"`
}

// ApprovalGrant lets Operator move any of Owner's balances.
type ApprovalGrant struct {
	Owner    Identity `json:"owner"`
	Operator Identity `json:"operator"`
}

type FundsEntry struct {
	Holder Identity        `json:"holder"`
	Value  decimal.Decimal `json:"value"`
}

// LedgerState is the ledger's full working state in deterministic order.
type LedgerState struct {
	Administrator Identity        `json:"administrator"`
	Balances      []BalanceEntry  `json:"balances"`
	Supplies      []SupplyEntry   `json:"supplies"`
	Approvals     []ApprovalGrant `json:"approvals"`
	Funds         []FundsEntry    `json:"funds"`
}

// BookState is the exchange's order book.
type BookState struct {
	NextOrderID uint64  `json:"next_order_id"`
	Orders      []Order `json:"orders"`
}

// State is everything needed to resume after LastSeq.
type State struct {
	LastSeq uint64      `json:"last_seq"`
	Ledger  LedgerState `json:"ledger"`
	Book    BookState   `json:"book"`
}
