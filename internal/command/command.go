package command

import (
	"token_market/internal/domain"

	"github.com/shopspring/decimal"
)

// Kind names an operation on the market.
type Kind string

const (
	KindIssue             Kind = "issue"
	KindTransfer          Kind = "transfer"
	KindSetApprovalForAll Kind = "set_approval_for_all"
	KindDeposit           Kind = "deposit"
	KindWithdraw          Kind = "withdraw"
	KindPostSellOrder     Kind = "post_sell_order"
	KindPostBuyOrder      Kind = "post_buy_order"

	KindBalanceOf        Kind = "balance_of"
	KindTotalSupply      Kind = "total_supply"
	KindIsApprovedForAll Kind = "is_approved_for_all"
	KindFundsOf          Kind = "funds_of"
	KindGetOrderBook     Kind = "get_order_book"
	KindOpenOrders       Kind = "open_orders"
)

// IsQuery reports whether the kind only reads state. Queries are not sequenced or journaled.
func (k Kind) IsQuery() bool {
	switch k {
	case KindBalanceOf, KindTotalSupply, KindIsApprovedForAll, KindFundsOf, KindGetOrderBook, KindOpenOrders:
		return true
	default:
		return false
	}
}

// Request carries one operation. Caller is the implicit identity of every call;
// the remaining fields are used according to Kind:
//
//	issue                 Target, AssetID, Quantity, Memo
//	transfer              From, To, AssetID, Quantity, Memo
//	set_approval_for_all  Operator, Approved
//	deposit               Target, Value
//	withdraw              Value
//	post_sell_order       AssetID, Quantity, Price
//	post_buy_order        OrderID, Quantity, Value (payment)
//	balance_of            Target, AssetID
//	total_supply          AssetID
//	is_approved_for_all   Target (owner), Operator
//	funds_of              Target
type Request struct {
	Kind     Kind            `json:"kind"`
	Caller   domain.Identity `json:"caller"`
	Target   domain.Identity `json:"target,omitempty"`
	From     domain.Identity `json:"from,omitempty"`
	To       domain.Identity `json:"to,omitempty"`
	Operator domain.Identity `json:"operator,omitempty"`
	Approved bool            `json:"approved,omitempty"`
	AssetID  domain.AssetID  `json:"asset_id,omitempty"`
	Quantity uint64          `json:"quantity,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
	OrderID  uint64          `json:"order_id,omitempty"`
	Memo     string          `json:"memo,omitempty"`
}

// Result is the outcome of a Request. Seq is zero for queries.
type Result struct {
	Seq      uint64
	OrderID  uint64
	Quantity uint64
	Funds    decimal.Decimal
	Approved bool
	Orders   []domain.Order
	Err      error
}
