package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Order is a standing offer to sell Quantity units of one asset at UnitPrice each.
// Remaining is the only field that changes after creation.
type Order struct {
	ID           uint64          `json:"id"`
	Seller       Identity        `json:"seller"`
	AssetID      AssetID         `json:"asset_id"`
	UnitPrice    decimal.Decimal `json:"unit_price"` // base payment units per asset unit
	Quantity     uint64          `json:"quantity"`   // originally listed
	Remaining    uint64          `json:"remaining"`
	CreatedUnixM int64           `json:"created_at"` // Unix Microseconds
}

const (
	OrderStatusOpen   = "OPEN"
	OrderStatusFilled = "FILLED"
)

// IsOpen checks if the order can still be filled.
func (o *Order) IsOpen() bool {
	return o.Remaining > 0
}

// Status returns OPEN or FILLED. FILLED is terminal.
func (o *Order) Status() string {
	if o.IsOpen() {
		return OrderStatusOpen
	}
	return OrderStatusFilled
}

// Cost returns the exact payment required to fill qty units.
func (o *Order) Cost(qty uint64) decimal.Decimal {
	return o.UnitPrice.Mul(Units(qty))
}

// Filled returns how many units have been bought so far.
func (o *Order) Filled() uint64 {
	return o.Quantity - o.Remaining
}

// Units lifts an asset quantity into decimal space without going through int64.
func Units(qty uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(qty), 0)
}
