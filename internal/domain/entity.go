package domain

import (
	"time"
)

// JournalEntry records one applied command, accepted or rejected.
type JournalEntry struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement:false" json:"seq"`
	Kind      string    `gorm:"index" json:"kind"`
	Caller    string    `gorm:"index" json:"caller"`
	Payload   string    `json:"payload"` // JSON-encoded request
	Code      string    `json:"code"`    // empty when accepted
	AppliedAt time.Time `json:"applied_at"`
}

// Accepted reports whether the command changed state.
func (e *JournalEntry) Accepted() bool {
	return e.Code == ""
}

// Snapshot rows. Asset ids, quantities and values are stored as decimal text so
// the full uint64 range and arbitrary wei amounts survive the SQLite integer limits.

type BalanceRecord struct {
	Holder   string `gorm:"primaryKey"`
	AssetID  string `gorm:"primaryKey"`
	Quantity string
}

type SupplyRecord struct {
	AssetID  string `gorm:"primaryKey"`
	Quantity string
}

type ApprovalRecord struct {
	Owner    string `gorm:"primaryKey"`
	Operator string `gorm:"primaryKey"`
}

type FundsRecord struct {
	Holder string `gorm:"primaryKey"`
	Value  string
}

type OrderRecord struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement:false"`
	Seller       string `gorm:"index"`
	AssetID      string `gorm:"index"`
	UnitPrice    string
	Quantity     string
	Remaining    string
	CreatedUnixM int64
}

// StateMeta holds scalar snapshot fields (Key-Value)
type StateMeta struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
