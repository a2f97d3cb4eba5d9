package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Identity names a ledger participant: an end user, the administrator or the
// exchange's own custody account.
type Identity string

// AssetID identifies a fungible asset class.
type AssetID uint64

// EtherDecimals is the scale between the display unit and the base payment unit (wei).
const EtherDecimals = 18

// Valid reports whether the identity can hold balances.
func (id Identity) Valid() bool {
	return id != ""
}

// ParseEther converts a display amount such as "0.1" into whole base units.
// Amounts with more than EtherDecimals fractional digits are rejected.
func ParseEther(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse ether %q: %w", s, err)
	}
	wei := d.Shift(EtherDecimals)
	if !wei.IsInteger() {
		return decimal.Zero, fmt.Errorf("parse ether %q: %w", s, ErrInvalidValue)
	}
	return wei, nil
}

// MustEther is ParseEther for constants. Panics on malformed input.
func MustEther(s string) decimal.Decimal {
	wei, err := ParseEther(s)
	if err != nil {
		panic(err)
	}
	return wei
}

// ValidateValue checks that a payment value is a positive whole number of base units.
func ValidateValue(v decimal.Decimal) error {
	if !v.IsPositive() || !v.IsInteger() {
		return ErrInvalidValue
	}
	return nil
}
