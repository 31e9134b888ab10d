package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorUnitsPerMajor is the number of minor units (cents) in one major currency unit
const MinorUnitsPerMajor = 100

// Money is an amount in integer minor units (cents).
// Ledger arithmetic is done on Money so that budget totals never drift through
// floating point rounding; decimal is only used at the edges.
type Money int64

// NewMoneyFromDecimal converts a major-unit decimal (e.g. 12.34) into Money.
// Amounts with more precision than one cent are rejected.
func NewMoneyFromDecimal(amount decimal.Decimal) (Money, error) {
	cents := amount.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than 2 decimal places", amount.String())
	}
	return Money(cents.IntPart()), nil
}

// NewMoneyFromString parses a major-unit amount such as "120.50"
func NewMoneyFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoneyFromDecimal(d)
}

// Decimal returns the amount in major units
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// String renders the amount in major units with two decimals
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Cents returns the raw minor-unit value
func (m Money) Cents() int64 {
	return int64(m)
}

// Add returns m + other
func (m Money) Add(other Money) Money {
	return m + other
}

// Sub returns m - other
func (m Money) Sub(other Money) Money {
	return m - other
}

// Neg returns -m
func (m Money) Neg() Money {
	return -m
}

// IsPositive returns true if the amount is greater than zero
func (m Money) IsPositive() bool {
	return m > 0
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m == 0
}
