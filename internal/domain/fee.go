package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultFeeRate is the platform fee taken from a purchase payout (5%).
var DefaultFeeRate = decimal.RequireFromString("0.05")

// ValidateFeeRate checks 0 <= rate < 1.
func ValidateFeeRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: %s", ErrInvalidFeeRate, rate)
	}
	return nil
}

// SplitFee divides amount into the seller payout and the platform fee.
// The fee is rounded down to whole units so payout + fee == amount.
func SplitFee(amount, rate decimal.Decimal) (payout, fee decimal.Decimal) {
	fee = amount.Mul(rate).Floor()
	return amount.Sub(fee), fee
}
