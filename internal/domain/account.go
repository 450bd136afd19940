package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the settlement currency balance of an address.
type Account struct {
	Address   Address
	Balance   decimal.Decimal
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateDebit checks if account can be debited by amount.
func (a *Account) ValidateDebit(amount decimal.Decimal) error {
	if a.Balance.Sub(amount).IsNegative() {
		return ErrInsufficientFunds
	}
	return nil
}

// ApplyDebit returns new balance after debit.
func (a *Account) ApplyDebit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Sub(amount)
}

// ApplyCredit returns new balance after credit.
func (a *Account) ApplyCredit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Add(amount)
}

// Allowance is the amount Spender may pull from Owner.
type Allowance struct {
	Owner     Address
	Spender   Address
	Amount    decimal.Decimal
	UpdatedAt time.Time
}

// Covers reports whether amount can be pulled under this allowance.
func (a *Allowance) Covers(amount decimal.Decimal) bool {
	return a.Amount.GreaterThanOrEqual(amount)
}
