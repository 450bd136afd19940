package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAccount_ValidateDebit(t *testing.T) {
	tests := []struct {
		name        string
		balance     decimal.Decimal
		debitAmount decimal.Decimal
		expectError bool
	}{
		{
			name:        "debit more than balance",
			balance:     decimal.NewFromInt(100),
			debitAmount: decimal.NewFromInt(150),
			expectError: true,
		},
		{
			name:        "debit exact balance",
			balance:     decimal.NewFromInt(100),
			debitAmount: decimal.NewFromInt(100),
			expectError: false,
		},
		{
			name:        "debit less than balance",
			balance:     decimal.NewFromInt(100),
			debitAmount: decimal.NewFromInt(50),
			expectError: false,
		},
		{
			name:        "debit from empty account",
			balance:     decimal.Zero,
			debitAmount: decimal.NewFromInt(1),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &Account{Balance: tt.balance}
			err := acc.ValidateDebit(tt.debitAmount)
			if tt.expectError {
				if !errors.Is(err, ErrInsufficientFunds) {
					t.Fatalf("expected ErrInsufficientFunds, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestAccount_ApplyDebitCredit(t *testing.T) {
	acc := &Account{Balance: decimal.NewFromInt(100)}

	if got := acc.ApplyDebit(decimal.NewFromInt(30)); !got.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected 70 after debit, got %s", got)
	}
	if got := acc.ApplyCredit(decimal.NewFromInt(30)); !got.Equal(decimal.NewFromInt(130)) {
		t.Fatalf("expected 130 after credit, got %s", got)
	}
}

func TestAllowance_Covers(t *testing.T) {
	a := &Allowance{Amount: decimal.NewFromInt(9500)}

	if !a.Covers(decimal.NewFromInt(9500)) {
		t.Fatal("expected exact allowance to cover amount")
	}
	if a.Covers(decimal.NewFromInt(9501)) {
		t.Fatal("expected allowance not to cover larger amount")
	}
}

func TestTransfer_Validate(t *testing.T) {
	alice := MustParseAddress("0x00000000000000000000000000000000000000a1")
	bob := MustParseAddress("0x00000000000000000000000000000000000000b0")

	tr := &Transfer{From: alice, To: alice, Amount: decimal.NewFromInt(1)}
	if err := tr.Validate(); !errors.Is(err, ErrSameAccount) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}

	tr = &Transfer{From: alice, To: bob, Amount: decimal.Zero}
	if err := tr.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	tr = &Transfer{From: ZeroAddress, To: bob, Amount: decimal.NewFromInt(10)}
	if err := tr.Validate(); err != nil {
		t.Fatalf("expected deposit transfer to be valid, got %v", err)
	}
}
