package dto

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/domain"
)

func TestMintInvoiceRequest_ToUseCaseInput(t *testing.T) {
	due := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		request MintInvoiceRequest
		want    decimal.Decimal
		wantErr error
	}{
		{"valid", MintInvoiceRequest{FaceValue: "10000", DueDate: due, DocumentRef: "ipfs://doc"}, decimal.NewFromInt(10000), nil},
		{"missing face value", MintInvoiceRequest{DueDate: due}, decimal.Zero, domain.ErrInvalidAmount},
		{"not a number", MintInvoiceRequest{FaceValue: "ten", DueDate: due}, decimal.Zero, domain.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.request.ToUseCaseInput()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.FaceValue.Equal(tt.want) || !got.DueDate.Equal(due) || got.DocumentRef != tt.request.DocumentRef {
				t.Fatalf("ToUseCaseInput() = %+v", got)
			}
		})
	}
}

func TestPriceRequestsUseInvalidPrice(t *testing.T) {
	if _, err := (&ListInvoiceRequest{Price: "abc"}).ParsePrice(); !errors.Is(err, domain.ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if _, err := (&RepriceRequest{}).ParsePrice(); !errors.Is(err, domain.ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}

	price, err := (&ListInvoiceRequest{Price: "9500"}).ParsePrice()
	if err != nil || !price.Equal(decimal.NewFromInt(9500)) {
		t.Fatalf("expected 9500, got %s err=%v", price, err)
	}
}

func TestAmountRequestAllowsZero(t *testing.T) {
	amount, err := (&AmountRequest{Amount: "0"}).ParseAmount()
	if err != nil || !amount.IsZero() {
		t.Fatalf("expected zero amount, got %s err=%v", amount, err)
	}

	if _, err := (&SettleRequest{Repayment: "1e"}).ParseRepayment(); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
