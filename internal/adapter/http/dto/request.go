package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

// Amounts travel as decimal strings so large values survive JSON number handling.

// MintInvoiceRequest represents a request to mint an invoice.
type MintInvoiceRequest struct {
	FaceValue   string    `json:"face_value"`
	DueDate     time.Time `json:"due_date"`
	DocumentRef string    `json:"document_ref"`
}

// ToUseCaseInput converts to use case input. The issuer is the caller.
func (r *MintInvoiceRequest) ToUseCaseInput() (usecase.MintInput, error) {
	faceValue, err := parseAmount("face_value", r.FaceValue, domain.ErrInvalidAmount)
	if err != nil {
		return usecase.MintInput{}, err
	}
	return usecase.MintInput{
		FaceValue:   faceValue,
		DueDate:     r.DueDate,
		DocumentRef: r.DocumentRef,
	}, nil
}

// ListInvoiceRequest represents a request to list an invoice for sale.
type ListInvoiceRequest struct {
	Price      string `json:"price"`
	Negotiable bool   `json:"negotiable"`
}

// ParsePrice returns the listing price.
func (r *ListInvoiceRequest) ParsePrice() (decimal.Decimal, error) {
	return parseAmount("price", r.Price, domain.ErrInvalidPrice)
}

// RepriceRequest represents a request to change a negotiable listing's price.
type RepriceRequest struct {
	Price string `json:"price"`
}

// ParsePrice returns the new price.
func (r *RepriceRequest) ParsePrice() (decimal.Decimal, error) {
	return parseAmount("price", r.Price, domain.ErrInvalidPrice)
}

// SettleRequest represents a repayment offered by the issuer.
type SettleRequest struct {
	Repayment string `json:"repayment"`
}

// ParseRepayment returns the offered repayment.
func (r *SettleRequest) ParseRepayment() (decimal.Decimal, error) {
	return parseAmount("repayment", r.Repayment, domain.ErrInvalidAmount)
}

// RegisterComplianceRequest represents a request to verify an address.
type RegisterComplianceRequest struct {
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// AmountRequest carries a single amount, used by deposits and approvals.
type AmountRequest struct {
	Amount string `json:"amount"`
}

// ParseAmount returns the amount. Zero is accepted; the use case decides whether it is valid.
func (r *AmountRequest) ParseAmount() (decimal.Decimal, error) {
	return parseAmount("amount", r.Amount, domain.ErrInvalidAmount)
}

// PaginationRequest represents pagination parameters.
type PaginationRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func parseAmount(field, raw string, sentinel error) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: %s is required", sentinel, field)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q is not a number", sentinel, field, raw)
	}
	return d, nil
}
