package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EscrowStatus string

const (
	EscrowStatusPending  EscrowStatus = "pending"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
)

// EscrowKind separates buyer purchase deposits from issuer repayments.
type EscrowKind string

const (
	EscrowKindPurchase  EscrowKind = "purchase"
	EscrowKindRepayment EscrowKind = "repayment"
)

// EscrowAccount is value held by the vault on behalf of an invoice.
type EscrowAccount struct {
	ID         string
	InvoiceID  uint64
	Kind       EscrowKind
	Depositor  Address
	Amount     decimal.Decimal
	Status     EscrowStatus
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// IsPending reports whether funds are still held.
func (e *EscrowAccount) IsPending() bool {
	return e.Status == EscrowStatusPending
}

// Release is the outcome of paying out an escrow.
type Release struct {
	Escrow    *EscrowAccount
	Recipient Address
	Payout    decimal.Decimal
	Fee       decimal.Decimal
}
