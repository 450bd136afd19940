package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusMinted    InvoiceStatus = "minted"
	InvoiceStatusListed    InvoiceStatus = "listed"
	InvoiceStatusSold      InvoiceStatus = "sold"
	InvoiceStatusSettled   InvoiceStatus = "settled"
	InvoiceStatusDefaulted InvoiceStatus = "defaulted"
)

// Allowed lifecycle transitions. listed -> minted is the only backward edge (cancel).
var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusMinted: {InvoiceStatusListed},
	InvoiceStatusListed: {InvoiceStatusMinted, InvoiceStatusSold},
	InvoiceStatusSold:   {InvoiceStatusSettled, InvoiceStatusDefaulted},
}

// IsValid reports whether s is a known status.
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusMinted, InvoiceStatusListed, InvoiceStatusSold,
		InvoiceStatusSettled, InvoiceStatusDefaulted:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusSettled || s == InvoiceStatusDefaulted
}

// CanTransitionTo checks the lifecycle graph.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	for _, allowed := range invoiceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Invoice is a tokenized claim on a future payment.
type Invoice struct {
	ID          uint64
	Issuer      Address
	Holder      Address
	FaceValue   decimal.Decimal
	DueDate     time.Time
	DocumentRef string
	Status      InvoiceStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Transition moves the invoice to next, enforcing the lifecycle graph.
func (i *Invoice) Transition(next InvoiceStatus, at time.Time) error {
	if i.Status.IsTerminal() {
		return fmt.Errorf("%w: invoice %d is %s", ErrTerminalState, i.ID, i.Status)
	}
	if !i.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: invoice %d cannot move from %s to %s", ErrInvalidState, i.ID, i.Status, next)
	}

	i.Status = next
	i.UpdatedAt = at
	return nil
}

// IsOverdue reports whether the due date has strictly passed at now.
func (i *Invoice) IsOverdue(now time.Time) bool {
	return now.After(i.DueDate)
}

// ValidateMint checks the issuer supplied fields of a new invoice.
func ValidateMint(faceValue decimal.Decimal, dueDate, now time.Time) error {
	if err := ValidateAmount(faceValue); err != nil {
		return err
	}
	if !dueDate.After(now) {
		return fmt.Errorf("%w: %s is not after %s", ErrInvalidDueDate,
			dueDate.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339))
	}
	return nil
}
