package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestInvoiceStatus_Transitions(t *testing.T) {
	tests := []struct {
		from    InvoiceStatus
		to      InvoiceStatus
		allowed bool
	}{
		{InvoiceStatusMinted, InvoiceStatusListed, true},
		{InvoiceStatusListed, InvoiceStatusMinted, true},
		{InvoiceStatusListed, InvoiceStatusSold, true},
		{InvoiceStatusSold, InvoiceStatusSettled, true},
		{InvoiceStatusSold, InvoiceStatusDefaulted, true},
		{InvoiceStatusMinted, InvoiceStatusSold, false},
		{InvoiceStatusSold, InvoiceStatusListed, false},
		{InvoiceStatusSold, InvoiceStatusMinted, false},
		{InvoiceStatusListed, InvoiceStatusSettled, false},
		{InvoiceStatusSettled, InvoiceStatusSold, false},
		{InvoiceStatusDefaulted, InvoiceStatusSettled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
				t.Fatalf("expected %v, got %v", tt.allowed, got)
			}
		})
	}
}

func TestInvoice_Transition(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	inv := &Invoice{ID: 1, Status: InvoiceStatusMinted}
	if err := inv.Transition(InvoiceStatusListed, now); err != nil {
		t.Fatalf("expected listed, got %v", err)
	}
	if inv.Status != InvoiceStatusListed || !inv.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected invoice after transition: %+v", inv)
	}

	if err := inv.Transition(InvoiceStatusSettled, now); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	settled := &Invoice{ID: 2, Status: InvoiceStatusSettled}
	if err := settled.Transition(InvoiceStatusDefaulted, now); !errors.Is(err, ErrTerminalState) {
		t.Fatalf("expected ErrTerminalState, got %v", err)
	}
	if settled.Status != InvoiceStatusSettled {
		t.Fatalf("terminal invoice must not change, got %s", settled.Status)
	}
}

func TestInvoice_IsOverdue(t *testing.T) {
	due := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	inv := &Invoice{DueDate: due}

	if inv.IsOverdue(due) {
		t.Fatal("invoice is not overdue at its due date")
	}
	if !inv.IsOverdue(due.Add(time.Second)) {
		t.Fatal("invoice should be overdue after its due date")
	}
}

func TestValidateMint(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := ValidateMint(decimal.NewFromInt(10000), now.Add(24*time.Hour), now); err != nil {
		t.Fatalf("expected valid mint, got %v", err)
	}
	if err := ValidateMint(decimal.Zero, now.Add(time.Hour), now); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := ValidateMint(decimal.NewFromInt(1), now, now); !errors.Is(err, ErrInvalidDueDate) {
		t.Fatalf("expected ErrInvalidDueDate for due == now, got %v", err)
	}
	if err := ValidateMint(decimal.NewFromInt(1), now.Add(-time.Hour), now); !errors.Is(err, ErrInvalidDueDate) {
		t.Fatalf("expected ErrInvalidDueDate for past due date, got %v", err)
	}
}
