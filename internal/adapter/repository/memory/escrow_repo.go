package memory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

type EscrowRepository struct {
	store *Store
}

func NewEscrowRepository(store *Store) *EscrowRepository {
	return &EscrowRepository{store: store}
}

func cloneEscrow(e *domain.EscrowAccount) *domain.EscrowAccount {
	c := *e
	if e.ResolvedAt != nil {
		at := *e.ResolvedAt
		c.ResolvedAt = &at
	}
	return &c
}

func (r *EscrowRepository) Create(_ context.Context, tx usecase.Transaction, escrow *domain.EscrowAccount) error {
	return r.store.write(tx, func() (func(), error) {
		r.store.escrows[escrow.ID] = cloneEscrow(escrow)
		r.store.escrowOrder = append(r.store.escrowOrder, escrow.ID)
		id, n := escrow.ID, len(r.store.escrowOrder)-1
		return func() {
			delete(r.store.escrows, id)
			r.store.escrowOrder = r.store.escrowOrder[:n]
		}, nil
	})
}

func (r *EscrowRepository) GetByID(ctx context.Context, id string) (*domain.EscrowAccount, error) {
	var escrow *domain.EscrowAccount
	if err := r.store.read(ctx, func() {
		if stored, ok := r.store.escrows[id]; ok {
			escrow = cloneEscrow(stored)
		}
	}); err != nil {
		return nil, err
	}
	if escrow == nil {
		return nil, domain.ErrEscrowNotFound
	}
	return escrow, nil
}

func (r *EscrowRepository) GetPending(ctx context.Context, invoiceID uint64, kind domain.EscrowKind) (*domain.EscrowAccount, error) {
	var escrow *domain.EscrowAccount
	if err := r.store.read(ctx, func() {
		for _, id := range r.store.escrowOrder {
			e := r.store.escrows[id]
			if e.InvoiceID == invoiceID && e.Kind == kind && e.IsPending() {
				escrow = cloneEscrow(e)
				return
			}
		}
	}); err != nil {
		return nil, err
	}
	if escrow == nil {
		return nil, domain.ErrEscrowNotFound
	}
	return escrow, nil
}

func (r *EscrowRepository) GetPendingForUpdate(ctx context.Context, _ usecase.Transaction, invoiceID uint64, kind domain.EscrowKind) (*domain.EscrowAccount, error) {
	return r.GetPending(ctx, invoiceID, kind)
}

func (r *EscrowRepository) UpdateStatus(_ context.Context, tx usecase.Transaction, id string, status domain.EscrowStatus, resolvedAt time.Time) error {
	return r.store.write(tx, func() (func(), error) {
		prev, ok := r.store.escrows[id]
		if !ok {
			return nil, domain.ErrEscrowNotFound
		}
		next := cloneEscrow(prev)
		next.Status = status
		next.ResolvedAt = &resolvedAt
		r.store.escrows[id] = next
		return func() { r.store.escrows[id] = prev }, nil
	})
}

func (r *EscrowRepository) SumPending(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	if err := r.store.read(ctx, func() {
		for _, e := range r.store.escrows {
			if e.IsPending() {
				total = total.Add(e.Amount)
			}
		}
	}); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
