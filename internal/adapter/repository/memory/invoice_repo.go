package memory

import (
	"context"
	"sort"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

type InvoiceRepository struct {
	store *Store
}

func NewInvoiceRepository(store *Store) *InvoiceRepository {
	return &InvoiceRepository{store: store}
}

func cloneInvoice(inv *domain.Invoice) *domain.Invoice {
	c := *inv
	return &c
}

func (r *InvoiceRepository) NextID(_ context.Context, tx usecase.Transaction) (uint64, error) {
	var id uint64
	err := r.store.write(tx, func() (func(), error) {
		id = r.store.nextInvoiceID
		r.store.nextInvoiceID++
		return func() { r.store.nextInvoiceID = id }, nil
	})
	return id, err
}

func (r *InvoiceRepository) Create(_ context.Context, tx usecase.Transaction, invoice *domain.Invoice) error {
	return r.store.write(tx, func() (func(), error) {
		r.store.invoices[invoice.ID] = cloneInvoice(invoice)
		id := invoice.ID
		return func() { delete(r.store.invoices, id) }, nil
	})
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uint64) (*domain.Invoice, error) {
	var inv *domain.Invoice
	if err := r.store.read(ctx, func() {
		if stored, ok := r.store.invoices[id]; ok {
			inv = cloneInvoice(stored)
		}
	}); err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrInvoiceNotFound
	}
	return inv, nil
}

// GetByIDForUpdate needs no row lock; the open transaction already excludes other writers.
func (r *InvoiceRepository) GetByIDForUpdate(ctx context.Context, _ usecase.Transaction, id uint64) (*domain.Invoice, error) {
	return r.GetByID(ctx, id)
}

func (r *InvoiceRepository) Update(_ context.Context, tx usecase.Transaction, invoice *domain.Invoice) error {
	return r.store.write(tx, func() (func(), error) {
		prev, ok := r.store.invoices[invoice.ID]
		if !ok {
			return nil, domain.ErrInvoiceNotFound
		}
		r.store.invoices[invoice.ID] = cloneInvoice(invoice)
		return func() { r.store.invoices[prev.ID] = prev }, nil
	})
}

func (r *InvoiceRepository) ListByHolder(ctx context.Context, holder domain.Address, limit, offset int) ([]*domain.Invoice, error) {
	return r.list(ctx, func(inv *domain.Invoice) bool { return inv.Holder == holder }, limit, offset)
}

func (r *InvoiceRepository) ListByIssuer(ctx context.Context, issuer domain.Address, limit, offset int) ([]*domain.Invoice, error) {
	return r.list(ctx, func(inv *domain.Invoice) bool { return inv.Issuer == issuer }, limit, offset)
}

func (r *InvoiceRepository) list(ctx context.Context, match func(*domain.Invoice) bool, limit, offset int) ([]*domain.Invoice, error) {
	var out []*domain.Invoice
	if err := r.store.read(ctx, func() {
		for _, inv := range r.store.invoices {
			if match(inv) {
				out = append(out, cloneInvoice(inv))
			}
		}
	}); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, limit, offset), nil
}

func (r *InvoiceRepository) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := r.store.read(ctx, func() { n = r.store.nextInvoiceID }); err != nil {
		return 0, err
	}
	return n, nil
}
