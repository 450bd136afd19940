package memory

import (
	"context"
	"sort"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

type ListingRepository struct {
	store *Store
}

func NewListingRepository(store *Store) *ListingRepository {
	return &ListingRepository{store: store}
}

func cloneListing(l *domain.Listing) *domain.Listing {
	c := *l
	if l.Buyer != nil {
		buyer := *l.Buyer
		c.Buyer = &buyer
	}
	return &c
}

func (r *ListingRepository) Save(_ context.Context, tx usecase.Transaction, listing *domain.Listing) error {
	return r.store.write(tx, func() (func(), error) {
		id := listing.InvoiceID
		prev, existed := r.store.listings[id]
		r.store.listings[id] = cloneListing(listing)
		return func() {
			if existed {
				r.store.listings[id] = prev
				return
			}
			delete(r.store.listings, id)
		}, nil
	})
}

func (r *ListingRepository) GetByInvoiceID(ctx context.Context, invoiceID uint64) (*domain.Listing, error) {
	var listing *domain.Listing
	if err := r.store.read(ctx, func() {
		if stored, ok := r.store.listings[invoiceID]; ok {
			listing = cloneListing(stored)
		}
	}); err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, domain.ErrListingNotFound
	}
	return listing, nil
}

func (r *ListingRepository) GetByInvoiceIDForUpdate(ctx context.Context, _ usecase.Transaction, invoiceID uint64) (*domain.Listing, error) {
	return r.GetByInvoiceID(ctx, invoiceID)
}

func (r *ListingRepository) ListActive(ctx context.Context, limit, offset int) ([]*domain.Listing, error) {
	var out []*domain.Listing
	if err := r.store.read(ctx, func() {
		for _, l := range r.store.listings {
			if l.Active {
				out = append(out, cloneListing(l))
			}
		}
	}); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceID < out[j].InvoiceID })
	return paginate(out, limit, offset), nil
}
