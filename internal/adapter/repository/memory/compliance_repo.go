package memory

import (
	"context"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

type ComplianceRepository struct {
	store *Store
}

func NewComplianceRepository(store *Store) *ComplianceRepository {
	return &ComplianceRepository{store: store}
}

func cloneCompliance(e *domain.ComplianceEntry) *domain.ComplianceEntry {
	c := *e
	if e.ExpiresAt != nil {
		at := *e.ExpiresAt
		c.ExpiresAt = &at
	}
	return &c
}

func (r *ComplianceRepository) Save(_ context.Context, tx usecase.Transaction, entry *domain.ComplianceEntry) error {
	return r.store.write(tx, func() (func(), error) {
		addr := entry.Address
		prev, existed := r.store.compliance[addr]
		r.store.compliance[addr] = cloneCompliance(entry)
		return func() {
			if existed {
				r.store.compliance[addr] = prev
				return
			}
			delete(r.store.compliance, addr)
		}, nil
	})
}

func (r *ComplianceRepository) Get(ctx context.Context, addr domain.Address) (*domain.ComplianceEntry, error) {
	var entry *domain.ComplianceEntry
	if err := r.store.read(ctx, func() {
		if stored, ok := r.store.compliance[addr]; ok {
			entry = cloneCompliance(stored)
		}
	}); err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, domain.ErrComplianceEntryNotFound
	}
	return entry, nil
}
