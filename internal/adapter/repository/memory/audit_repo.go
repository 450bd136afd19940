package memory

import (
	"context"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

type AuditRepository struct {
	store *Store
}

func NewAuditRepository(store *Store) *AuditRepository {
	return &AuditRepository{store: store}
}

func (r *AuditRepository) CreateTx(_ context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	return r.store.write(tx, func() (func(), error) {
		c := *log
		r.store.audit = append(r.store.audit, &c)
		n := len(r.store.audit) - 1
		return func() { r.store.audit = r.store.audit[:n] }, nil
	})
}

// GetByResourceID returns audit logs for a resource, newest first.
func (r *AuditRepository) GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error) {
	var out []*domain.AuditLog
	if err := r.store.read(ctx, func() {
		for i := len(r.store.audit) - 1; i >= 0; i-- {
			l := r.store.audit[i]
			if l.ResourceType == resourceType && l.ResourceID == resourceID {
				c := *l
				out = append(out, &c)
			}
		}
	}); err != nil {
		return nil, err
	}
	return out, nil
}
