package memory

import (
	"context"
	"time"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

type OutboxRepository struct {
	store *Store
}

func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

func cloneEvent(e *domain.OutboxEvent) *domain.OutboxEvent {
	c := *e
	if e.PublishedAt != nil {
		at := *e.PublishedAt
		c.PublishedAt = &at
	}
	return &c
}

func (r *OutboxRepository) Create(_ context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	return r.store.write(tx, func() (func(), error) {
		r.store.outbox = append(r.store.outbox, cloneEvent(event))
		n := len(r.store.outbox) - 1
		return func() { r.store.outbox = r.store.outbox[:n] }, nil
	})
}

func (r *OutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	var out []*domain.OutboxEvent
	if err := r.store.read(ctx, func() {
		for _, e := range r.store.outbox {
			if !e.Published {
				out = append(out, cloneEvent(e))
				if limit > 0 && len(out) == limit {
					return
				}
			}
		}
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkPublished is applied immediately; publishing happens outside business transactions.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	if err := r.store.read(ctx, func() {
		for _, e := range r.store.outbox {
			if e.ID == id {
				at := publishedAt
				e.Published = true
				e.PublishedAt = &at
				return
			}
		}
	}); err != nil {
		return err
	}
	return nil
}

func (r *OutboxRepository) GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	var out []*domain.OutboxEvent
	if err := r.store.read(ctx, func() {
		for _, e := range r.store.outbox {
			if e.AggregateType == aggregateType && e.AggregateID == aggregateID {
				out = append(out, cloneEvent(e))
			}
		}
	}); err != nil {
		return nil, err
	}
	return paginate(out, limit, offset), nil
}

func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	if err := r.store.read(ctx, func() {
		kept := r.store.outbox[:0]
		for _, e := range r.store.outbox {
			if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
				continue
			}
			kept = append(kept, e)
		}
		r.store.outbox = kept
	}); err != nil {
		return err
	}
	return nil
}
