package usecase

import (
	"context"
	"time"

	"github.com/iho/gofactor/internal/domain"
)

// emitInvoiceEvent writes an invoice lifecycle event to the outbox inside tx.
func emitInvoiceEvent(
	ctx context.Context,
	tx Transaction,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	eventType string,
	payload domain.EventPayload,
	now time.Time,
) error {
	event := &domain.OutboxEvent{
		ID:            idGen.Generate(),
		AggregateID:   domain.InvoiceAggregateID(payload.InvoiceID),
		AggregateType: domain.AggregateTypeInvoice,
		EventType:     eventType,
		Payload:       payload.ToMap(),
		CreatedAt:     now,
		Published:     false,
	}
	return outboxRepo.Create(ctx, tx, event)
}

// emitEvent writes a non-invoice event to the outbox inside tx.
func emitEvent(
	ctx context.Context,
	tx Transaction,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	aggregateType, aggregateID, eventType string,
	payload map[string]any,
	now time.Time,
) error {
	event := &domain.OutboxEvent{
		ID:            idGen.Generate(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
		Published:     false,
	}
	return outboxRepo.Create(ctx, tx, event)
}
