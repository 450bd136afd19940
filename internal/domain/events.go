package domain

import (
	"strconv"
	"time"
)

// Event types
const (
	EventTypeInvoiceMinted     = "invoice.minted"
	EventTypeInvoiceSold       = "invoice.sold"
	EventTypeInvoiceSettled    = "invoice.settled"
	EventTypeInvoiceDefaulted  = "invoice.defaulted"
	EventTypeListingCreated    = "listing.created"
	EventTypeListingCancelled  = "listing.cancelled"
	EventTypeListingRepriced   = "listing.repriced"
	EventTypeEscrowOpened      = "escrow.opened"
	EventTypeEscrowReleased    = "escrow.released"
	EventTypeEscrowRefunded    = "escrow.refunded"
	EventTypeComplianceAdded   = "compliance.registered"
	EventTypeComplianceRevoked = "compliance.revoked"
	EventTypeCurrencyDeposited = "currency.deposited"
	EventTypeCurrencyApproved  = "currency.approved"
)

// Aggregate types
const (
	AggregateTypeInvoice    = "invoice"
	AggregateTypeCompliance = "compliance"
	AggregateTypeAccount    = "account"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// InvoiceAggregateID is the outbox aggregate id of an invoice.
func InvoiceAggregateID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// EventPayload is the body shared by every invoice lifecycle event.
type EventPayload struct {
	InvoiceID    uint64            `json:"invoice_id"`
	Operation    string            `json:"operation"`
	Participants map[string]string `json:"participants"`
	Amounts      map[string]string `json:"amounts,omitempty"`
	Status       string            `json:"status,omitempty"`
}

// ToMap renders the payload the way outbox rows store it.
func (p EventPayload) ToMap() map[string]any {
	participants := make(map[string]any, len(p.Participants))
	for k, v := range p.Participants {
		participants[k] = v
	}

	m := map[string]any{
		"invoice_id":   p.InvoiceID,
		"operation":    p.Operation,
		"participants": participants,
	}
	if len(p.Amounts) > 0 {
		amounts := make(map[string]any, len(p.Amounts))
		for k, v := range p.Amounts {
			amounts[k] = v
		}
		m["amounts"] = amounts
	}
	if p.Status != "" {
		m["status"] = p.Status
	}
	return m
}
