package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/infrastructure/metrics"
)

// MintInput represents input for minting an invoice.
type MintInput struct {
	Issuer      domain.Address
	FaceValue   decimal.Decimal
	DueDate     time.Time
	DocumentRef string
}

// InvoiceRegistry owns invoice records and their lifecycle. Lifecycle changes other
// than Mint are only accepted from the configured operators.
type InvoiceRegistry struct {
	tx          *Transactor
	invoiceRepo InvoiceRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	clock       Clock
	marketplace domain.Address
	vault       domain.Address
	metrics     *metrics.Metrics
}

func NewInvoiceRegistry(
	tx *Transactor,
	invoiceRepo InvoiceRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	clock Clock,
	marketplace domain.Address,
	vault domain.Address,
	metrics *metrics.Metrics,
) *InvoiceRegistry {
	return &InvoiceRegistry{
		tx:          tx,
		invoiceRepo: invoiceRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
		clock:       clock,
		marketplace: marketplace,
		vault:       vault,
		metrics:     metrics,
	}
}

// Mint creates a new invoice held by its issuer.
func (r *InvoiceRegistry) Mint(ctx context.Context, input MintInput) (*domain.Invoice, error) {
	now := r.clock.Now()
	if err := domain.ValidateMint(input.FaceValue, input.DueDate, now); err != nil {
		return nil, err
	}
	if err := domain.ValidateDocumentRef(input.DocumentRef); err != nil {
		return nil, err
	}
	if input.Issuer == domain.ZeroAddress {
		return nil, fmt.Errorf("%w: zero issuer", domain.ErrInvalidAddress)
	}

	var invoice *domain.Invoice
	err := r.tx.Do(ctx, func(ctx context.Context, tx Transaction) error {
		id, err := r.invoiceRepo.NextID(ctx, tx)
		if err != nil {
			return err
		}

		invoice = &domain.Invoice{
			ID:          id,
			Issuer:      input.Issuer,
			Holder:      input.Issuer,
			FaceValue:   input.FaceValue,
			DueDate:     input.DueDate.UTC(),
			DocumentRef: input.DocumentRef,
			Status:      domain.InvoiceStatusMinted,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := r.invoiceRepo.Create(ctx, tx, invoice); err != nil {
			return err
		}

		return emitInvoiceEvent(ctx, tx, r.outboxRepo, r.idGen, domain.EventTypeInvoiceMinted, domain.EventPayload{
			InvoiceID:    id,
			Operation:    "mint",
			Participants: map[string]string{"issuer": input.Issuer.Hex()},
			Amounts:      map[string]string{"face_value": input.FaceValue.String()},
			Status:       string(invoice.Status),
		}, now)
	})
	if err != nil {
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.InvoicesMinted.Inc()
	}

	return invoice, nil
}

// MarkListed moves a minted invoice to listed.
func (r *InvoiceRegistry) MarkListed(ctx context.Context, caller domain.Address, id uint64) (*domain.Invoice, error) {
	return r.mutate(ctx, caller, id, func(inv *domain.Invoice, now time.Time) error {
		return inv.Transition(domain.InvoiceStatusListed, now)
	}, r.marketplace)
}

// MarkUnlisted moves a listed invoice back to minted.
func (r *InvoiceRegistry) MarkUnlisted(ctx context.Context, caller domain.Address, id uint64) (*domain.Invoice, error) {
	return r.mutate(ctx, caller, id, func(inv *domain.Invoice, now time.Time) error {
		if inv.Status != domain.InvoiceStatusListed && !inv.Status.IsTerminal() {
			return fmt.Errorf("%w: invoice %d is %s, not listed", domain.ErrInvalidState, id, inv.Status)
		}
		return inv.Transition(domain.InvoiceStatusMinted, now)
	}, r.marketplace)
}

// TransferOwnership hands a listed invoice from its holder to a buyer and marks it sold.
func (r *InvoiceRegistry) TransferOwnership(ctx context.Context, caller domain.Address, id uint64, from, to domain.Address) (*domain.Invoice, error) {
	return r.mutate(ctx, caller, id, func(inv *domain.Invoice, now time.Time) error {
		if inv.Status.IsTerminal() {
			return inv.Transition(domain.InvoiceStatusSold, now)
		}
		if inv.Holder != from {
			return fmt.Errorf("%w: %s does not hold invoice %d", domain.ErrNotOwner, from.Hex(), id)
		}
		if inv.Status != domain.InvoiceStatusListed {
			return fmt.Errorf("%w: invoice %d is %s, not listed", domain.ErrInvalidState, id, inv.Status)
		}
		if to == domain.ZeroAddress || to == from {
			return fmt.Errorf("%w: invalid new holder %s", domain.ErrInvalidAddress, to.Hex())
		}
		if err := inv.Transition(domain.InvoiceStatusSold, now); err != nil {
			return err
		}
		inv.Holder = to
		return nil
	}, r.marketplace)
}

// RevertOwnership undoes TransferOwnership while the sale it belongs to is still in flight.
func (r *InvoiceRegistry) RevertOwnership(ctx context.Context, caller domain.Address, id uint64, from, to domain.Address) (*domain.Invoice, error) {
	return r.mutate(ctx, caller, id, func(inv *domain.Invoice, now time.Time) error {
		if inv.Status.IsTerminal() {
			return fmt.Errorf("%w: invoice %d is %s", domain.ErrTerminalState, id, inv.Status)
		}
		if inv.Status != domain.InvoiceStatusSold || inv.Holder != to {
			return fmt.Errorf("%w: invoice %d is not sold to %s", domain.ErrInvalidState, id, to.Hex())
		}
		// sold -> listed is not a lifecycle edge; it only exists to undo a failed buy.
		inv.Holder = from
		inv.Status = domain.InvoiceStatusListed
		inv.UpdatedAt = now
		return nil
	}, r.marketplace)
}

// MarkSettled moves a sold invoice to settled once its repayment escrow has been released.
func (r *InvoiceRegistry) MarkSettled(ctx context.Context, caller domain.Address, id uint64, repayment *domain.EscrowAccount) (*domain.Invoice, error) {
	return r.mutate(ctx, caller, id, func(inv *domain.Invoice, now time.Time) error {
		if inv.Status.IsTerminal() {
			return inv.Transition(domain.InvoiceStatusSettled, now)
		}
		if repayment == nil || repayment.InvoiceID != id ||
			repayment.Kind != domain.EscrowKindRepayment || repayment.Status != domain.EscrowStatusReleased {
			return fmt.Errorf("%w: invoice %d has no released repayment", domain.ErrInvalidState, id)
		}
		return inv.Transition(domain.InvoiceStatusSettled, now)
	}, r.marketplace, r.vault)
}

// MarkDefaulted moves a sold invoice past its due date to defaulted.
func (r *InvoiceRegistry) MarkDefaulted(ctx context.Context, caller domain.Address, id uint64) (*domain.Invoice, error) {
	return r.mutate(ctx, caller, id, func(inv *domain.Invoice, now time.Time) error {
		if inv.Status.IsTerminal() {
			return inv.Transition(domain.InvoiceStatusDefaulted, now)
		}
		if inv.Status != domain.InvoiceStatusSold {
			return fmt.Errorf("%w: invoice %d is %s, not sold", domain.ErrInvalidState, id, inv.Status)
		}
		if !inv.IsOverdue(now) {
			return fmt.Errorf("%w: invoice %d is not due until %s", domain.ErrInvalidState, id,
				inv.DueDate.Format(time.RFC3339))
		}
		return inv.Transition(domain.InvoiceStatusDefaulted, now)
	}, r.marketplace)
}

// mutate locks the invoice, applies change and persists it. Only callers listed in
// operators are accepted.
func (r *InvoiceRegistry) mutate(
	ctx context.Context,
	caller domain.Address,
	id uint64,
	change func(inv *domain.Invoice, now time.Time) error,
	operators ...domain.Address,
) (*domain.Invoice, error) {
	if !containsAddress(operators, caller) {
		return nil, fmt.Errorf("%w: %s cannot change invoice lifecycle", domain.ErrUnauthorized, caller.Hex())
	}

	var invoice *domain.Invoice
	err := r.tx.Do(ctx, func(ctx context.Context, tx Transaction) error {
		inv, err := r.invoiceRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := change(inv, r.clock.Now()); err != nil {
			return err
		}
		if err := r.invoiceRepo.Update(ctx, tx, inv); err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// Get returns an invoice by id.
func (r *InvoiceRegistry) Get(ctx context.Context, id uint64) (*domain.Invoice, error) {
	return r.invoiceRepo.GetByID(ctx, id)
}

// ListByHolder returns invoices currently held by holder.
func (r *InvoiceRegistry) ListByHolder(ctx context.Context, holder domain.Address, limit, offset int) ([]*domain.Invoice, error) {
	limit, offset, _ = domain.ValidatePagination(limit, offset)
	return r.invoiceRepo.ListByHolder(ctx, holder, limit, offset)
}

// ListByIssuer returns invoices minted by issuer.
func (r *InvoiceRegistry) ListByIssuer(ctx context.Context, issuer domain.Address, limit, offset int) ([]*domain.Invoice, error) {
	limit, offset, _ = domain.ValidatePagination(limit, offset)
	return r.invoiceRepo.ListByIssuer(ctx, issuer, limit, offset)
}

// TotalSupply returns the number of invoices ever minted.
func (r *InvoiceRegistry) TotalSupply(ctx context.Context) (uint64, error) {
	return r.invoiceRepo.Count(ctx)
}

func containsAddress(addrs []domain.Address, addr domain.Address) bool {
	for _, a := range addrs {
		if a == addr {
			return true
		}
	}
	return false
}
