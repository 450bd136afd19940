package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/infrastructure/metrics"
)

const tracerName = "github.com/iho/gofactor/internal/usecase"

// BuyResult describes a completed purchase.
type BuyResult struct {
	Invoice *domain.Invoice
	Listing *domain.Listing
	Release *domain.Release
}

// SettleResult describes a completed repayment.
type SettleResult struct {
	Invoice   *domain.Invoice
	Release   *domain.Release
	Offered   decimal.Decimal
	Collected decimal.Decimal
}

// Marketplace is the single entry point for invoice ownership changes.
type Marketplace struct {
	tx          *Transactor
	invoices    *InvoiceRegistry
	vault       *CustodyVault
	compliance  *ComplianceRegistry
	invoiceRepo InvoiceRepository
	listingRepo ListingRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	clock       Clock
	address     domain.Address
	feeRate     decimal.Decimal
	metrics     *metrics.Metrics
}

func NewMarketplace(
	tx *Transactor,
	invoices *InvoiceRegistry,
	vault *CustodyVault,
	compliance *ComplianceRegistry,
	invoiceRepo InvoiceRepository,
	listingRepo ListingRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	clock Clock,
	address domain.Address,
	feeRate decimal.Decimal,
	metrics *metrics.Metrics,
) *Marketplace {
	return &Marketplace{
		tx:          tx,
		invoices:    invoices,
		vault:       vault,
		compliance:  compliance,
		invoiceRepo: invoiceRepo,
		listingRepo: listingRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
		clock:       clock,
		address:     address,
		feeRate:     feeRate,
		metrics:     metrics,
	}
}

// Address returns the marketplace operator address. Buyers and issuers approve it as spender.
func (m *Marketplace) Address() domain.Address {
	return m.address
}

// FeeRate returns the platform fee rate applied to purchases.
func (m *Marketplace) FeeRate() decimal.Decimal {
	return m.feeRate
}

// Mint creates an invoice issued and held by caller.
func (m *Marketplace) Mint(ctx context.Context, caller domain.Address, input MintInput) (inv *domain.Invoice, err error) {
	start := time.Now()
	ctx, span := m.start(ctx, "mint", 0)
	defer func() { m.finish(span, "mint", start, err) }()

	input.Issuer = caller
	return m.invoices.Mint(ctx, input)
}

// List offers an invoice held by caller for sale at price.
func (m *Marketplace) List(ctx context.Context, caller domain.Address, id uint64, price decimal.Decimal, negotiable bool) (listing *domain.Listing, err error) {
	start := time.Now()
	ctx, span := m.start(ctx, "list", id)
	defer func() { m.finish(span, "list", start, err) }()

	err = m.tx.Do(ctx, func(ctx context.Context, tx Transaction) error {
		inv, err := m.invoiceRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if inv.Status.IsTerminal() {
			return fmt.Errorf("%w: invoice %d is %s", domain.ErrTerminalState, id, inv.Status)
		}
		if inv.Holder != caller {
			return fmt.Errorf("%w: %s does not hold invoice %d", domain.ErrNotOwner, caller.Hex(), id)
		}
		if err := m.compliance.requireVerified(ctx, caller, "seller"); err != nil {
			return err
		}
		if err := domain.ValidatePrice(price); err != nil {
			return err
		}

		existing, err := m.listingRepo.GetByInvoiceIDForUpdate(ctx, tx, id)
		if err != nil && !errors.Is(err, domain.ErrListingNotFound) {
			return err
		}
		if existing != nil && existing.Active {
			return fmt.Errorf("%w: invoice %d", domain.ErrAlreadyListed, id)
		}
		if inv.Status != domain.InvoiceStatusMinted {
			return fmt.Errorf("%w: invoice %d is %s, only minted invoices can be listed", domain.ErrInvalidState, id, inv.Status)
		}

		if _, err := m.invoices.MarkListed(ctx, m.address, id); err != nil {
			return err
		}

		now := m.clock.Now()
		listing = &domain.Listing{
			InvoiceID:  id,
			Seller:     caller,
			Price:      price,
			Negotiable: negotiable,
			Active:     true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := m.listingRepo.Save(ctx, tx, listing); err != nil {
			return err
		}

		return emitInvoiceEvent(ctx, tx, m.outboxRepo, m.idGen, domain.EventTypeListingCreated, domain.EventPayload{
			InvoiceID:    id,
			Operation:    "list",
			Participants: map[string]string{"seller": caller.Hex()},
			Amounts:      map[string]string{"price": price.String(), "face_value": inv.FaceValue.String()},
			Status:       string(domain.InvoiceStatusListed),
		}, now)
	})
	if err != nil {
		return nil, err
	}

	if m.metrics != nil {
		m.metrics.ListingsCreated.Inc()
	}
	return listing, nil
}

// CancelListing withdraws the active listing of an invoice held by caller.
func (m *Marketplace) CancelListing(ctx context.Context, caller domain.Address, id uint64) (listing *domain.Listing, err error) {
	start := time.Now()
	ctx, span := m.start(ctx, "cancel_listing", id)
	defer func() { m.finish(span, "cancel_listing", start, err) }()

	err = m.tx.Do(ctx, func(ctx context.Context, tx Transaction) error {
		inv, err := m.invoiceRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if inv.Status.IsTerminal() {
			return fmt.Errorf("%w: invoice %d is %s", domain.ErrTerminalState, id, inv.Status)
		}
		if inv.Holder != caller {
			return fmt.Errorf("%w: %s does not hold invoice %d", domain.ErrNotOwner, caller.Hex(), id)
		}

		listing, err = m.activeListing(ctx, tx, id)
		if err != nil {
			return err
		}

		now := m.clock.Now()
		listing.Active = false
		listing.UpdatedAt = now
		if err := m.listingRepo.Save(ctx, tx, listing); err != nil {
			return err
		}
		if _, err := m.invoices.MarkUnlisted(ctx, m.address, id); err != nil {
			return err
		}

		return emitInvoiceEvent(ctx, tx, m.outboxRepo, m.idGen, domain.EventTypeListingCancelled, domain.EventPayload{
			InvoiceID:    id,
			Operation:    "cancel_listing",
			Participants: map[string]string{"seller": caller.Hex()},
			Status:       string(domain.InvoiceStatusMinted),
		}, now)
	})
	if err != nil {
		return nil, err
	}

	if m.metrics != nil {
		m.metrics.ListingsCancelled.Inc()
	}
	return listing, nil
}

// Reprice changes the price of an active negotiable listing.
func (m *Marketplace) Reprice(ctx context.Context, caller domain.Address, id uint64, price decimal.Decimal) (listing *domain.Listing, err error) {
	start := time.Now()
	ctx, span := m.start(ctx, "reprice", id)
	defer func() { m.finish(span, "reprice", start, err) }()

	err = m.tx.Do(ctx, func(ctx context.Context, tx Transaction) error {
		active, err := m.activeListing(ctx, tx, id)
		if err != nil {
			return err
		}
		listing = active
		if listing.Seller != caller {
			return fmt.Errorf("%w: %s did not list invoice %d", domain.ErrNotOwner, caller.Hex(), id)
		}
		if !listing.Negotiable {
			return fmt.Errorf("%w: invoice %d", domain.ErrListingNotNegotiable, id)
		}
		if err := domain.ValidatePrice(price); err != nil {
			return err
		}

		previous := listing.Price
		now := m.clock.Now()
		listing.Price = price
		listing.UpdatedAt = now
		if err := m.listingRepo.Save(ctx, tx, listing); err != nil {
			return err
		}

		return emitInvoiceEvent(ctx, tx, m.outboxRepo, m.idGen, domain.EventTypeListingRepriced, domain.EventPayload{
			InvoiceID:    id,
			Operation:    "reprice",
			Participants: map[string]string{"seller": caller.Hex()},
			Amounts:      map[string]string{"price": price.String(), "previous_price": previous.String()},
			Status:       string(domain.InvoiceStatusListed),
		}, now)
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// Buy purchases a listed invoice for caller at the listing price. Funds move buyer ->
// vault -> seller and platform while ownership moves seller -> buyer, all or nothing.
func (m *Marketplace) Buy(ctx context.Context, caller domain.Address, id uint64) (result *BuyResult, err error) {
	start := time.Now()
	ctx, span := m.start(ctx, "buy", id)
	defer func() { m.finish(span, "buy", start, err) }()

	ctx, leave, err := m.enter(ctx, id)
	if err != nil {
		return nil, err
	}
	defer leave()

	err = m.tx.Do(ctx, func(ctx context.Context, tx Transaction) error {
		listing, err := m.activeListing(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := m.compliance.requireVerified(ctx, caller, "buyer"); err != nil {
			return err
		}
		if caller == listing.Seller {
			return fmt.Errorf("%w: seller cannot buy own listing", domain.ErrInvalidState)
		}

		seller := listing.Seller
		var comp compensator

		now := m.clock.Now()
		buyer := caller
		listing.Active = false
		listing.Buyer = &buyer
		listing.UpdatedAt = now
		if err := m.listingRepo.Save(ctx, tx, listing); err != nil {
			return err
		}
		comp.push("reactivate_listing", func(ctx context.Context) error {
			listing.Active = true
			listing.Buyer = nil
			listing.UpdatedAt = m.clock.Now()
			return m.listingRepo.Save(ctx, tx, listing)
		})

		if _, err := m.vault.OpenEscrow(ctx, m.address, id, caller, listing.Price); err != nil {
			return comp.unwind(ctx, err, m.onCompensation(ctx, id))
		}
		comp.push("refund_escrow", func(ctx context.Context) error {
			_, err := m.vault.Refund(ctx, m.address, id, domain.EscrowKindPurchase)
			return err
		})

		inv, err := m.invoices.TransferOwnership(ctx, m.address, id, seller, caller)
		if err != nil {
			return comp.unwind(ctx, err, m.onCompensation(ctx, id))
		}
		comp.push("revert_ownership", func(ctx context.Context) error {
			_, err := m.invoices.RevertOwnership(ctx, m.address, id, seller, caller)
			return err
		})

		release, err := m.vault.ReleaseToSeller(ctx, m.address, id, seller, m.feeRate)
		if err != nil {
			return comp.unwind(ctx, err, m.onCompensation(ctx, id))
		}

		if err := emitInvoiceEvent(ctx, tx, m.outboxRepo, m.idGen, domain.EventTypeInvoiceSold, domain.EventPayload{
			InvoiceID: id,
			Operation: "buy",
			Participants: map[string]string{
				"seller":   seller.Hex(),
				"buyer":    caller.Hex(),
				"issuer":   inv.Issuer.Hex(),
				"platform": m.vault.platform.Hex(),
			},
			Amounts: map[string]string{
				"price":      listing.Price.String(),
				"payout":     release.Payout.String(),
				"fee":        release.Fee.String(),
				"face_value": inv.FaceValue.String(),
			},
			Status: string(inv.Status),
		}, m.clock.Now()); err != nil {
			return err
		}

		result = &BuyResult{Invoice: inv, Listing: listing, Release: release}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if m.metrics != nil {
		m.metrics.InvoicesSold.Inc()
		m.metrics.SettlementVolume.WithLabelValues("buy").Add(result.Listing.Price.InexactFloat64())
	}
	return result, nil
}

// Settle repays a sold invoice. caller must be the issuer; exactly the face value is
// collected and paid to the current holder.
func (m *Marketplace) Settle(ctx context.Context, caller domain.Address, id uint64, repayment decimal.Decimal) (result *SettleResult, err error) {
	start := time.Now()
	ctx, span := m.start(ctx, "settle", id)
	defer func() { m.finish(span, "settle", start, err) }()

	ctx, leave, err := m.enter(ctx, id)
	if err != nil {
		return nil, err
	}
	defer leave()

	err = m.tx.Do(ctx, func(ctx context.Context, tx Transaction) error {
		inv, err := m.invoiceRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if inv.Status.IsTerminal() {
			return fmt.Errorf("%w: invoice %d is %s", domain.ErrTerminalState, id, inv.Status)
		}
		if inv.Status != domain.InvoiceStatusSold {
			return fmt.Errorf("%w: invoice %d is %s, not sold", domain.ErrInvalidState, id, inv.Status)
		}
		if caller != inv.Issuer {
			return fmt.Errorf("%w: only the issuer can settle invoice %d", domain.ErrUnauthorized, id)
		}
		if !repayment.IsPositive() {
			return fmt.Errorf("%w: repayment %s", domain.ErrInvalidAmount, repayment)
		}

		release, err := m.vault.ReleaseAtMaturity(ctx, m.address, id, repayment, inv.Holder)
		if err != nil {
			return err
		}

		settled, err := m.invoiceRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if err := emitInvoiceEvent(ctx, tx, m.outboxRepo, m.idGen, domain.EventTypeInvoiceSettled, domain.EventPayload{
			InvoiceID: id,
			Operation: "settle",
			Participants: map[string]string{
				"issuer": inv.Issuer.Hex(),
				"holder": inv.Holder.Hex(),
			},
			Amounts: map[string]string{
				"offered":    repayment.String(),
				"collected":  release.Payout.String(),
				"face_value": inv.FaceValue.String(),
			},
			Status: string(settled.Status),
		}, m.clock.Now()); err != nil {
			return err
		}

		result = &SettleResult{Invoice: settled, Release: release, Offered: repayment, Collected: release.Payout}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if m.metrics != nil {
		m.metrics.InvoicesSettled.Inc()
		m.metrics.SettlementVolume.WithLabelValues("settle").Add(result.Collected.InexactFloat64())
	}
	return result, nil
}

// MarkDefault records that a sold invoice was not repaid by its due date. Any caller
// may trigger it; no funds move.
func (m *Marketplace) MarkDefault(ctx context.Context, caller domain.Address, id uint64) (inv *domain.Invoice, err error) {
	start := time.Now()
	ctx, span := m.start(ctx, "mark_default", id)
	defer func() { m.finish(span, "mark_default", start, err) }()

	ctx, leave, err := m.enter(ctx, id)
	if err != nil {
		return nil, err
	}
	defer leave()

	err = m.tx.Do(ctx, func(ctx context.Context, tx Transaction) error {
		defaulted, err := m.invoices.MarkDefaulted(ctx, m.address, id)
		if err != nil {
			return err
		}
		inv = defaulted

		return emitInvoiceEvent(ctx, tx, m.outboxRepo, m.idGen, domain.EventTypeInvoiceDefaulted, domain.EventPayload{
			InvoiceID: id,
			Operation: "mark_default",
			Participants: map[string]string{
				"caller": caller.Hex(),
				"issuer": inv.Issuer.Hex(),
				"holder": inv.Holder.Hex(),
			},
			Amounts: map[string]string{"face_value": inv.FaceValue.String()},
			Status:  string(inv.Status),
		}, m.clock.Now())
	})
	if err != nil {
		return nil, err
	}

	if m.metrics != nil {
		m.metrics.InvoicesDefaulted.Inc()
	}
	return inv, nil
}

// GetInvoice returns an invoice by id.
func (m *Marketplace) GetInvoice(ctx context.Context, id uint64) (*domain.Invoice, error) {
	return m.invoices.Get(ctx, id)
}

// GetListing returns the current listing of an invoice, active or not.
func (m *Marketplace) GetListing(ctx context.Context, id uint64) (*domain.Listing, error) {
	return m.listingRepo.GetByInvoiceID(ctx, id)
}

// ListActiveListings returns listings open for purchase.
func (m *Marketplace) ListActiveListings(ctx context.Context, limit, offset int) ([]*domain.Listing, error) {
	limit, offset, _ = domain.ValidatePagination(limit, offset)
	return m.listingRepo.ListActive(ctx, limit, offset)
}

// Portfolio returns invoices held by holder.
func (m *Marketplace) Portfolio(ctx context.Context, holder domain.Address, limit, offset int) ([]*domain.Invoice, error) {
	return m.invoices.ListByHolder(ctx, holder, limit, offset)
}

// IssuedBy returns invoices minted by issuer.
func (m *Marketplace) IssuedBy(ctx context.Context, issuer domain.Address, limit, offset int) ([]*domain.Invoice, error) {
	return m.invoices.ListByIssuer(ctx, issuer, limit, offset)
}

// TotalSupply returns the number of invoices ever minted.
func (m *Marketplace) TotalSupply(ctx context.Context) (uint64, error) {
	return m.invoices.TotalSupply(ctx)
}

// InvoiceEvents returns the outbox history of an invoice.
func (m *Marketplace) InvoiceEvents(ctx context.Context, id uint64, limit, offset int) ([]*domain.OutboxEvent, error) {
	if _, err := m.invoices.Get(ctx, id); err != nil {
		return nil, err
	}
	limit, offset, _ = domain.ValidatePagination(limit, offset)
	return m.outboxRepo.GetByAggregate(ctx, domain.AggregateTypeInvoice, domain.InvoiceAggregateID(id), limit, offset)
}

func (m *Marketplace) activeListing(ctx context.Context, tx Transaction, id uint64) (*domain.Listing, error) {
	listing, err := m.listingRepo.GetByInvoiceIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !listing.Active {
		return nil, fmt.Errorf("%w: invoice %d", domain.ErrListingInactive, id)
	}
	return listing, nil
}

func (m *Marketplace) enter(ctx context.Context, id uint64) (context.Context, func(), error) {
	ctx, leave, err := enterInvoice(ctx, id)
	if err != nil && m.metrics != nil {
		m.metrics.ReentrancyBlocked.Inc()
	}
	return ctx, leave, err
}

func (m *Marketplace) onCompensation(ctx context.Context, id uint64) func(step string, err error) {
	return func(step string, err error) {
		status := "ok"
		event := zerolog.Ctx(ctx).Warn()
		if err != nil {
			status = "failed"
			event = zerolog.Ctx(ctx).Error().Err(err)
		}
		event.Uint64("invoice_id", id).Str("step", step).Msg("buy compensation")

		if m.metrics != nil {
			m.metrics.Compensations.WithLabelValues(step, status).Inc()
		}
	}
}

func (m *Marketplace) start(ctx context.Context, op string, id uint64) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "Marketplace."+op, trace.WithAttributes(
		attribute.String("marketplace.operation", op),
		attribute.Int64("invoice.id", int64(id)),
	))
}

func (m *Marketplace) finish(span trace.Span, op string, start time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if m.metrics == nil {
		return
	}
	m.metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.metrics.OperationErrors.WithLabelValues(op, ErrorType(err)).Inc()
	}
}

var errorTypes = []struct {
	err   error
	label string
}{
	{domain.ErrReentrantCall, "reentrant_call"},
	{domain.ErrPaymentRejected, "payment_rejected"},
	{domain.ErrInvoiceNotFound, "invoice_not_found"},
	{domain.ErrInvalidAmount, "invalid_amount"},
	{domain.ErrInvalidDueDate, "invalid_due_date"},
	{domain.ErrInvalidPrice, "invalid_price"},
	{domain.ErrNotOwner, "not_owner"},
	{domain.ErrUnauthorized, "unauthorized"},
	{domain.ErrComplianceRejected, "compliance_rejected"},
	{domain.ErrListingNotFound, "listing_not_found"},
	{domain.ErrListingInactive, "listing_inactive"},
	{domain.ErrAlreadyListed, "already_listed"},
	{domain.ErrListingNotNegotiable, "listing_not_negotiable"},
	{domain.ErrInsufficientFunds, "insufficient_funds"},
	{domain.ErrInsufficientRepayment, "insufficient_repayment"},
	{domain.ErrEscrowNotFound, "escrow_not_found"},
	{domain.ErrTerminalState, "terminal_state"},
	{domain.ErrInvalidState, "invalid_state"},
}

// ErrorType returns a low cardinality label for err.
func ErrorType(err error) string {
	for _, et := range errorTypes {
		if errors.Is(err, et.err) {
			return et.label
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "internal"
}
