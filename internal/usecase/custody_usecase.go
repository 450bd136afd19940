package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/infrastructure/metrics"
)

// CustodyVault holds settlement currency in escrow on behalf of invoices. It is the only
// component that moves settlement funds between participants.
type CustodyVault struct {
	tx          *Transactor
	escrowRepo  EscrowRepository
	invoiceRepo InvoiceRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	clock       Clock
	compliance  *ComplianceRegistry
	currency    *SettlementCurrency
	invoices    *InvoiceRegistry
	address     domain.Address
	marketplace domain.Address
	platform    domain.Address
	metrics     *metrics.Metrics
}

func NewCustodyVault(
	tx *Transactor,
	escrowRepo EscrowRepository,
	invoiceRepo InvoiceRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	clock Clock,
	compliance *ComplianceRegistry,
	currency *SettlementCurrency,
	invoices *InvoiceRegistry,
	address domain.Address,
	marketplace domain.Address,
	platform domain.Address,
	metrics *metrics.Metrics,
) *CustodyVault {
	return &CustodyVault{
		tx:          tx,
		escrowRepo:  escrowRepo,
		invoiceRepo: invoiceRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
		clock:       clock,
		compliance:  compliance,
		currency:    currency,
		invoices:    invoices,
		address:     address,
		marketplace: marketplace,
		platform:    platform,
		metrics:     metrics,
	}
}

// Address returns the vault's own settlement currency address.
func (v *CustodyVault) Address() domain.Address {
	return v.address
}

func (v *CustodyVault) authorize(caller domain.Address) error {
	if caller != v.marketplace {
		return fmt.Errorf("%w: %s is not the marketplace", domain.ErrUnauthorized, caller.Hex())
	}
	return nil
}

// OpenEscrow pulls amount from depositor into the vault and records a pending purchase escrow.
// The pull uses the depositor's allowance to the marketplace.
func (v *CustodyVault) OpenEscrow(ctx context.Context, caller domain.Address, invoiceID uint64, depositor domain.Address, amount decimal.Decimal) (*domain.EscrowAccount, error) {
	if err := v.authorize(caller); err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	var escrow *domain.EscrowAccount
	err := v.tx.Do(ctx, func(ctx context.Context, tx Transaction) error {
		if err := v.compliance.requireVerified(ctx, depositor, "depositor"); err != nil {
			return err
		}
		var err error
		escrow, err = v.deposit(ctx, tx, invoiceID, domain.EscrowKindPurchase, depositor, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	if v.metrics != nil {
		v.metrics.EscrowsOpened.Inc()
	}
	return escrow, nil
}

func (v *CustodyVault) deposit(ctx context.Context, tx Transaction, invoiceID uint64, kind domain.EscrowKind, depositor domain.Address, amount decimal.Decimal) (*domain.EscrowAccount, error) {
	existing, err := v.escrowRepo.GetPendingForUpdate(ctx, tx, invoiceID, kind)
	if err != nil && !errors.Is(err, domain.ErrEscrowNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: invoice %d already has a pending %s escrow", domain.ErrInvalidState, invoiceID, kind)
	}

	id := invoiceID
	if _, err := v.currency.transferFrom(ctx, v.marketplace, depositor, v.address, amount, domain.TransferKindEscrowDeposit, &id); err != nil {
		return nil, err
	}

	now := v.clock.Now()
	escrow := &domain.EscrowAccount{
		ID:        v.idGen.Generate(),
		InvoiceID: invoiceID,
		Kind:      kind,
		Depositor: depositor,
		Amount:    amount,
		Status:    domain.EscrowStatusPending,
		CreatedAt: now,
	}
	if err := v.escrowRepo.Create(ctx, tx, escrow); err != nil {
		return nil, err
	}

	if err := v.emit(ctx, tx, domain.EventTypeEscrowOpened, escrow, map[string]string{
		"depositor": depositor.Hex(),
	}, map[string]string{"amount": amount.String()}); err != nil {
		return nil, err
	}
	return escrow, nil
}

// ReleaseToSeller pays a pending purchase escrow out to seller, less the platform fee.
// The escrow is closed before any funds leave the vault.
func (v *CustodyVault) ReleaseToSeller(ctx context.Context, caller domain.Address, invoiceID uint64, seller domain.Address, feeRate decimal.Decimal) (*domain.Release, error) {
	if err := v.authorize(caller); err != nil {
		return nil, err
	}
	if err := domain.ValidateFeeRate(feeRate); err != nil {
		return nil, err
	}

	var release *domain.Release
	err := v.tx.Do(ctx, func(ctx context.Context, tx Transaction) error {
		escrow, err := v.escrowRepo.GetPendingForUpdate(ctx, tx, invoiceID, domain.EscrowKindPurchase)
		if err != nil {
			return err
		}
		if err := v.compliance.requireVerified(ctx, seller, "seller"); err != nil {
			return err
		}

		payout, fee := domain.SplitFee(escrow.Amount, feeRate)
		if err := v.close(ctx, tx, escrow, domain.EscrowStatusReleased); err != nil {
			return err
		}

		id := invoiceID
		if _, err := v.currency.transfer(ctx, v.address, seller, payout, domain.TransferKindSellerPayout, &id); err != nil {
			return err
		}
		if fee.IsPositive() {
			if _, err := v.currency.transfer(ctx, v.address, v.platform, fee, domain.TransferKindPlatformFee, &id); err != nil {
				return err
			}
		}

		if err := v.emit(ctx, tx, domain.EventTypeEscrowReleased, escrow, map[string]string{
			"depositor": escrow.Depositor.Hex(),
			"recipient": seller.Hex(),
			"platform":  v.platform.Hex(),
		}, map[string]string{
			"amount": escrow.Amount.String(),
			"payout": payout.String(),
			"fee":    fee.String(),
		}); err != nil {
			return err
		}

		release = &domain.Release{Escrow: escrow, Recipient: seller, Payout: payout, Fee: fee}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if v.metrics != nil {
		v.metrics.EscrowsReleased.Inc()
	}
	return release, nil
}

// ReleaseAtMaturity collects the face value from the issuer and pays it to holder, then
// marks the invoice settled. Only the face value is pulled even when repayment offers more.
func (v *CustodyVault) ReleaseAtMaturity(ctx context.Context, caller domain.Address, invoiceID uint64, repayment decimal.Decimal, holder domain.Address) (*domain.Release, error) {
	if err := v.authorize(caller); err != nil {
		return nil, err
	}

	var release *domain.Release
	err := v.tx.Do(ctx, func(ctx context.Context, tx Transaction) error {
		inv, err := v.invoiceRepo.GetByIDForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status.IsTerminal() {
			return fmt.Errorf("%w: invoice %d is %s", domain.ErrTerminalState, invoiceID, inv.Status)
		}
		if inv.Status != domain.InvoiceStatusSold {
			return fmt.Errorf("%w: invoice %d is %s, not sold", domain.ErrInvalidState, invoiceID, inv.Status)
		}
		if repayment.LessThan(inv.FaceValue) {
			return fmt.Errorf("%w: offered %s, face value %s", domain.ErrInsufficientRepayment, repayment, inv.FaceValue)
		}
		if holder != inv.Holder {
			return fmt.Errorf("%w: %s does not hold invoice %d", domain.ErrNotOwner, holder.Hex(), invoiceID)
		}
		if err := v.compliance.requireVerified(ctx, holder, "holder"); err != nil {
			return err
		}

		escrow, err := v.deposit(ctx, tx, invoiceID, domain.EscrowKindRepayment, inv.Issuer, inv.FaceValue)
		if err != nil {
			return err
		}
		if err := v.close(ctx, tx, escrow, domain.EscrowStatusReleased); err != nil {
			return err
		}
		if _, err := v.invoices.MarkSettled(ctx, v.address, invoiceID, escrow); err != nil {
			return err
		}

		id := invoiceID
		if _, err := v.currency.transfer(ctx, v.address, holder, escrow.Amount, domain.TransferKindHolderPayout, &id); err != nil {
			return err
		}

		if err := v.emit(ctx, tx, domain.EventTypeEscrowReleased, escrow, map[string]string{
			"depositor": inv.Issuer.Hex(),
			"recipient": holder.Hex(),
		}, map[string]string{
			"amount": escrow.Amount.String(),
			"payout": escrow.Amount.String(),
		}); err != nil {
			return err
		}

		release = &domain.Release{Escrow: escrow, Recipient: holder, Payout: escrow.Amount, Fee: decimal.Zero}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if v.metrics != nil {
		v.metrics.EscrowsOpened.Inc()
		v.metrics.EscrowsReleased.Inc()
	}
	return release, nil
}

// Refund returns a pending escrow of kind to its depositor.
func (v *CustodyVault) Refund(ctx context.Context, caller domain.Address, invoiceID uint64, kind domain.EscrowKind) (*domain.EscrowAccount, error) {
	if err := v.authorize(caller); err != nil {
		return nil, err
	}

	var escrow *domain.EscrowAccount
	err := v.tx.Do(ctx, func(ctx context.Context, tx Transaction) error {
		var err error
		escrow, err = v.escrowRepo.GetPendingForUpdate(ctx, tx, invoiceID, kind)
		if err != nil {
			return err
		}
		if err := v.close(ctx, tx, escrow, domain.EscrowStatusRefunded); err != nil {
			return err
		}

		id := invoiceID
		if _, err := v.currency.transfer(ctx, v.address, escrow.Depositor, escrow.Amount, domain.TransferKindEscrowRefund, &id); err != nil {
			return err
		}

		return v.emit(ctx, tx, domain.EventTypeEscrowRefunded, escrow, map[string]string{
			"depositor": escrow.Depositor.Hex(),
		}, map[string]string{"amount": escrow.Amount.String()})
	})
	if err != nil {
		return nil, err
	}

	if v.metrics != nil {
		v.metrics.EscrowsRefunded.Inc()
	}
	return escrow, nil
}

// EscrowBalance returns the vault's settlement currency balance.
func (v *CustodyVault) EscrowBalance(ctx context.Context) (decimal.Decimal, error) {
	acc, err := v.currency.BalanceOf(ctx, v.address)
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Balance, nil
}

// GetPendingEscrow returns the pending purchase escrow of an invoice.
func (v *CustodyVault) GetPendingEscrow(ctx context.Context, invoiceID uint64) (*domain.EscrowAccount, error) {
	return v.escrowRepo.GetPending(ctx, invoiceID, domain.EscrowKindPurchase)
}

func (v *CustodyVault) close(ctx context.Context, tx Transaction, escrow *domain.EscrowAccount, status domain.EscrowStatus) error {
	now := v.clock.Now()
	if err := v.escrowRepo.UpdateStatus(ctx, tx, escrow.ID, status, now); err != nil {
		return err
	}
	escrow.Status = status
	escrow.ResolvedAt = &now
	return nil
}

func (v *CustodyVault) emit(ctx context.Context, tx Transaction, eventType string, escrow *domain.EscrowAccount, who, amounts map[string]string) error {
	return emitInvoiceEvent(ctx, tx, v.outboxRepo, v.idGen, eventType, domain.EventPayload{
		InvoiceID:    escrow.InvoiceID,
		Operation:    string(escrow.Kind),
		Participants: who,
		Amounts:      amounts,
		Status:       string(escrow.Status),
	}, v.clock.Now())
}
