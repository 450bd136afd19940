package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/infrastructure/metrics"
)

// Receivers maps addresses to the PaymentReceiver run when they are credited.
type Receivers struct {
	mu sync.RWMutex
	m  map[domain.Address]PaymentReceiver
}

func NewReceivers() *Receivers {
	return &Receivers{m: make(map[domain.Address]PaymentReceiver)}
}

// Attach installs r for addr, replacing any previous receiver.
func (rs *Receivers) Attach(addr domain.Address, r PaymentReceiver) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.m[addr] = r
}

// Detach removes the receiver of addr.
func (rs *Receivers) Detach(addr domain.Address) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	delete(rs.m, addr)
}

func (rs *Receivers) lookup(addr domain.Address) PaymentReceiver {
	if rs == nil {
		return nil
	}
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.m[addr]
}

// SettlementCurrency is the fungible ledger the vault moves value on.
// Movement between participants is only reachable from inside this package.
type SettlementCurrency struct {
	tx            *Transactor
	accountRepo   AccountRepository
	allowanceRepo AllowanceRepository
	transferRepo  TransferRepository
	outboxRepo    OutboxRepository
	auditRepo     AuditRepository
	idGen         IDGenerator
	clock         Clock
	authority     domain.Address
	receivers     *Receivers
	metrics       *metrics.Metrics
}

func NewSettlementCurrency(
	tx *Transactor,
	accountRepo AccountRepository,
	allowanceRepo AllowanceRepository,
	transferRepo TransferRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
	clock Clock,
	authority domain.Address,
	receivers *Receivers,
	metrics *metrics.Metrics,
) *SettlementCurrency {
	return &SettlementCurrency{
		tx:            tx,
		accountRepo:   accountRepo,
		allowanceRepo: allowanceRepo,
		transferRepo:  transferRepo,
		outboxRepo:    outboxRepo,
		auditRepo:     auditRepo,
		idGen:         idGen,
		clock:         clock,
		authority:     authority,
		receivers:     receivers,
		metrics:       metrics,
	}
}

// Deposit issues new currency to addr. Only the authority may deposit.
func (c *SettlementCurrency) Deposit(ctx context.Context, caller, to domain.Address, amount decimal.Decimal) (*domain.Transfer, error) {
	if caller != c.authority {
		return nil, fmt.Errorf("%w: only the authority can deposit", domain.ErrUnauthorized)
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if to == domain.ZeroAddress {
		return nil, fmt.Errorf("%w: zero address", domain.ErrInvalidAddress)
	}

	var transfer *domain.Transfer
	err := c.tx.Do(ctx, func(ctx context.Context, tx Transaction) error {
		var err error
		transfer, err = c.move(ctx, tx, domain.ZeroAddress, to, amount, domain.TransferKindDeposit, nil)
		if err != nil {
			return err
		}

		now := transfer.CreatedAt
		payload := map[string]any{
			"transfer_id": transfer.ID,
			"to":          to.Hex(),
			"amount":      amount.String(),
		}
		if err := emitEvent(ctx, tx, c.outboxRepo, c.idGen, domain.AggregateTypeAccount,
			to.Hex(), domain.EventTypeCurrencyDeposited, payload, now); err != nil {
			return err
		}

		if c.auditRepo != nil {
			auditLog := &domain.AuditLog{
				ID:           c.idGen.Generate(),
				Actor:        caller.Hex(),
				Action:       string(domain.AuditActionCurrencyDeposit),
				ResourceType: domain.AggregateTypeAccount,
				ResourceID:   to.Hex(),
				AfterState:   domain.MarshalState(transfer),
				Status:       string(domain.AuditStatusSuccess),
				CreatedAt:    now,
			}
			if err := c.auditRepo.CreateTx(ctx, tx, auditLog); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.CurrencyDeposits.Inc()
		c.metrics.SettlementVolume.WithLabelValues("deposit").Add(amount.InexactFloat64())
	}

	return transfer, nil
}

// Approve sets the amount spender may pull from owner. Zero revokes the approval.
func (c *SettlementCurrency) Approve(ctx context.Context, owner, spender domain.Address, amount decimal.Decimal) (*domain.Allowance, error) {
	if !amount.IsZero() {
		if err := domain.ValidateAmount(amount); err != nil {
			return nil, err
		}
	}
	if owner == spender {
		return nil, domain.ErrSameAccount
	}

	allowance := &domain.Allowance{
		Owner:     owner,
		Spender:   spender,
		Amount:    amount,
		UpdatedAt: c.clock.Now(),
	}

	err := c.tx.Do(ctx, func(ctx context.Context, tx Transaction) error {
		if err := c.allowanceRepo.Save(ctx, tx, allowance); err != nil {
			return err
		}
		payload := map[string]any{
			"owner":   owner.Hex(),
			"spender": spender.Hex(),
			"amount":  amount.String(),
		}
		return emitEvent(ctx, tx, c.outboxRepo, c.idGen, domain.AggregateTypeAccount,
			owner.Hex(), domain.EventTypeCurrencyApproved, payload, allowance.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}

	return allowance, nil
}

// BalanceOf returns the balance of addr.
func (c *SettlementCurrency) BalanceOf(ctx context.Context, addr domain.Address) (*domain.Account, error) {
	return c.accountRepo.GetByAddress(ctx, addr)
}

// Allowance returns the current approval of spender over owner's balance.
func (c *SettlementCurrency) Allowance(ctx context.Context, owner, spender domain.Address) (*domain.Allowance, error) {
	return c.allowanceRepo.Get(ctx, owner, spender)
}

// Transfers lists the movements touching addr, newest first.
func (c *SettlementCurrency) Transfers(ctx context.Context, addr domain.Address, limit, offset int) ([]*domain.Transfer, error) {
	limit, offset, _ = domain.ValidatePagination(limit, offset)
	return c.transferRepo.ListByAddress(ctx, addr, limit, offset)
}

// transfer moves amount from one address to another.
func (c *SettlementCurrency) transfer(ctx context.Context, from, to domain.Address, amount decimal.Decimal, kind domain.TransferKind, invoiceID *uint64) (*domain.Transfer, error) {
	var transfer *domain.Transfer
	err := c.tx.Do(ctx, func(ctx context.Context, tx Transaction) error {
		var err error
		transfer, err = c.move(ctx, tx, from, to, amount, kind, invoiceID)
		return err
	})
	return transfer, err
}

// transferFrom moves amount out of from on behalf of spender, consuming allowance.
func (c *SettlementCurrency) transferFrom(ctx context.Context, spender, from, to domain.Address, amount decimal.Decimal, kind domain.TransferKind, invoiceID *uint64) (*domain.Transfer, error) {
	var transfer *domain.Transfer
	err := c.tx.Do(ctx, func(ctx context.Context, tx Transaction) error {
		allowance, err := c.allowanceRepo.GetForUpdate(ctx, tx, from, spender)
		if err != nil {
			return err
		}
		if !allowance.Covers(amount) {
			return fmt.Errorf("%w: allowance %s of %s for %s is below %s", domain.ErrInsufficientFunds,
				allowance.Amount, from.Hex(), spender.Hex(), amount)
		}

		allowance.Amount = allowance.Amount.Sub(amount)
		allowance.UpdatedAt = c.clock.Now()
		if err := c.allowanceRepo.Save(ctx, tx, allowance); err != nil {
			return err
		}

		transfer, err = c.move(ctx, tx, from, to, amount, kind, invoiceID)
		return err
	})
	return transfer, err
}

// move updates balances, records the transfer and then notifies the recipient's receiver.
// from == ZeroAddress issues new currency.
func (c *SettlementCurrency) move(ctx context.Context, tx Transaction, from, to domain.Address, amount decimal.Decimal, kind domain.TransferKind, invoiceID *uint64) (*domain.Transfer, error) {
	now := c.clock.Now()
	transfer := &domain.Transfer{
		ID:        c.idGen.Generate(),
		From:      from,
		To:        to,
		Amount:    amount,
		Kind:      kind,
		InvoiceID: invoiceID,
		CreatedAt: now,
	}
	if err := transfer.Validate(); err != nil {
		return nil, err
	}

	addrs := []domain.Address{to}
	if from != domain.ZeroAddress {
		addrs = append(addrs, from)
	}
	accounts, err := c.accountRepo.GetByAddressesForUpdate(ctx, tx, addrs)
	if err != nil {
		return nil, err
	}

	accountMap := make(map[domain.Address]*domain.Account, len(accounts))
	for _, acc := range accounts {
		accountMap[acc.Address] = acc
	}

	if from != domain.ZeroAddress {
		fromAccount := accountMap[from]
		if err := fromAccount.ValidateDebit(amount); err != nil {
			return nil, fmt.Errorf("%w: %s holds %s, needs %s", err, from.Hex(), fromAccount.Balance, amount)
		}
		if err := c.accountRepo.UpdateBalance(ctx, tx, from, fromAccount.ApplyDebit(amount), now); err != nil {
			return nil, err
		}
	}

	toAccount := accountMap[to]
	if err := c.accountRepo.UpdateBalance(ctx, tx, to, toAccount.ApplyCredit(amount), now); err != nil {
		return nil, err
	}

	if err := c.transferRepo.Create(ctx, tx, transfer); err != nil {
		return nil, err
	}

	if receiver := c.receivers.lookup(to); receiver != nil {
		if err := receiver.OnPayment(ctx, transfer); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrPaymentRejected, to.Hex(), err)
		}
	}

	return transfer, nil
}

