package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/infrastructure/metrics"
)

var (
	// ErrInconsistentLedger is returned when escrow or supply totals do not add up.
	ErrInconsistentLedger = errors.New("ledger is inconsistent")
)

// maxParallelReconciliations bounds concurrent per-account reconciliation queries.
const maxParallelReconciliations = 4

// LedgerUseCase checks settlement currency invariants.
type LedgerUseCase struct {
	tx           *Transactor
	accountRepo  AccountRepository
	escrowRepo   EscrowRepository
	transferRepo TransferRepository
	clock        Clock
	vault        domain.Address
	metrics      *metrics.Metrics
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(
	tx *Transactor,
	accountRepo AccountRepository,
	escrowRepo EscrowRepository,
	transferRepo TransferRepository,
	clock Clock,
	vault domain.Address,
	metrics *metrics.Metrics,
) *LedgerUseCase {
	return &LedgerUseCase{
		tx:           tx,
		accountRepo:  accountRepo,
		escrowRepo:   escrowRepo,
		transferRepo: transferRepo,
		clock:        clock,
		vault:        vault,
		metrics:      metrics,
	}
}

// ConsistencyReport holds the totals read in one transaction.
type ConsistencyReport struct {
	VaultBalance     decimal.Decimal
	PendingEscrow    decimal.Decimal
	TotalBalances    decimal.Decimal
	TotalDeposits    decimal.Decimal
	VaultConsistent  bool
	SupplyConsistent bool
	CheckedAt        time.Time
}

// Consistent reports whether every invariant holds.
func (r *ConsistencyReport) Consistent() bool {
	return r.VaultConsistent && r.SupplyConsistent
}

// CheckConsistency verifies that pending escrow equals the vault balance and that
// balances add up to everything ever deposited. The report is returned even when
// the ledger is inconsistent, together with ErrInconsistentLedger.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context) (*ConsistencyReport, error) {
	report := &ConsistencyReport{}

	err := uc.tx.Do(ctx, func(ctx context.Context, _ Transaction) error {
		vault, err := uc.accountRepo.GetByAddress(ctx, uc.vault)
		if err != nil {
			return err
		}
		report.VaultBalance = vault.Balance

		if report.PendingEscrow, err = uc.escrowRepo.SumPending(ctx); err != nil {
			return err
		}
		if report.TotalBalances, err = uc.accountRepo.SumBalances(ctx); err != nil {
			return err
		}
		if report.TotalDeposits, err = uc.transferRepo.SumDeposits(ctx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.VaultConsistent = report.VaultBalance.Equal(report.PendingEscrow)
	report.SupplyConsistent = report.TotalBalances.Equal(report.TotalDeposits)
	report.CheckedAt = uc.clock.Now()

	result := "consistent"
	if !report.Consistent() {
		result = "inconsistent"
	}
	if uc.metrics != nil {
		uc.metrics.ConsistencyChecks.WithLabelValues(result).Inc()
	}

	if !report.Consistent() {
		return report, fmt.Errorf(
			"%w: vault=%s pending_escrow=%s balances=%s deposits=%s",
			ErrInconsistentLedger,
			report.VaultBalance, report.PendingEscrow, report.TotalBalances, report.TotalDeposits,
		)
	}
	return report, nil
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	Address           domain.Address
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	IsReconciled      bool
	LastChecked       time.Time
}

// ReconcileAccount compares the stored balance of addr with the net of its transfers.
func (uc *LedgerUseCase) ReconcileAccount(ctx context.Context, addr domain.Address) (*ReconciliationResult, error) {
	account, err := uc.accountRepo.GetByAddress(ctx, addr)
	if err != nil {
		return nil, err
	}

	calculated, err := uc.transferRepo.NetFlow(ctx, addr)
	if err != nil {
		return nil, err
	}

	return &ReconciliationResult{
		Address:           addr,
		RecordedBalance:   account.Balance,
		CalculatedBalance: calculated,
		Difference:        account.Balance.Sub(calculated),
		IsReconciled:      account.Balance.Equal(calculated),
		LastChecked:       uc.clock.Now(),
	}, nil
}

// ReconcileAccounts reconciles addrs concurrently. Results keep the order of addrs.
func (uc *LedgerUseCase) ReconcileAccounts(ctx context.Context, addrs []domain.Address) ([]*ReconciliationResult, error) {
	results := make([]*ReconciliationResult, len(addrs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReconciliations)
	for i, addr := range addrs {
		g.Go(func() error {
			result, err := uc.ReconcileAccount(gctx, addr)
			if err != nil {
				return fmt.Errorf("failed to reconcile account %s: %w", addr.Hex(), err)
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
