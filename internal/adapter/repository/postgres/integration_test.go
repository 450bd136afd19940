//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/iho/gofactor/internal/adapter/repository/postgres"
	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/infrastructure/idgen"
	"github.com/iho/gofactor/internal/infrastructure/metrics"
	infrapg "github.com/iho/gofactor/internal/infrastructure/postgres"
	"github.com/iho/gofactor/internal/usecase"
)

var (
	authority  = domain.MustParseAddress("0x000000000000000000000000000000000000a001")
	marketAddr = domain.MustParseAddress("0x000000000000000000000000000000000000a002")
	vaultAddr  = domain.MustParseAddress("0x000000000000000000000000000000000000a003")
	platform   = domain.MustParseAddress("0x000000000000000000000000000000000000a004")
	issuer     = domain.MustParseAddress("0x0000000000000000000000000000000000001001")
	investor   = domain.MustParseAddress("0x0000000000000000000000000000000000002001")
	investorB  = domain.MustParseAddress("0x0000000000000000000000000000000000002002")
)

type stack struct {
	compliance *usecase.ComplianceRegistry
	currency   *usecase.SettlementCurrency
	market     *usecase.Marketplace
	ledger     *usecase.LedgerUseCase
}

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("factoring"),
		tcpostgres.WithUsername("factoring"),
		tcpostgres.WithPassword("factoring"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, infrapg.RunMigrations(dsn, "", zerolog.Nop()))

	pool, err := infrapg.NewPoolWithConfig(ctx, infrapg.PoolConfig{DatabaseURL: dsn, MaxConns: 8})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func newStack(t *testing.T, pool *pgxpool.Pool) *stack {
	t.Helper()

	m := metrics.New(prometheus.NewRegistry())
	clock := usecase.SystemClock{}
	gen := idgen.NewULIDGenerator(clock.Now)
	tx := usecase.NewTransactor(postgres.NewTxManager(pool), postgres.NewRetrier(zerolog.Nop()))

	invoiceRepo := postgres.NewInvoiceRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	accountRepo := postgres.NewAccountRepository(pool)
	escrowRepo := postgres.NewEscrowRepository(pool)
	transferRepo := postgres.NewTransferRepository(pool)

	compliance := usecase.NewComplianceRegistry(tx, postgres.NewComplianceRepository(pool), outboxRepo, auditRepo, gen, clock, authority, m)
	currency := usecase.NewSettlementCurrency(tx, accountRepo, postgres.NewAllowanceRepository(pool), transferRepo,
		outboxRepo, auditRepo, gen, clock, authority, usecase.NewReceivers(), m)
	invoices := usecase.NewInvoiceRegistry(tx, invoiceRepo, outboxRepo, gen, clock, marketAddr, vaultAddr, m)
	vault := usecase.NewCustodyVault(tx, escrowRepo, invoiceRepo, outboxRepo, gen, clock, compliance, currency, invoices,
		vaultAddr, marketAddr, platform, m)
	market := usecase.NewMarketplace(tx, invoices, vault, compliance, invoiceRepo, postgres.NewListingRepository(pool),
		outboxRepo, gen, clock, marketAddr, domain.DefaultFeeRate, m)

	return &stack{
		compliance: compliance,
		currency:   currency,
		market:     market,
		ledger:     usecase.NewLedgerUseCase(tx, accountRepo, escrowRepo, transferRepo, clock, vaultAddr, m),
	}
}

func (s *stack) prepare(t *testing.T, buyers ...domain.Address) *domain.Invoice {
	t.Helper()
	ctx := context.Background()

	for _, addr := range append([]domain.Address{issuer}, buyers...) {
		_, err := s.compliance.Register(ctx, authority, addr, nil)
		require.NoError(t, err)
	}
	for _, addr := range buyers {
		_, err := s.currency.Deposit(ctx, authority, addr, decimal.NewFromInt(10000))
		require.NoError(t, err)
		_, err = s.currency.Approve(ctx, addr, marketAddr, decimal.NewFromInt(10000))
		require.NoError(t, err)
	}

	inv, err := s.market.Mint(ctx, issuer, usecase.MintInput{
		FaceValue: decimal.NewFromInt(10000),
		DueDate:   time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	_, err = s.market.List(ctx, issuer, inv.ID, decimal.NewFromInt(9500), false)
	require.NoError(t, err)
	return inv
}

func TestPostgresBuyAndSettle(t *testing.T) {
	pool := startPostgres(t)
	s := newStack(t, pool)
	ctx := context.Background()

	inv := s.prepare(t, investor)
	require.Equal(t, uint64(0), inv.ID)

	result, err := s.market.Buy(ctx, investor, inv.ID)
	require.NoError(t, err)
	require.True(t, result.Release.Payout.Equal(decimal.NewFromInt(9025)))
	require.True(t, result.Release.Fee.Equal(decimal.NewFromInt(475)))

	_, err = s.currency.Deposit(ctx, authority, issuer, decimal.NewFromInt(1000))
	require.NoError(t, err)
	_, err = s.currency.Approve(ctx, issuer, marketAddr, decimal.NewFromInt(10000))
	require.NoError(t, err)

	_, err = s.market.Settle(ctx, issuer, inv.ID, decimal.NewFromInt(10000))
	require.NoError(t, err)

	settled, err := s.market.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.InvoiceStatusSettled, settled.Status)

	holder, err := s.currency.BalanceOf(ctx, investor)
	require.NoError(t, err)
	require.True(t, holder.Balance.Equal(decimal.NewFromInt(10500)))

	report, err := s.ledger.CheckConsistency(ctx)
	require.NoError(t, err)
	require.True(t, report.Consistent())
}

func TestPostgresConcurrentBuyersOneWins(t *testing.T) {
	pool := startPostgres(t)
	s := newStack(t, pool)
	ctx := context.Background()

	inv := s.prepare(t, investor, investorB)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, buyer := range []domain.Address{investor, investorB} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.market.Buy(ctx, buyer, inv.ID); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)

	report, err := s.ledger.CheckConsistency(ctx)
	require.NoError(t, err)
	require.True(t, report.Consistent())
}

func TestPostgresRejectedMintDoesNotConsumeID(t *testing.T) {
	pool := startPostgres(t)
	s := newStack(t, pool)
	ctx := context.Background()

	_, err := s.market.Mint(ctx, issuer, usecase.MintInput{
		FaceValue: decimal.NewFromInt(100),
		DueDate:   time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = s.market.Mint(ctx, issuer, usecase.MintInput{
		FaceValue: decimal.Zero,
		DueDate:   time.Now().Add(time.Hour),
	})
	require.Error(t, err)

	inv, err := s.market.Mint(ctx, issuer, usecase.MintInput{
		FaceValue: decimal.NewFromInt(100),
		DueDate:   time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), inv.ID)
}

func TestPostgresOutboxRecordsInvoiceLifecycle(t *testing.T) {
	pool := startPostgres(t)
	s := newStack(t, pool)
	ctx := context.Background()

	inv := s.prepare(t, investor)
	_, err := s.market.Buy(ctx, investor, inv.ID)
	require.NoError(t, err)

	events, err := s.market.InvoiceEvents(ctx, inv.ID, 100, 0)
	require.NoError(t, err)

	types := make([]string, 0, len(events))
	for _, e := range events {
		require.Equal(t, domain.InvoiceAggregateID(inv.ID), e.AggregateID)
		types = append(types, e.EventType)
	}
	require.Subset(t, types, []string{
		domain.EventTypeInvoiceMinted,
		domain.EventTypeListingCreated,
		domain.EventTypeInvoiceSold,
	})

	outbox := postgres.NewOutboxRepository(pool)
	pending, err := outbox.GetUnpublished(ctx, 1000)
	require.NoError(t, err)
	require.NotEmpty(t, pending)

	now := time.Now()
	for _, e := range pending {
		require.NoError(t, outbox.MarkPublished(ctx, e.ID, now))
	}
	pending, err = outbox.GetUnpublished(ctx, 1000)
	require.NoError(t, err)
	require.Empty(t, pending)

	require.NoError(t, outbox.DeletePublished(ctx, now.Add(time.Second)))
	events, err = s.market.InvoiceEvents(ctx, inv.ID, 100, 0)
	require.NoError(t, err)
	require.Empty(t, events)
}
