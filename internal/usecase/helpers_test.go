package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/gofactor/internal/adapter/repository/memory"
	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/infrastructure/idgen"
	"github.com/iho/gofactor/internal/infrastructure/metrics"
	"github.com/iho/gofactor/internal/usecase"
)

var (
	authority   = domain.MustParseAddress("0x000000000000000000000000000000000000a001")
	marketAddr  = domain.MustParseAddress("0x000000000000000000000000000000000000a002")
	vaultAddr   = domain.MustParseAddress("0x000000000000000000000000000000000000a003")
	platform    = domain.MustParseAddress("0x000000000000000000000000000000000000a004")
	issuer      = domain.MustParseAddress("0x0000000000000000000000000000000000001001")
	investor    = domain.MustParseAddress("0x0000000000000000000000000000000000002001")
	investorTwo = domain.MustParseAddress("0x0000000000000000000000000000000000002002")
	outsider    = domain.MustParseAddress("0x0000000000000000000000000000000000003001")
)

var genesis = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// testEnv wires every component over one memory store.
type testEnv struct {
	store      *memory.Store
	clock      *fakeClock
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	receivers  *usecase.Receivers
	outbox     *memory.OutboxRepository
	audit      *memory.AuditRepository
	compliance *usecase.ComplianceRegistry
	currency   *usecase.SettlementCurrency
	invoices   *usecase.InvoiceRegistry
	vault      *usecase.CustodyVault
	market     *usecase.Marketplace
	ledger     *usecase.LedgerUseCase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	clock := &fakeClock{now: genesis}
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	gen := idgen.NewULIDGenerator(clock.Now)
	tx := usecase.NewTransactor(memory.NewTxManager(store), nil)
	receivers := usecase.NewReceivers()

	invoiceRepo := memory.NewInvoiceRepository(store)
	outboxRepo := memory.NewOutboxRepository(store)
	auditRepo := memory.NewAuditRepository(store)
	accountRepo := memory.NewAccountRepository(store)
	escrowRepo := memory.NewEscrowRepository(store)
	transferRepo := memory.NewTransferRepository(store)

	compliance := usecase.NewComplianceRegistry(tx, memory.NewComplianceRepository(store), outboxRepo, auditRepo, gen, clock, authority, m)
	currency := usecase.NewSettlementCurrency(tx, accountRepo, memory.NewAllowanceRepository(store), transferRepo,
		outboxRepo, auditRepo, gen, clock, authority, receivers, m)
	invoices := usecase.NewInvoiceRegistry(tx, invoiceRepo, outboxRepo, gen, clock, marketAddr, vaultAddr, m)
	vault := usecase.NewCustodyVault(tx, escrowRepo, invoiceRepo, outboxRepo, gen, clock, compliance, currency, invoices,
		vaultAddr, marketAddr, platform, m)
	market := usecase.NewMarketplace(tx, invoices, vault, compliance, invoiceRepo, memory.NewListingRepository(store),
		outboxRepo, gen, clock, marketAddr, domain.DefaultFeeRate, m)
	ledger := usecase.NewLedgerUseCase(tx, accountRepo, escrowRepo, transferRepo, clock, vaultAddr, m)

	return &testEnv{
		store:      store,
		clock:      clock,
		registry:   registry,
		metrics:    m,
		receivers:  receivers,
		outbox:     outboxRepo,
		audit:      auditRepo,
		compliance: compliance,
		currency:   currency,
		invoices:   invoices,
		vault:      vault,
		market:     market,
		ledger:     ledger,
	}
}

func (e *testEnv) verify(t *testing.T, addrs ...domain.Address) {
	t.Helper()
	for _, addr := range addrs {
		_, err := e.compliance.Register(context.Background(), authority, addr, nil)
		require.NoError(t, err)
	}
}

// fund deposits amount to addr and approves the marketplace for all of it.
func (e *testEnv) fund(t *testing.T, addr domain.Address, amount int64) {
	t.Helper()
	ctx := context.Background()
	_, err := e.currency.Deposit(ctx, authority, addr, d(amount))
	require.NoError(t, err)
	_, err = e.currency.Approve(ctx, addr, marketAddr, d(amount))
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, addr domain.Address) decimal.Decimal {
	t.Helper()
	acc, err := e.currency.BalanceOf(context.Background(), addr)
	require.NoError(t, err)
	return acc.Balance
}

func (e *testEnv) requireBalance(t *testing.T, addr domain.Address, want int64) {
	t.Helper()
	got := e.balance(t, addr)
	require.Truef(t, got.Equal(d(want)), "balance of %s: want %d, got %s", addr.Hex(), want, got)
}

func (e *testEnv) mint(t *testing.T, face int64) *domain.Invoice {
	t.Helper()
	inv, err := e.market.Mint(context.Background(), issuer, usecase.MintInput{
		FaceValue:   d(face),
		DueDate:     e.clock.Now().Add(90 * 24 * time.Hour),
		DocumentRef: "ipfs://invoice",
	})
	require.NoError(t, err)
	return inv
}

// listed mints an invoice of face value 10000 and lists it at 9500.
func (e *testEnv) listed(t *testing.T, negotiable bool) *domain.Invoice {
	t.Helper()
	inv := e.mint(t, 10000)
	_, err := e.market.List(context.Background(), issuer, inv.ID, d(9500), negotiable)
	require.NoError(t, err)
	return inv
}

// sold runs the standard purchase of a fresh invoice by investor.
func (e *testEnv) sold(t *testing.T) *domain.Invoice {
	t.Helper()
	inv := e.listed(t, false)
	_, err := e.market.Buy(context.Background(), investor, inv.ID)
	require.NoError(t, err)
	return inv
}

func (e *testEnv) requireConsistent(t *testing.T) {
	t.Helper()
	report, err := e.ledger.CheckConsistency(context.Background())
	require.NoError(t, err)
	require.True(t, report.Consistent())
}

func (e *testEnv) invoice(t *testing.T, id uint64) *domain.Invoice {
	t.Helper()
	inv, err := e.market.GetInvoice(context.Background(), id)
	require.NoError(t, err)
	return inv
}

// receiverFunc adapts a function to usecase.PaymentReceiver.
type receiverFunc func(ctx context.Context, transfer *domain.Transfer) error

func (f receiverFunc) OnPayment(ctx context.Context, transfer *domain.Transfer) error {
	return f(ctx, transfer)
}
