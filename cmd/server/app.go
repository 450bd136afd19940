package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/gofactor/internal/adapter/http"
	"github.com/iho/gofactor/internal/adapter/http/handler"
	"github.com/iho/gofactor/internal/adapter/http/middleware"
	"github.com/iho/gofactor/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/gofactor/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/gofactor/internal/adapter/repository/redis"
	"github.com/iho/gofactor/internal/infrastructure/auth"
	"github.com/iho/gofactor/internal/infrastructure/config"
	"github.com/iho/gofactor/internal/infrastructure/eventpublisher"
	"github.com/iho/gofactor/internal/infrastructure/idgen"
	"github.com/iho/gofactor/internal/infrastructure/metrics"
	"github.com/iho/gofactor/internal/infrastructure/postgres"
	"github.com/iho/gofactor/internal/infrastructure/redis"
	"github.com/iho/gofactor/internal/infrastructure/tracing"
	"github.com/iho/gofactor/internal/usecase"
)

// storage is the set of repositories one driver provides.
type storage struct {
	txManager  usecase.TransactionManager
	retrier    usecase.Retrier
	invoices   usecase.InvoiceRepository
	listings   usecase.ListingRepository
	escrows    usecase.EscrowRepository
	compliance usecase.ComplianceRepository
	accounts   usecase.AccountRepository
	allowances usecase.AllowanceRepository
	transfers  usecase.TransferRepository
	outbox     usecase.OutboxRepository
	audit      usecase.AuditRepository
}

// app holds the wired service.
type app struct {
	handler   http.Handler
	publisher *eventpublisher.EventPublisher
	limiter   *middleware.RateLimiter
	closers   []func()
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	addrs, err := cfg.ParseAddresses()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	tp, err := tracing.NewProvider(tracing.Config{
		Exporter:    cfg.TraceExporter,
		ServiceName: "gofactor",
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		return nil, err
	}
	if tp != nil {
		shutdown := tracing.Install(tp)
		a.closers = append(a.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				logger.Warn().Err(err).Msg("failed to flush traces")
			}
		})
		logger.Info().Str("exporter", cfg.TraceExporter).Msg("tracing enabled")
	}

	checks := make(map[string]handler.Checker)

	var store storage
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
		defer cancel()

		if cfg.RunMigrationsOnUp {
			if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger); err != nil {
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		pool, err := postgres.NewPool(connectCtx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		checks["postgres"] = pool
		logger.Info().Msg("connected to postgres")

		store = storage{
			txManager:  postgresRepo.NewTxManager(pool),
			retrier:    postgresRepo.NewRetrier(logger),
			invoices:   postgresRepo.NewInvoiceRepository(pool),
			listings:   postgresRepo.NewListingRepository(pool),
			escrows:    postgresRepo.NewEscrowRepository(pool),
			compliance: postgresRepo.NewComplianceRepository(pool),
			accounts:   postgresRepo.NewAccountRepository(pool),
			allowances: postgresRepo.NewAllowanceRepository(pool),
			transfers:  postgresRepo.NewTransferRepository(pool),
			outbox:     postgresRepo.NewOutboxRepository(pool),
			audit:      postgresRepo.NewAuditRepository(pool),
		}
	default:
		mem := memory.NewStore()
		store = storage{
			txManager:  memory.NewTxManager(mem),
			invoices:   memory.NewInvoiceRepository(mem),
			listings:   memory.NewListingRepository(mem),
			escrows:    memory.NewEscrowRepository(mem),
			compliance: memory.NewComplianceRepository(mem),
			accounts:   memory.NewAccountRepository(mem),
			allowances: memory.NewAllowanceRepository(mem),
			transfers:  memory.NewTransferRepository(mem),
			outbox:     memory.NewOutboxRepository(mem),
			audit:      memory.NewAuditRepository(mem),
		}
		logger.Warn().Msg("using in-memory storage, state is lost on restart")
	}

	var (
		idempotencyStore usecase.IdempotencyStore = memory.NewIdempotencyStore(nil)
		publisher        eventpublisher.Publisher = eventpublisher.NewLogPublisher(logger)
	)
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		checks["redis"] = handler.CheckerFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
		logger.Info().Msg("connected to redis")

		idempotencyStore = redisRepo.NewIdempotencyStore(client)
		if cfg.EventSink == config.EventSinkRedis {
			publisher = eventpublisher.NewRedisStreamPublisher(client, cfg.EventStream, 100000)
		}
	}

	clock := usecase.SystemClock{}
	gen := idgen.NewULIDGenerator(clock.Now)
	tx := usecase.NewTransactor(store.txManager, store.retrier)
	receivers := usecase.NewReceivers()

	compliance := usecase.NewComplianceRegistry(tx, store.compliance, store.outbox, store.audit, gen, clock, addrs.Authority, m)
	currency := usecase.NewSettlementCurrency(tx, store.accounts, store.allowances, store.transfers,
		store.outbox, store.audit, gen, clock, addrs.Authority, receivers, m)
	invoices := usecase.NewInvoiceRegistry(tx, store.invoices, store.outbox, gen, clock, addrs.Marketplace, addrs.Vault, m)
	vault := usecase.NewCustodyVault(tx, store.escrows, store.invoices, store.outbox, gen, clock, compliance, currency, invoices,
		addrs.Vault, addrs.Marketplace, addrs.Platform, m)
	market := usecase.NewMarketplace(tx, invoices, vault, compliance, store.invoices, store.listings,
		store.outbox, gen, clock, addrs.Marketplace, cfg.FeeRate, m)
	ledger := usecase.NewLedgerUseCase(tx, store.accounts, store.escrows, store.transfers, clock, addrs.Vault, m)

	a.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).WithMetrics(m)

	var jwtManager *auth.JWTManager
	if cfg.AuthEnabled {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}

	a.handler = httpAdapter.NewRouter(httpAdapter.RouterConfig{
		InvoiceHandler:    handler.NewInvoiceHandler(market),
		ListingHandler:    handler.NewListingHandler(market),
		TradeHandler:      handler.NewTradeHandler(market),
		ComplianceHandler: handler.NewComplianceHandler(compliance, clock.Now),
		AccountHandler:    handler.NewAccountHandler(currency),
		LedgerHandler:     handler.NewLedgerHandler(ledger),
		HealthHandler:     handler.NewHealthHandler(checks),
		Logger:            logger,
		IdempotencyStore:  idempotencyStore,
		IdempotencyTTL:    cfg.IdempotencyTTL,
		RateLimiter:       a.limiter,
		HTTPMetrics:       middleware.NewHTTPMetrics(registry),
		Gatherer:          registry,
		JWTManager:        jwtManager,
	})

	a.publisher = eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: store.outbox,
		Publisher:  publisher,
		Logger:     logger,
		BatchSize:  cfg.OutboxBatch,
		Interval:   cfg.OutboxInterval,
		Retention:  cfg.OutboxRetention,
		Metrics:    m,
	})

	logger.Info().
		Str("authority", addrs.Authority.Hex()).
		Str("marketplace", addrs.Marketplace.Hex()).
		Str("vault", addrs.Vault.Hex()).
		Str("fee_rate", cfg.FeeRate.String()).
		Bool("auth", cfg.AuthEnabled).
		Msg("marketplace configured")

	return a, nil
}
