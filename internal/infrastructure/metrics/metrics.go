package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Invoice lifecycle metrics
	InvoicesMinted    prometheus.Counter
	InvoicesSold      prometheus.Counter
	InvoicesSettled   prometheus.Counter
	InvoicesDefaulted prometheus.Counter
	ListingsCreated   prometheus.Counter
	ListingsCancelled prometheus.Counter

	// Settlement metrics
	OperationDuration *prometheus.HistogramVec
	OperationErrors   *prometheus.CounterVec
	SettlementVolume  *prometheus.CounterVec
	ReentrancyBlocked prometheus.Counter
	Compensations     *prometheus.CounterVec

	// Custody metrics
	EscrowsOpened   prometheus.Counter
	EscrowsReleased prometheus.Counter
	EscrowsRefunded prometheus.Counter

	// Compliance and currency metrics
	ComplianceUpdates *prometheus.CounterVec
	CurrencyDeposits  prometheus.Counter

	// Ledger metrics
	ConsistencyChecks *prometheus.CounterVec

	// Outbox metrics
	EventsPublished *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Audit metrics
	AuditLogsCreated *prometheus.CounterVec
}

// New creates all metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		InvoicesMinted: factory.NewCounter(prometheus.CounterOpts{
			Name: "gofactor_invoices_minted_total",
			Help: "Total number of invoices minted",
		}),
		InvoicesSold: factory.NewCounter(prometheus.CounterOpts{
			Name: "gofactor_invoices_sold_total",
			Help: "Total number of invoices bought from a listing",
		}),
		InvoicesSettled: factory.NewCounter(prometheus.CounterOpts{
			Name: "gofactor_invoices_settled_total",
			Help: "Total number of invoices repaid at maturity",
		}),
		InvoicesDefaulted: factory.NewCounter(prometheus.CounterOpts{
			Name: "gofactor_invoices_defaulted_total",
			Help: "Total number of invoices marked defaulted",
		}),
		ListingsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "gofactor_listings_created_total",
			Help: "Total number of listings created",
		}),
		ListingsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "gofactor_listings_cancelled_total",
			Help: "Total number of listings cancelled",
		}),

		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gofactor_operation_duration_seconds",
				Help:    "Duration of marketplace operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		OperationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gofactor_operation_errors_total",
				Help: "Total number of failed marketplace operations by error",
			},
			[]string{"operation", "error_type"},
		),
		SettlementVolume: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gofactor_settlement_volume_units_total",
				Help: "Settlement currency moved by operation",
			},
			[]string{"operation"},
		),
		ReentrancyBlocked: factory.NewCounter(prometheus.CounterOpts{
			Name: "gofactor_reentrant_calls_blocked_total",
			Help: "Total number of reentrant buy or settle calls rejected",
		}),
		Compensations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gofactor_compensations_total",
				Help: "Compensating steps run after a failed buy",
			},
			[]string{"step", "status"},
		),

		EscrowsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "gofactor_escrows_opened_total",
			Help: "Total number of escrows opened",
		}),
		EscrowsReleased: factory.NewCounter(prometheus.CounterOpts{
			Name: "gofactor_escrows_released_total",
			Help: "Total number of escrows released",
		}),
		EscrowsRefunded: factory.NewCounter(prometheus.CounterOpts{
			Name: "gofactor_escrows_refunded_total",
			Help: "Total number of escrows refunded",
		}),

		ComplianceUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gofactor_compliance_updates_total",
				Help: "Total compliance registry updates by action",
			},
			[]string{"action"},
		),
		CurrencyDeposits: factory.NewCounter(prometheus.CounterOpts{
			Name: "gofactor_currency_deposits_total",
			Help: "Total number of settlement currency deposits",
		}),

		ConsistencyChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gofactor_consistency_checks_total",
				Help: "Ledger consistency checks by result",
			},
			[]string{"result"},
		),

		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gofactor_events_published_total",
				Help: "Outbox events published by type",
			},
			[]string{"event_type"},
		),

		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gofactor_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"path"},
		),

		AuditLogsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gofactor_audit_logs_total",
				Help: "Total audit logs created",
			},
			[]string{"action", "status"},
		),
	}
}
