package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/domain"
)

// InvoiceRepository defines data access for invoices.
type InvoiceRepository interface {
	// NextID reserves the next dense invoice id. The reservation is undone with the transaction.
	NextID(ctx context.Context, tx Transaction) (uint64, error)
	Create(ctx context.Context, tx Transaction, invoice *domain.Invoice) error
	GetByID(ctx context.Context, id uint64) (*domain.Invoice, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id uint64) (*domain.Invoice, error)
	Update(ctx context.Context, tx Transaction, invoice *domain.Invoice) error
	ListByHolder(ctx context.Context, holder domain.Address, limit, offset int) ([]*domain.Invoice, error)
	ListByIssuer(ctx context.Context, issuer domain.Address, limit, offset int) ([]*domain.Invoice, error)
	Count(ctx context.Context) (uint64, error)
}

// ListingRepository defines data access for listings. Each invoice has at most one listing row;
// relisting after a cancel replaces it.
type ListingRepository interface {
	Save(ctx context.Context, tx Transaction, listing *domain.Listing) error
	GetByInvoiceID(ctx context.Context, invoiceID uint64) (*domain.Listing, error)
	GetByInvoiceIDForUpdate(ctx context.Context, tx Transaction, invoiceID uint64) (*domain.Listing, error)
	ListActive(ctx context.Context, limit, offset int) ([]*domain.Listing, error)
}

// EscrowRepository defines data access for vault escrows.
type EscrowRepository interface {
	Create(ctx context.Context, tx Transaction, escrow *domain.EscrowAccount) error
	GetByID(ctx context.Context, id string) (*domain.EscrowAccount, error)
	GetPending(ctx context.Context, invoiceID uint64, kind domain.EscrowKind) (*domain.EscrowAccount, error)
	GetPendingForUpdate(ctx context.Context, tx Transaction, invoiceID uint64, kind domain.EscrowKind) (*domain.EscrowAccount, error)
	UpdateStatus(ctx context.Context, tx Transaction, id string, status domain.EscrowStatus, resolvedAt time.Time) error
	SumPending(ctx context.Context) (decimal.Decimal, error)
}

// ComplianceRepository defines data access for the compliance allow list.
type ComplianceRepository interface {
	Save(ctx context.Context, tx Transaction, entry *domain.ComplianceEntry) error
	Get(ctx context.Context, addr domain.Address) (*domain.ComplianceEntry, error)
}

// AccountRepository defines data access for settlement currency balances.
// Unknown addresses read as zero balance accounts.
type AccountRepository interface {
	GetByAddress(ctx context.Context, addr domain.Address) (*domain.Account, error)
	// GetByAddressesForUpdate locks the accounts in address order.
	GetByAddressesForUpdate(ctx context.Context, tx Transaction, addrs []domain.Address) ([]*domain.Account, error)
	UpdateBalance(ctx context.Context, tx Transaction, addr domain.Address, balance decimal.Decimal, updatedAt time.Time) error
	SumBalances(ctx context.Context) (decimal.Decimal, error)
}

// AllowanceRepository defines data access for spending approvals.
type AllowanceRepository interface {
	Get(ctx context.Context, owner, spender domain.Address) (*domain.Allowance, error)
	GetForUpdate(ctx context.Context, tx Transaction, owner, spender domain.Address) (*domain.Allowance, error)
	Save(ctx context.Context, tx Transaction, allowance *domain.Allowance) error
}

// TransferRepository defines data access for settlement currency movements.
type TransferRepository interface {
	Create(ctx context.Context, tx Transaction, transfer *domain.Transfer) error
	ListByAddress(ctx context.Context, addr domain.Address, limit, offset int) ([]*domain.Transfer, error)
	// NetFlow returns inflows minus outflows of addr across all transfers.
	NetFlow(ctx context.Context, addr domain.Address) (decimal.Decimal, error)
	SumDeposits(ctx context.Context) (decimal.Decimal, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublished(ctx context.Context, before time.Time) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle. Begin on a context that already
// carries a transaction (see ContextWithTx) opens a nested transaction inside it.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier retries operations that failed on transient storage conflicts.
type Retrier interface {
	Retry(ctx context.Context, op func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// PaymentReceiver is code attached to an address that runs when the address is credited.
// It runs synchronously inside the crediting operation; an error aborts that operation.
type PaymentReceiver interface {
	OnPayment(ctx context.Context, payment *domain.Transfer) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a key whose request did not complete so it can be retried.
	Release(ctx context.Context, key string) error
}
