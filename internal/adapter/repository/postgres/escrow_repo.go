package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

const escrowColumns = `id, invoice_id, kind, depositor, amount, status, created_at, resolved_at`

// EscrowRepository implements usecase.EscrowRepository.
type EscrowRepository struct {
	pool Querier
}

// NewEscrowRepository creates a new EscrowRepository.
func NewEscrowRepository(pool Querier) *EscrowRepository {
	return &EscrowRepository{pool: pool}
}

// Create inserts a new escrow. The uq_escrows_pending index rejects a second pending
// escrow of the same kind for an invoice.
func (r *EscrowRepository) Create(ctx context.Context, tx usecase.Transaction, escrow *domain.EscrowAccount) error {
	q, err := executor(tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO escrows (`+escrowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		escrow.ID,
		int64(escrow.InvoiceID),
		string(escrow.Kind),
		addressBytes(escrow.Depositor),
		decimalToNumeric(escrow.Amount),
		string(escrow.Status),
		escrow.CreatedAt,
		escrow.ResolvedAt,
	)
	return err
}

// GetByID retrieves an escrow by id.
func (r *EscrowRepository) GetByID(ctx context.Context, id string) (*domain.EscrowAccount, error) {
	row := reader(ctx, r.pool).QueryRow(ctx, `SELECT `+escrowColumns+` FROM escrows WHERE id = $1`, id)
	return scanEscrowRow(row)
}

// GetPending retrieves the pending escrow of kind for an invoice.
func (r *EscrowRepository) GetPending(ctx context.Context, invoiceID uint64, kind domain.EscrowKind) (*domain.EscrowAccount, error) {
	row := reader(ctx, r.pool).QueryRow(ctx, `
		SELECT `+escrowColumns+` FROM escrows
		WHERE invoice_id = $1 AND kind = $2 AND status = 'pending'
	`, int64(invoiceID), string(kind))
	return scanEscrowRow(row)
}

// GetPendingForUpdate retrieves the pending escrow of kind for an invoice with a FOR UPDATE lock.
func (r *EscrowRepository) GetPendingForUpdate(ctx context.Context, tx usecase.Transaction, invoiceID uint64, kind domain.EscrowKind) (*domain.EscrowAccount, error) {
	q, err := executor(tx)
	if err != nil {
		return nil, err
	}

	row := q.QueryRow(ctx, `
		SELECT `+escrowColumns+` FROM escrows
		WHERE invoice_id = $1 AND kind = $2 AND status = 'pending'
		FOR UPDATE
	`, int64(invoiceID), string(kind))
	return scanEscrowRow(row)
}

// UpdateStatus resolves an escrow.
func (r *EscrowRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.EscrowStatus, resolvedAt time.Time) error {
	q, err := executor(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `UPDATE escrows SET status = $2, resolved_at = $3 WHERE id = $1`, id, string(status), resolvedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEscrowNotFound
	}
	return nil
}

// SumPending returns the total amount held in pending escrows.
func (r *EscrowRepository) SumPending(ctx context.Context) (decimal.Decimal, error) {
	var total pgtype.Numeric
	err := reader(ctx, r.pool).QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM escrows WHERE status = 'pending'
	`).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return numericToDecimal(total), nil
}

func scanEscrowRow(row pgx.Row) (*domain.EscrowAccount, error) {
	var (
		e            domain.EscrowAccount
		invoiceID    int64
		kind, status string
		depositor    []byte
		amount       pgtype.Numeric
	)
	err := row.Scan(&e.ID, &invoiceID, &kind, &depositor, &amount, &status, &e.CreatedAt, &e.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEscrowNotFound
	}
	if err != nil {
		return nil, err
	}

	e.InvoiceID = uint64(invoiceID)
	e.Kind = domain.EscrowKind(kind)
	e.Depositor = bytesToAddress(depositor)
	e.Amount = numericToDecimal(amount)
	e.Status = domain.EscrowStatus(status)
	return &e, nil
}
