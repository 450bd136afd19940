package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

const invoiceColumns = `id, issuer, holder, face_value, due_date, document_ref, status, created_at, updated_at`

// InvoiceRepository implements usecase.InvoiceRepository.
type InvoiceRepository struct {
	pool Querier
}

// NewInvoiceRepository creates a new InvoiceRepository.
func NewInvoiceRepository(pool Querier) *InvoiceRepository {
	return &InvoiceRepository{pool: pool}
}

// NextID reserves the next id from the invoice_counter row. The row stays locked until
// the transaction ends, so ids are dense and a rollback returns the id.
func (r *InvoiceRepository) NextID(ctx context.Context, tx usecase.Transaction) (uint64, error) {
	q, err := executor(tx)
	if err != nil {
		return 0, err
	}

	var next int64
	err = q.QueryRow(ctx, `
		UPDATE invoice_counter SET next_id = next_id + 1
		RETURNING next_id - 1
	`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve invoice id: %w", err)
	}
	return uint64(next), nil
}

// Create inserts a new invoice.
func (r *InvoiceRepository) Create(ctx context.Context, tx usecase.Transaction, invoice *domain.Invoice) error {
	q, err := executor(tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		int64(invoice.ID),
		addressBytes(invoice.Issuer),
		addressBytes(invoice.Holder),
		decimalToNumeric(invoice.FaceValue),
		invoice.DueDate,
		invoice.DocumentRef,
		string(invoice.Status),
		invoice.CreatedAt,
		invoice.UpdatedAt,
	)
	return err
}

// GetByID retrieves an invoice by id.
func (r *InvoiceRepository) GetByID(ctx context.Context, id uint64) (*domain.Invoice, error) {
	row := reader(ctx, r.pool).QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, int64(id))
	return scanInvoiceRow(row)
}

// GetByIDForUpdate retrieves an invoice by id with a FOR UPDATE lock.
func (r *InvoiceRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id uint64) (*domain.Invoice, error) {
	q, err := executor(tx)
	if err != nil {
		return nil, err
	}

	row := q.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, int64(id))
	return scanInvoiceRow(row)
}

// Update persists holder and status changes.
func (r *InvoiceRepository) Update(ctx context.Context, tx usecase.Transaction, invoice *domain.Invoice) error {
	q, err := executor(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE invoices SET holder = $2, status = $3, updated_at = $4
		WHERE id = $1
	`, int64(invoice.ID), addressBytes(invoice.Holder), string(invoice.Status), invoice.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}

// ListByHolder lists invoices held by holder in id order.
func (r *InvoiceRepository) ListByHolder(ctx context.Context, holder domain.Address, limit, offset int) ([]*domain.Invoice, error) {
	return r.list(ctx, `holder`, holder, limit, offset)
}

// ListByIssuer lists invoices minted by issuer in id order.
func (r *InvoiceRepository) ListByIssuer(ctx context.Context, issuer domain.Address, limit, offset int) ([]*domain.Invoice, error) {
	return r.list(ctx, `issuer`, issuer, limit, offset)
}

func (r *InvoiceRepository) list(ctx context.Context, column string, addr domain.Address, limit, offset int) ([]*domain.Invoice, error) {
	rows, err := reader(ctx, r.pool).Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE `+column+` = $1
		ORDER BY id
		LIMIT $2 OFFSET $3
	`, addressBytes(addr), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]*domain.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}

	return invoices, rows.Err()
}

// Count returns the number of minted invoices.
func (r *InvoiceRepository) Count(ctx context.Context) (uint64, error) {
	var n int64
	if err := reader(ctx, r.pool).QueryRow(ctx, `SELECT count(*) FROM invoices`).Scan(&n); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

func scanInvoiceRow(row pgx.Row) (*domain.Invoice, error) {
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInvoiceNotFound
	}
	return inv, err
}

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	var (
		id             int64
		issuer, holder []byte
		faceValue      pgtype.Numeric
		status         string
		inv            domain.Invoice
		dueDate        time.Time
	)
	if err := row.Scan(&id, &issuer, &holder, &faceValue, &dueDate, &inv.DocumentRef, &status,
		&inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return nil, err
	}

	inv.ID = uint64(id)
	inv.Issuer = bytesToAddress(issuer)
	inv.Holder = bytesToAddress(holder)
	inv.FaceValue = numericToDecimal(faceValue)
	inv.DueDate = dueDate.UTC()
	inv.Status = domain.InvoiceStatus(status)
	return &inv, nil
}
