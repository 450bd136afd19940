package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

// TransferRepository implements usecase.TransferRepository.
type TransferRepository struct {
	pool Querier
}

// NewTransferRepository creates a new TransferRepository.
func NewTransferRepository(pool Querier) *TransferRepository {
	return &TransferRepository{pool: pool}
}

// Create records a settlement currency movement.
func (r *TransferRepository) Create(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer) error {
	q, err := executor(tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO transfers (id, from_address, to_address, amount, kind, invoice_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		transfer.ID,
		addressBytes(transfer.From),
		addressBytes(transfer.To),
		decimalToNumeric(transfer.Amount),
		string(transfer.Kind),
		optionalInvoiceID(transfer.InvoiceID),
		transfer.CreatedAt,
	)
	return err
}

// ListByAddress lists transfers touching addr, newest first.
func (r *TransferRepository) ListByAddress(ctx context.Context, addr domain.Address, limit, offset int) ([]*domain.Transfer, error) {
	rows, err := reader(ctx, r.pool).Query(ctx, `
		SELECT id, from_address, to_address, amount, kind, invoice_id, created_at
		FROM transfers
		WHERE from_address = $1 OR to_address = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, addressBytes(addr), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transfers := make([]*domain.Transfer, 0)
	for rows.Next() {
		var (
			t         domain.Transfer
			from, to  []byte
			amount    pgtype.Numeric
			kind      string
			invoiceID *int64
		)
		if err := rows.Scan(&t.ID, &from, &to, &amount, &kind, &invoiceID, &t.CreatedAt); err != nil {
			return nil, err
		}

		t.From = bytesToAddress(from)
		t.To = bytesToAddress(to)
		t.Amount = numericToDecimal(amount)
		t.Kind = domain.TransferKind(kind)
		if invoiceID != nil {
			id := uint64(*invoiceID)
			t.InvoiceID = &id
		}
		transfers = append(transfers, &t)
	}

	return transfers, rows.Err()
}

// NetFlow returns what addr received minus what it sent.
func (r *TransferRepository) NetFlow(ctx context.Context, addr domain.Address) (decimal.Decimal, error) {
	var net pgtype.Numeric
	err := reader(ctx, r.pool).QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE to_address = $1), 0) -
			COALESCE(SUM(amount) FILTER (WHERE from_address = $1), 0)
		FROM transfers
		WHERE from_address = $1 OR to_address = $1
	`, addressBytes(addr)).Scan(&net)
	if err != nil {
		return decimal.Zero, err
	}
	return numericToDecimal(net), nil
}

// SumDeposits returns the total currency ever issued.
func (r *TransferRepository) SumDeposits(ctx context.Context) (decimal.Decimal, error) {
	var total pgtype.Numeric
	err := reader(ctx, r.pool).QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM transfers WHERE kind = $1
	`, string(domain.TransferKindDeposit)).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return numericToDecimal(total), nil
}
