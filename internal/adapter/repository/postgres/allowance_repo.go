package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

// AllowanceRepository implements usecase.AllowanceRepository.
type AllowanceRepository struct {
	pool Querier
}

// NewAllowanceRepository creates a new AllowanceRepository.
func NewAllowanceRepository(pool Querier) *AllowanceRepository {
	return &AllowanceRepository{pool: pool}
}

// Get retrieves the allowance owner granted spender. Missing rows read as zero.
func (r *AllowanceRepository) Get(ctx context.Context, owner, spender domain.Address) (*domain.Allowance, error) {
	return r.get(ctx, reader(ctx, r.pool), owner, spender, "")
}

// GetForUpdate retrieves an allowance with a FOR UPDATE lock.
func (r *AllowanceRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, owner, spender domain.Address) (*domain.Allowance, error) {
	q, err := executor(tx)
	if err != nil {
		return nil, err
	}
	return r.get(ctx, q, owner, spender, " FOR UPDATE")
}

func (r *AllowanceRepository) get(ctx context.Context, q Querier, owner, spender domain.Address, lock string) (*domain.Allowance, error) {
	allowance := &domain.Allowance{Owner: owner, Spender: spender}

	var amount pgtype.Numeric
	err := q.QueryRow(ctx, `
		SELECT amount, updated_at FROM allowances
		WHERE owner = $1 AND spender = $2`+lock,
		addressBytes(owner), addressBytes(spender),
	).Scan(&amount, &allowance.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		allowance.Amount = decimal.Zero
		return allowance, nil
	}
	if err != nil {
		return nil, err
	}

	allowance.Amount = numericToDecimal(amount)
	return allowance, nil
}

// Save upserts an allowance.
func (r *AllowanceRepository) Save(ctx context.Context, tx usecase.Transaction, allowance *domain.Allowance) error {
	q, err := executor(tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO allowances (owner, spender, amount, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner, spender) DO UPDATE SET
			amount = EXCLUDED.amount,
			updated_at = EXCLUDED.updated_at
	`, addressBytes(allowance.Owner), addressBytes(allowance.Spender), decimalToNumeric(allowance.Amount), allowance.UpdatedAt)
	return err
}
