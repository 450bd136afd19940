package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	pool Querier
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool Querier) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// GetByAddress retrieves the account of addr. Unknown addresses read as empty accounts.
func (r *AccountRepository) GetByAddress(ctx context.Context, addr domain.Address) (*domain.Account, error) {
	row := reader(ctx, r.pool).QueryRow(ctx, `
		SELECT address, balance, version, created_at, updated_at
		FROM accounts WHERE address = $1
	`, addressBytes(addr))

	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.Account{Address: addr, Balance: decimal.Zero}, nil
	}
	return acc, err
}

// GetByAddressesForUpdate creates missing account rows and locks all of them in address
// order so concurrent transfers between the same accounts cannot deadlock.
func (r *AccountRepository) GetByAddressesForUpdate(ctx context.Context, tx usecase.Transaction, addrs []domain.Address) ([]*domain.Account, error) {
	q, err := executor(tx)
	if err != nil {
		return nil, err
	}

	keys := addressList(addrs)
	if _, err := q.Exec(ctx, `
		INSERT INTO accounts (address, balance, version, created_at, updated_at)
		SELECT a, 0, 0, now(), now() FROM unnest($1::bytea[]) AS a
		ON CONFLICT (address) DO NOTHING
	`, keys); err != nil {
		return nil, fmt.Errorf("failed to ensure accounts: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT address, balance, version, created_at, updated_at
		FROM accounts WHERE address = ANY($1::bytea[])
		ORDER BY address
		FOR UPDATE
	`, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]*domain.Account, 0, len(addrs))
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}

	return accounts, rows.Err()
}

// UpdateBalance updates the balance of a locked account.
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, addr domain.Address, balance decimal.Decimal, updatedAt time.Time) error {
	q, err := executor(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE accounts SET balance = $2, version = version + 1, updated_at = $3
		WHERE address = $1
	`, addressBytes(addr), decimalToNumeric(balance), updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s was not locked before update", addr.Hex())
	}
	return nil
}

// SumBalances returns the total settlement currency held across accounts.
func (r *AccountRepository) SumBalances(ctx context.Context) (decimal.Decimal, error) {
	var total pgtype.Numeric
	if err := reader(ctx, r.pool).QueryRow(ctx, `SELECT COALESCE(SUM(balance), 0) FROM accounts`).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return numericToDecimal(total), nil
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		acc     domain.Account
		address []byte
		balance pgtype.Numeric
	)
	if err := row.Scan(&address, &balance, &acc.Version, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return nil, err
	}

	acc.Address = bytesToAddress(address)
	acc.Balance = numericToDecimal(balance)
	return &acc, nil
}
