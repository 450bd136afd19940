package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/gofactor/internal/usecase"
)

// ErrForeignTx is returned when a repository receives a transaction it did not create.
var ErrForeignTx = errors.New("transaction was not started by the postgres TxManager")

// Querier is the query surface shared by pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxPool interface {
	Begin(context.Context) (pgx.Tx, error)
}

// TxManager implements usecase.TransactionManager.
type TxManager struct {
	pool pgxPool
}

// NewTxManager creates a new TxManager.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return newTxManagerWithPool(pool)
}

func newTxManagerWithPool(pool pgxPool) *TxManager {
	return &TxManager{pool: pool}
}

// Begin starts a new transaction. When ctx already carries one, the new transaction is a
// savepoint inside it.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if parent, ok := usecase.TxFromContext(ctx); ok {
		if p, ok := parent.(*Tx); ok {
			nested, err := p.tx.Begin(ctx)
			if err != nil {
				return nil, err
			}
			return &Tx{tx: nested, nested: true}, nil
		}
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}

	return &Tx{tx: tx}, nil
}

// Tx wraps a pgx transaction or savepoint.
type Tx struct {
	tx     pgx.Tx
	nested bool
}

// Commit commits the transaction, or releases the savepoint.
func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback rolls back the transaction. Rolling back a finished transaction is a no-op.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// Nested reports whether t is a savepoint inside another transaction.
func (t *Tx) Nested() bool {
	return t.nested
}

// PgxTx returns the underlying pgx.Tx.
func (t *Tx) PgxTx() pgx.Tx {
	return t.tx
}

// executor returns the pgx transaction behind tx.
func executor(tx usecase.Transaction) (Querier, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, ErrForeignTx
	}
	return t.tx, nil
}

// reader returns the transaction carried by ctx, or pool when there is none, so reads
// inside a unit of work observe its own writes.
func reader(ctx context.Context, pool Querier) Querier {
	if tx, ok := usecase.TxFromContext(ctx); ok {
		if t, ok := tx.(*Tx); ok {
			return t.tx
		}
	}
	return pool
}
