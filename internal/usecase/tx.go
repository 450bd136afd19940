package usecase

import (
	"context"
	"errors"
	"time"
)

type txContextKey struct{}

// ContextWithTx returns a context carrying tx. Storage adapters read through it and
// TransactionManager.Begin nests inside it.
func ContextWithTx(ctx context.Context, tx Transaction) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext returns the transaction carried by ctx, if any.
func TxFromContext(ctx context.Context) (Transaction, bool) {
	tx, ok := ctx.Value(txContextKey{}).(Transaction)
	return tx, ok && tx != nil
}

// Transactor runs units of work inside a transaction.
type Transactor struct {
	txManager TransactionManager
	retrier   Retrier
}

// NewTransactor creates a Transactor. retrier may be nil.
func NewTransactor(txManager TransactionManager, retrier Retrier) *Transactor {
	return &Transactor{txManager: txManager, retrier: retrier}
}

// Do runs fn in a transaction and commits when fn succeeds. When ctx already carries
// a transaction, fn runs in a nested transaction that joins it and is never retried.
func (t *Transactor) Do(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	if _, nested := TxFromContext(ctx); nested {
		return t.run(ctx, fn)
	}

	// Add transaction timeout
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	if t.retrier == nil {
		return t.run(txCtx, fn)
	}
	return t.retrier.Retry(txCtx, func() error {
		return t.run(txCtx, fn)
	})
}

func (t *Transactor) run(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	tx, err := t.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ContextWithTx(ctx, tx), tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// compensator records undo steps for a multi-step operation and runs them in reverse
// when a later step fails.
type compensator struct {
	steps []compensation
}

type compensation struct {
	name string
	undo func(ctx context.Context) error
}

func (c *compensator) push(name string, undo func(ctx context.Context) error) {
	c.steps = append(c.steps, compensation{name: name, undo: undo})
}

// unwind runs the recorded steps newest first and returns cause joined with any
// compensation failures. onStep is called once per step with its outcome.
func (c *compensator) unwind(ctx context.Context, cause error, onStep func(name string, err error)) error {
	errs := []error{cause}
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		err := step.undo(ctx)
		if onStep != nil {
			onStep(step.name, err)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	c.steps = nil

	if len(errs) == 1 {
		return cause
	}
	return errors.Join(errs...)
}

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
