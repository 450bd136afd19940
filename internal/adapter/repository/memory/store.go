// Package memory is a transactional in-process storage backend. One transaction runs at a
// time; writes record undo steps so rollbacks, including nested ones, restore prior state.
// Waiting for the store honours the caller's context.
package memory

import (
	"context"
	"errors"

	"golang.org/x/sync/semaphore"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

// ErrTxDone is returned when committing a finished transaction.
var ErrTxDone = errors.New("transaction already committed or rolled back")

// ErrNoTx is returned when a write is attempted outside a transaction.
var ErrNoTx = errors.New("write requires a memory transaction")

type allowanceKey struct {
	owner   domain.Address
	spender domain.Address
}

// Store holds every table of the backend.
type Store struct {
	// sem admits one transaction or read at a time.
	sem *semaphore.Weighted

	nextInvoiceID uint64
	invoices      map[uint64]*domain.Invoice
	listings      map[uint64]*domain.Listing
	escrows       map[string]*domain.EscrowAccount
	escrowOrder   []string
	compliance    map[domain.Address]*domain.ComplianceEntry
	accounts      map[domain.Address]*domain.Account
	allowances    map[allowanceKey]*domain.Allowance
	transfers     []*domain.Transfer
	outbox        []*domain.OutboxEvent
	audit         []*domain.AuditLog
}

func NewStore() *Store {
	return &Store{
		sem:        semaphore.NewWeighted(1),
		invoices:   make(map[uint64]*domain.Invoice),
		listings:   make(map[uint64]*domain.Listing),
		escrows:    make(map[string]*domain.EscrowAccount),
		compliance: make(map[domain.Address]*domain.ComplianceEntry),
		accounts:   make(map[domain.Address]*domain.Account),
		allowances: make(map[allowanceKey]*domain.Allowance),
	}
}

// Tx is a memory transaction. Nested transactions share the root's undo log.
type Tx struct {
	store *Store
	root  *Tx
	mark  int
	undo  []func()
	done  bool
}

func (t *Tx) rootTx() *Tx {
	if t.root != nil {
		return t.root
	}
	return t
}

// Commit keeps the transaction's writes. Committing a nested transaction hands its
// writes to the parent.
func (t *Tx) Commit(_ context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	if t.root == nil {
		t.undo = nil
		t.store.sem.Release(1)
	}
	return nil
}

// Rollback undoes the transaction's writes. It is a no-op after Commit.
func (t *Tx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true

	root := t.rootTx()
	for i := len(root.undo) - 1; i >= t.mark; i-- {
		root.undo[i]()
	}
	root.undo = root.undo[:t.mark]

	if t.root == nil {
		t.store.sem.Release(1)
	}
	return nil
}

// TxManager begins memory transactions.
type TxManager struct {
	store *Store
}

func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a transaction, or a nested one when ctx already carries an open memory
// transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if parent := activeTx(ctx); parent != nil {
		root := parent.rootTx()
		return &Tx{store: m.store, root: root, mark: len(root.undo)}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.store.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return &Tx{store: m.store}, nil
}

func activeTx(ctx context.Context) *Tx {
	tx, ok := usecase.TxFromContext(ctx)
	if !ok {
		return nil
	}
	t, ok := tx.(*Tx)
	if !ok || t.done {
		return nil
	}
	return t
}

// write runs fn under tx and records the undo step it returns.
func (s *Store) write(tx usecase.Transaction, fn func() (undo func(), err error)) error {
	t, ok := tx.(*Tx)
	if !ok || t.done || t.store != s {
		return ErrNoTx
	}
	undo, err := fn()
	if err != nil {
		return err
	}
	root := t.rootTx()
	root.undo = append(root.undo, undo)
	return nil
}

// read runs fn with the store held unless ctx already holds it through a transaction.
// It fails with the context's error when the store stays busy past ctx.
func (s *Store) read(ctx context.Context, fn func()) error {
	if t := activeTx(ctx); t != nil && t.store == s {
		fn()
		return nil
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)
	fn()
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
