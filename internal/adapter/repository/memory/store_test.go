package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

var testAddr = domain.MustParseAddress("0x0000000000000000000000000000000000002001")

func begin(t *testing.T, m *TxManager, ctx context.Context) (context.Context, usecase.Transaction) {
	t.Helper()
	tx, err := m.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	return usecase.ContextWithTx(ctx, tx), tx
}

func balanceOf(t *testing.T, repo *AccountRepository, ctx context.Context) decimal.Decimal {
	t.Helper()
	acc, err := repo.GetByAddress(ctx, testAddr)
	if err != nil {
		t.Fatalf("GetByAddress: %v", err)
	}
	return acc.Balance
}

func TestTx_CommitKeepsWrites(t *testing.T) {
	store := NewStore()
	m := NewTxManager(store)
	repo := NewAccountRepository(store)
	now := time.Now()

	ctx, tx := begin(t, m, context.Background())
	if err := repo.UpdateBalance(ctx, tx, testAddr, decimal.NewFromInt(10), now); err != nil {
		t.Fatalf("UpdateBalance: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback after commit should be a no-op, got %v", err)
	}
	if err := tx.Commit(ctx); !errors.Is(err, ErrTxDone) {
		t.Fatalf("expected ErrTxDone, got %v", err)
	}

	if got := balanceOf(t, repo, context.Background()); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected balance 10, got %s", got)
	}
}

func TestTx_RollbackRestoresState(t *testing.T) {
	store := NewStore()
	m := NewTxManager(store)
	repo := NewAccountRepository(store)
	invoices := NewInvoiceRepository(store)
	now := time.Now()

	ctx, tx := begin(t, m, context.Background())
	id, err := invoices.NextID(ctx, tx)
	if err != nil {
		t.Fatalf("NextID: %v", err)
	}
	if err := invoices.Create(ctx, tx, &domain.Invoice{ID: id, Status: domain.InvoiceStatusMinted}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.UpdateBalance(ctx, tx, testAddr, decimal.NewFromInt(10), now); err != nil {
		t.Fatalf("UpdateBalance: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if got := balanceOf(t, repo, context.Background()); !got.IsZero() {
		t.Fatalf("expected zero balance after rollback, got %s", got)
	}
	if _, err := invoices.GetByID(context.Background(), id); !errors.Is(err, domain.ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound, got %v", err)
	}

	// The id counter is rolled back too, so ids stay dense.
	ctx, tx = begin(t, m, context.Background())
	again, err := invoices.NextID(ctx, tx)
	if err != nil {
		t.Fatalf("NextID: %v", err)
	}
	_ = tx.Rollback(ctx)
	if again != id {
		t.Fatalf("expected id %d to be reused, got %d", id, again)
	}
}

func TestTx_NestedRollbackKeepsParentWrites(t *testing.T) {
	store := NewStore()
	m := NewTxManager(store)
	repo := NewAccountRepository(store)
	now := time.Now()

	ctx, outer := begin(t, m, context.Background())
	if err := repo.UpdateBalance(ctx, outer, testAddr, decimal.NewFromInt(10), now); err != nil {
		t.Fatalf("UpdateBalance: %v", err)
	}

	innerCtx, inner := begin(t, m, ctx)
	if err := repo.UpdateBalance(innerCtx, inner, testAddr, decimal.NewFromInt(25), now); err != nil {
		t.Fatalf("UpdateBalance: %v", err)
	}
	if got := balanceOf(t, repo, innerCtx); !got.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected 25 inside nested tx, got %s", got)
	}
	if err := inner.Rollback(innerCtx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if got := balanceOf(t, repo, ctx); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected parent write to survive, got %s", got)
	}

	innerCtx, inner = begin(t, m, ctx)
	if err := repo.UpdateBalance(innerCtx, inner, testAddr, decimal.NewFromInt(40), now); err != nil {
		t.Fatalf("UpdateBalance: %v", err)
	}
	if err := inner.Commit(innerCtx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// Rolling back the parent discards the committed child as well.
	if err := outer.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if got := balanceOf(t, repo, context.Background()); !got.IsZero() {
		t.Fatalf("expected zero after parent rollback, got %s", got)
	}
}

func TestStore_WriteRequiresTx(t *testing.T) {
	store := NewStore()
	repo := NewAccountRepository(store)

	err := repo.UpdateBalance(context.Background(), nil, testAddr, decimal.NewFromInt(1), time.Now())
	if !errors.Is(err, ErrNoTx) {
		t.Fatalf("expected ErrNoTx, got %v", err)
	}

	m := NewTxManager(store)
	ctx, tx := begin(t, m, context.Background())
	_ = tx.Commit(ctx)
	err = repo.UpdateBalance(ctx, tx, testAddr, decimal.NewFromInt(1), time.Now())
	if !errors.Is(err, ErrNoTx) {
		t.Fatalf("expected ErrNoTx on a finished tx, got %v", err)
	}
}

func TestTxManager_BeginHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewTxManager(NewStore()).Begin(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTxManager_BeginGivesUpWhenStoreIsBusy(t *testing.T) {
	store := NewStore()
	m := NewTxManager(store)
	repo := NewAccountRepository(store)

	_, held := begin(t, m, context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := m.Begin(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected context.DeadlineExceeded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Begin did not return while another transaction held the store")
	}

	readCtx, readCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer readCancel()
	if _, err := repo.GetByAddress(readCtx, testAddr); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected read to time out, got %v", err)
	}

	if err := held.Rollback(context.Background()); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	tx, err := m.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin after release: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	tests := []struct {
		limit, offset int
		want          []int
	}{
		{2, 0, []int{1, 2}},
		{2, 4, []int{5}},
		{0, 1, []int{2, 3, 4, 5}},
		{3, 9, []int{}},
	}
	for _, tt := range tests {
		got := paginate(items, tt.limit, tt.offset)
		if len(got) != len(tt.want) {
			t.Fatalf("paginate(%d, %d) = %v, want %v", tt.limit, tt.offset, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("paginate(%d, %d) = %v, want %v", tt.limit, tt.offset, got, tt.want)
			}
		}
	}
}
