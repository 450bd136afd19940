package usecase_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/iho/gofactor/internal/usecase"
	"github.com/iho/gofactor/internal/usecase/mocks"
)

func TestTransactor_CommitsOnSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	txManager := mocks.NewMockTransactionManager(ctrl)
	tx := mocks.NewMockTransaction(ctrl)

	gomock.InOrder(
		txManager.EXPECT().Begin(gomock.Any()).Return(tx, nil),
		tx.EXPECT().Commit(gomock.Any()).Return(nil),
		tx.EXPECT().Rollback(gomock.Any()).Return(nil),
	)

	transactor := usecase.NewTransactor(txManager, nil)
	err := transactor.Do(context.Background(), func(ctx context.Context, got usecase.Transaction) error {
		if got != tx {
			t.Fatalf("expected tx passed to fn")
		}
		fromCtx, ok := usecase.TxFromContext(ctx)
		if !ok || fromCtx != tx {
			t.Fatalf("expected tx in context")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	txManager := mocks.NewMockTransactionManager(ctrl)
	tx := mocks.NewMockTransaction(ctrl)

	txManager.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil)

	fnErr := errors.New("boom")
	err := usecase.NewTransactor(txManager, nil).Do(context.Background(), func(context.Context, usecase.Transaction) error {
		return fnErr
	})
	if !errors.Is(err, fnErr) {
		t.Fatalf("expected fn error, got %v", err)
	}
}

func TestTransactor_BeginError(t *testing.T) {
	ctrl := gomock.NewController(t)
	txManager := mocks.NewMockTransactionManager(ctrl)

	beginErr := errors.New("pool exhausted")
	txManager.EXPECT().Begin(gomock.Any()).Return(nil, beginErr)

	called := false
	err := usecase.NewTransactor(txManager, nil).Do(context.Background(), func(context.Context, usecase.Transaction) error {
		called = true
		return nil
	})
	if !errors.Is(err, beginErr) {
		t.Fatalf("expected begin error, got %v", err)
	}
	if called {
		t.Fatal("fn must not run when Begin fails")
	}
}

func TestTransactor_UsesRetrierAtTopLevelOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	txManager := mocks.NewMockTransactionManager(ctrl)
	retrier := mocks.NewMockRetrier(ctrl)
	outer := mocks.NewMockTransaction(ctrl)
	inner := mocks.NewMockTransaction(ctrl)

	retrier.EXPECT().Retry(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, op func() error) error {
		return op()
	}).Times(1)

	txManager.EXPECT().Begin(gomock.Any()).Return(outer, nil)
	txManager.EXPECT().Begin(gomock.Any()).DoAndReturn(func(ctx context.Context) (usecase.Transaction, error) {
		if got, ok := usecase.TxFromContext(ctx); !ok || got != outer {
			t.Fatalf("nested Begin must see the outer transaction")
		}
		return inner, nil
	})
	inner.EXPECT().Commit(gomock.Any()).Return(nil)
	inner.EXPECT().Rollback(gomock.Any()).Return(nil)
	outer.EXPECT().Commit(gomock.Any()).Return(nil)
	outer.EXPECT().Rollback(gomock.Any()).Return(nil)

	transactor := usecase.NewTransactor(txManager, retrier)
	err := transactor.Do(context.Background(), func(ctx context.Context, _ usecase.Transaction) error {
		return transactor.Do(ctx, func(context.Context, usecase.Transaction) error { return nil })
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
