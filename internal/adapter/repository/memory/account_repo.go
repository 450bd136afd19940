package memory

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

type AccountRepository struct {
	store *Store
}

func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

func (r *AccountRepository) lookup(addr domain.Address) *domain.Account {
	if stored, ok := r.store.accounts[addr]; ok {
		c := *stored
		return &c
	}
	return &domain.Account{Address: addr, Balance: decimal.Zero}
}

func (r *AccountRepository) GetByAddress(ctx context.Context, addr domain.Address) (*domain.Account, error) {
	var acc *domain.Account
	if err := r.store.read(ctx, func() { acc = r.lookup(addr) }); err != nil {
		return nil, err
	}
	return acc, nil
}

func (r *AccountRepository) GetByAddressesForUpdate(ctx context.Context, _ usecase.Transaction, addrs []domain.Address) ([]*domain.Account, error) {
	sorted := append([]domain.Address(nil), addrs...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i][:], sorted[j][:]) < 0 })

	accounts := make([]*domain.Account, 0, len(sorted))
	if err := r.store.read(ctx, func() {
		for _, addr := range sorted {
			accounts = append(accounts, r.lookup(addr))
		}
	}); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *AccountRepository) UpdateBalance(_ context.Context, tx usecase.Transaction, addr domain.Address, balance decimal.Decimal, updatedAt time.Time) error {
	return r.store.write(tx, func() (func(), error) {
		prev, existed := r.store.accounts[addr]
		next := &domain.Account{Address: addr, Balance: balance, Version: 1, CreatedAt: updatedAt, UpdatedAt: updatedAt}
		if existed {
			next.Version = prev.Version + 1
			next.CreatedAt = prev.CreatedAt
		}
		r.store.accounts[addr] = next
		return func() {
			if existed {
				r.store.accounts[addr] = prev
				return
			}
			delete(r.store.accounts, addr)
		}, nil
	})
}

func (r *AccountRepository) SumBalances(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	if err := r.store.read(ctx, func() {
		for _, acc := range r.store.accounts {
			total = total.Add(acc.Balance)
		}
	}); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
