package memory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

type AllowanceRepository struct {
	store *Store
}

func NewAllowanceRepository(store *Store) *AllowanceRepository {
	return &AllowanceRepository{store: store}
}

func (r *AllowanceRepository) Get(ctx context.Context, owner, spender domain.Address) (*domain.Allowance, error) {
	allowance := &domain.Allowance{Owner: owner, Spender: spender, Amount: decimal.Zero}
	if err := r.store.read(ctx, func() {
		if stored, ok := r.store.allowances[allowanceKey{owner, spender}]; ok {
			c := *stored
			allowance = &c
		}
	}); err != nil {
		return nil, err
	}
	return allowance, nil
}

func (r *AllowanceRepository) GetForUpdate(ctx context.Context, _ usecase.Transaction, owner, spender domain.Address) (*domain.Allowance, error) {
	return r.Get(ctx, owner, spender)
}

func (r *AllowanceRepository) Save(_ context.Context, tx usecase.Transaction, allowance *domain.Allowance) error {
	return r.store.write(tx, func() (func(), error) {
		key := allowanceKey{allowance.Owner, allowance.Spender}
		prev, existed := r.store.allowances[key]
		c := *allowance
		r.store.allowances[key] = &c
		return func() {
			if existed {
				r.store.allowances[key] = prev
				return
			}
			delete(r.store.allowances, key)
		}, nil
	})
}
