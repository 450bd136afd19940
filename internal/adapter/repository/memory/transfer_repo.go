package memory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

type TransferRepository struct {
	store *Store
}

func NewTransferRepository(store *Store) *TransferRepository {
	return &TransferRepository{store: store}
}

func (r *TransferRepository) Create(_ context.Context, tx usecase.Transaction, transfer *domain.Transfer) error {
	return r.store.write(tx, func() (func(), error) {
		c := *transfer
		r.store.transfers = append(r.store.transfers, &c)
		n := len(r.store.transfers) - 1
		return func() { r.store.transfers = r.store.transfers[:n] }, nil
	})
}

// ListByAddress returns transfers touching addr, newest first.
func (r *TransferRepository) ListByAddress(ctx context.Context, addr domain.Address, limit, offset int) ([]*domain.Transfer, error) {
	var out []*domain.Transfer
	if err := r.store.read(ctx, func() {
		for i := len(r.store.transfers) - 1; i >= 0; i-- {
			t := r.store.transfers[i]
			if t.From == addr || t.To == addr {
				c := *t
				out = append(out, &c)
			}
		}
	}); err != nil {
		return nil, err
	}
	return paginate(out, limit, offset), nil
}

func (r *TransferRepository) NetFlow(ctx context.Context, addr domain.Address) (decimal.Decimal, error) {
	net := decimal.Zero
	if err := r.store.read(ctx, func() {
		for _, t := range r.store.transfers {
			if t.To == addr {
				net = net.Add(t.Amount)
			}
			if t.From == addr {
				net = net.Sub(t.Amount)
			}
		}
	}); err != nil {
		return decimal.Zero, err
	}
	return net, nil
}

func (r *TransferRepository) SumDeposits(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	if err := r.store.read(ctx, func() {
		for _, t := range r.store.transfers {
			if t.From == domain.ZeroAddress {
				total = total.Add(t.Amount)
			}
		}
	}); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
