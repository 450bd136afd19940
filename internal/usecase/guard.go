package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/iho/gofactor/internal/domain"
)

type guardContextKey struct{}

// invoiceGuard tracks the invoices a call chain is currently settling.
type invoiceGuard struct {
	mu     sync.Mutex
	active map[uint64]struct{}
}

// enterInvoice marks invoiceID busy on the call chain carried by ctx. Calls that reach
// enterInvoice again for the same invoice through the returned context (for example from
// a PaymentReceiver) fail with ErrReentrantCall until leave is called.
func enterInvoice(ctx context.Context, invoiceID uint64) (context.Context, func(), error) {
	g, ok := ctx.Value(guardContextKey{}).(*invoiceGuard)
	if !ok {
		g = &invoiceGuard{active: make(map[uint64]struct{})}
		ctx = context.WithValue(ctx, guardContextKey{}, g)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.active[invoiceID]; busy {
		return ctx, func() {}, fmt.Errorf("%w: invoice %d", domain.ErrReentrantCall, invoiceID)
	}
	g.active[invoiceID] = struct{}{}

	leave := func() {
		g.mu.Lock()
		delete(g.active, invoiceID)
		g.mu.Unlock()
	}
	return ctx, leave, nil
}
