package usecase_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/gofactor/internal/domain"
)

func TestCustodyVault_OpenAndRefund(t *testing.T) {
	e := newTestEnv(t)
	e.verify(t, issuer, investor)
	e.fund(t, investor, 5000)
	ctx := context.Background()
	inv := e.mint(t, 10000)

	escrow, err := e.vault.OpenEscrow(ctx, marketAddr, inv.ID, investor, d(3000))
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusPending, escrow.Status)
	assert.Equal(t, domain.EscrowKindPurchase, escrow.Kind)

	held, err := e.vault.EscrowBalance(ctx)
	require.NoError(t, err)
	assert.True(t, held.Equal(d(3000)))
	e.requireBalance(t, investor, 2000)
	e.requireConsistent(t)

	pending, err := e.vault.GetPendingEscrow(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, escrow.ID, pending.ID)

	_, err = e.vault.OpenEscrow(ctx, marketAddr, inv.ID, investor, d(1000))
	require.ErrorIs(t, err, domain.ErrInvalidState)

	refunded, err := e.vault.Refund(ctx, marketAddr, inv.ID, domain.EscrowKindPurchase)
	require.NoError(t, err)
	assert.Equal(t, escrow.ID, refunded.ID)

	held, err = e.vault.EscrowBalance(ctx)
	require.NoError(t, err)
	assert.True(t, held.IsZero())
	e.requireBalance(t, investor, 5000)
	e.requireConsistent(t)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.EscrowsOpened))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.EscrowsRefunded))
}

func TestCustodyVault_Rejections(t *testing.T) {
	e := newTestEnv(t)
	e.verify(t, issuer, investor)
	e.fund(t, investor, 1000)
	ctx := context.Background()
	inv := e.mint(t, 10000)

	tests := []struct {
		name      string
		caller    domain.Address
		depositor domain.Address
		amount    int64
		want      error
	}{
		{"caller is not the marketplace", investor, investor, 100, domain.ErrUnauthorized},
		{"depositor not verified", marketAddr, outsider, 100, domain.ErrComplianceRejected},
		{"amount above balance", marketAddr, investor, 1001, domain.ErrInsufficientFunds},
		{"zero amount", marketAddr, investor, 0, domain.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.vault.OpenEscrow(ctx, tt.caller, inv.ID, tt.depositor, d(tt.amount))
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err := e.vault.Refund(ctx, marketAddr, inv.ID, domain.EscrowKindPurchase)
	require.ErrorIs(t, err, domain.ErrEscrowNotFound)

	_, err = e.vault.ReleaseToSeller(ctx, marketAddr, inv.ID, issuer, domain.DefaultFeeRate)
	require.ErrorIs(t, err, domain.ErrEscrowNotFound)

	e.requireBalance(t, investor, 1000)
	e.requireConsistent(t)
}
