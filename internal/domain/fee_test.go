package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSplitFee(t *testing.T) {
	tests := []struct {
		name       string
		amount     int64
		rate       string
		wantPayout int64
		wantFee    int64
	}{
		{"five percent of 9500", 9500, "0.05", 9025, 475},
		{"fee rounds down", 99, "0.05", 95, 4},
		{"zero rate", 1000, "0", 1000, 0},
		{"tiny amount has no fee", 19, "0.05", 19, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payout, fee := SplitFee(decimal.NewFromInt(tt.amount), decimal.RequireFromString(tt.rate))
			if !payout.Equal(decimal.NewFromInt(tt.wantPayout)) {
				t.Fatalf("expected payout %d, got %s", tt.wantPayout, payout)
			}
			if !fee.Equal(decimal.NewFromInt(tt.wantFee)) {
				t.Fatalf("expected fee %d, got %s", tt.wantFee, fee)
			}
			if !payout.Add(fee).Equal(decimal.NewFromInt(tt.amount)) {
				t.Fatal("payout + fee must equal amount")
			}
		})
	}
}

func TestValidateFeeRate(t *testing.T) {
	for _, ok := range []string{"0", "0.05", "0.999"} {
		if err := ValidateFeeRate(decimal.RequireFromString(ok)); err != nil {
			t.Fatalf("expected %s valid, got %v", ok, err)
		}
	}
	for _, bad := range []string{"-0.01", "1", "2.5"} {
		if err := ValidateFeeRate(decimal.RequireFromString(bad)); !errors.Is(err, ErrInvalidFeeRate) {
			t.Fatalf("expected ErrInvalidFeeRate for %s, got %v", bad, err)
		}
	}
}

func TestComplianceEntry_IsVerifiedAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	var missing *ComplianceEntry
	if missing.IsVerifiedAt(now) {
		t.Fatal("nil entry must not be verified")
	}

	entry := &ComplianceEntry{Verified: true}
	if !entry.IsVerifiedAt(now) {
		t.Fatal("verified entry without expiry should be verified")
	}

	entry.ExpiresAt = &later
	if !entry.IsVerifiedAt(now) {
		t.Fatal("entry should be verified before expiry")
	}
	if entry.IsVerifiedAt(later) {
		t.Fatal("entry must not be verified at expiry")
	}

	revoked := &ComplianceEntry{Verified: false}
	if revoked.IsVerifiedAt(now) {
		t.Fatal("revoked entry must not be verified")
	}
}
