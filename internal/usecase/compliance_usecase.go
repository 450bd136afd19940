package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/infrastructure/metrics"
)

// ComplianceRegistry is the allow list of participants cleared to trade.
type ComplianceRegistry struct {
	tx             *Transactor
	complianceRepo ComplianceRepository
	outboxRepo     OutboxRepository
	auditRepo      AuditRepository
	idGen          IDGenerator
	clock          Clock
	authority      domain.Address
	metrics        *metrics.Metrics
}

func NewComplianceRegistry(
	tx *Transactor,
	complianceRepo ComplianceRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
	clock Clock,
	authority domain.Address,
	metrics *metrics.Metrics,
) *ComplianceRegistry {
	return &ComplianceRegistry{
		tx:             tx,
		complianceRepo: complianceRepo,
		outboxRepo:     outboxRepo,
		auditRepo:      auditRepo,
		idGen:          idGen,
		clock:          clock,
		authority:      authority,
		metrics:        metrics,
	}
}

// IsAuthority reports whether caller may change the allow list.
func (r *ComplianceRegistry) IsAuthority(caller domain.Address) bool {
	return caller == r.authority
}

// Register marks addr verified. A nil expiresAt never expires.
func (r *ComplianceRegistry) Register(ctx context.Context, caller, addr domain.Address, expiresAt *time.Time) (*domain.ComplianceEntry, error) {
	return r.set(ctx, caller, addr, true, expiresAt)
}

// Revoke removes verification from addr. Revoking an unknown address records a denied entry.
func (r *ComplianceRegistry) Revoke(ctx context.Context, caller, addr domain.Address) (*domain.ComplianceEntry, error) {
	return r.set(ctx, caller, addr, false, nil)
}

func (r *ComplianceRegistry) set(ctx context.Context, caller, addr domain.Address, verified bool, expiresAt *time.Time) (*domain.ComplianceEntry, error) {
	if !r.IsAuthority(caller) {
		return nil, fmt.Errorf("%w: %s is not the compliance authority", domain.ErrUnauthorized, caller.Hex())
	}
	if addr == domain.ZeroAddress {
		return nil, fmt.Errorf("%w: zero address", domain.ErrInvalidAddress)
	}

	now := r.clock.Now()
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, domain.ErrInvalidExpiry
	}

	action, eventType := domain.AuditActionComplianceRegister, domain.EventTypeComplianceAdded
	if !verified {
		action, eventType = domain.AuditActionComplianceRevoke, domain.EventTypeComplianceRevoked
	}

	entry := &domain.ComplianceEntry{
		Address:   addr,
		Verified:  verified,
		ExpiresAt: expiresAt,
		UpdatedBy: caller,
		UpdatedAt: now,
	}

	err := r.tx.Do(ctx, func(ctx context.Context, tx Transaction) error {
		before, err := r.complianceRepo.Get(ctx, addr)
		if err != nil && !errors.Is(err, domain.ErrComplianceEntryNotFound) {
			return err
		}

		if err := r.complianceRepo.Save(ctx, tx, entry); err != nil {
			return err
		}

		payload := map[string]any{
			"address":    addr.Hex(),
			"verified":   verified,
			"updated_by": caller.Hex(),
		}
		if expiresAt != nil {
			payload["expires_at"] = expiresAt.UTC().Format(time.RFC3339)
		}
		if err := emitEvent(ctx, tx, r.outboxRepo, r.idGen, domain.AggregateTypeCompliance,
			addr.Hex(), eventType, payload, now); err != nil {
			return err
		}

		if r.auditRepo != nil {
			auditLog := &domain.AuditLog{
				ID:           r.idGen.Generate(),
				Actor:        caller.Hex(),
				Action:       string(action),
				ResourceType: domain.AggregateTypeCompliance,
				ResourceID:   addr.Hex(),
				BeforeState:  domain.MarshalState(before),
				AfterState:   domain.MarshalState(entry),
				Status:       string(domain.AuditStatusSuccess),
				CreatedAt:    now,
			}
			if err := r.auditRepo.CreateTx(ctx, tx, auditLog); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.ComplianceUpdates.WithLabelValues(string(action)).Inc()
		if r.auditRepo != nil {
			r.metrics.AuditLogsCreated.WithLabelValues(string(action), string(domain.AuditStatusSuccess)).Inc()
		}
	}

	return entry, nil
}

// IsVerified reports whether addr is currently cleared. Unknown and expired entries are not.
func (r *ComplianceRegistry) IsVerified(ctx context.Context, addr domain.Address) (bool, error) {
	entry, err := r.complianceRepo.Get(ctx, addr)
	if errors.Is(err, domain.ErrComplianceEntryNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return entry.IsVerifiedAt(r.clock.Now()), nil
}

// GetEntry returns the stored entry for addr.
func (r *ComplianceRegistry) GetEntry(ctx context.Context, addr domain.Address) (*domain.ComplianceEntry, error) {
	return r.complianceRepo.Get(ctx, addr)
}

// requireVerified fails with ErrComplianceRejected unless addr is verified.
func (r *ComplianceRegistry) requireVerified(ctx context.Context, addr domain.Address, role string) error {
	ok, err := r.IsVerified(ctx, addr)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s %s", domain.ErrComplianceRejected, role, addr.Hex())
	}
	return nil
}
