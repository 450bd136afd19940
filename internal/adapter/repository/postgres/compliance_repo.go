package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

// ComplianceRepository implements usecase.ComplianceRepository.
type ComplianceRepository struct {
	pool Querier
}

// NewComplianceRepository creates a new ComplianceRepository.
func NewComplianceRepository(pool Querier) *ComplianceRepository {
	return &ComplianceRepository{pool: pool}
}

// Save upserts the entry of an address.
func (r *ComplianceRepository) Save(ctx context.Context, tx usecase.Transaction, entry *domain.ComplianceEntry) error {
	q, err := executor(tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO compliance_entries (address, verified, expires_at, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (address) DO UPDATE SET
			verified = EXCLUDED.verified,
			expires_at = EXCLUDED.expires_at,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
	`, addressBytes(entry.Address), entry.Verified, entry.ExpiresAt, addressBytes(entry.UpdatedBy), entry.UpdatedAt)
	return err
}

// Get retrieves the entry of an address.
func (r *ComplianceRepository) Get(ctx context.Context, addr domain.Address) (*domain.ComplianceEntry, error) {
	var (
		entry     domain.ComplianceEntry
		updatedBy []byte
	)
	err := reader(ctx, r.pool).QueryRow(ctx, `
		SELECT verified, expires_at, updated_by, updated_at
		FROM compliance_entries WHERE address = $1
	`, addressBytes(addr)).Scan(&entry.Verified, &entry.ExpiresAt, &updatedBy, &entry.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrComplianceEntryNotFound
	}
	if err != nil {
		return nil, err
	}

	entry.Address = addr
	entry.UpdatedBy = bytesToAddress(updatedBy)
	return &entry, nil
}
