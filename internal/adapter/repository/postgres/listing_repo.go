package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

const listingColumns = `invoice_id, seller, price, negotiable, active, buyer, created_at, updated_at`

// ListingRepository implements usecase.ListingRepository.
type ListingRepository struct {
	pool Querier
}

// NewListingRepository creates a new ListingRepository.
func NewListingRepository(pool Querier) *ListingRepository {
	return &ListingRepository{pool: pool}
}

// Save upserts the listing row of an invoice.
func (r *ListingRepository) Save(ctx context.Context, tx usecase.Transaction, listing *domain.Listing) error {
	q, err := executor(tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (invoice_id) DO UPDATE SET
			seller = EXCLUDED.seller,
			price = EXCLUDED.price,
			negotiable = EXCLUDED.negotiable,
			active = EXCLUDED.active,
			buyer = EXCLUDED.buyer,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
	`,
		int64(listing.InvoiceID),
		addressBytes(listing.Seller),
		decimalToNumeric(listing.Price),
		listing.Negotiable,
		listing.Active,
		optionalAddressBytes(listing.Buyer),
		listing.CreatedAt,
		listing.UpdatedAt,
	)
	return err
}

// GetByInvoiceID retrieves the listing of an invoice.
func (r *ListingRepository) GetByInvoiceID(ctx context.Context, invoiceID uint64) (*domain.Listing, error) {
	row := reader(ctx, r.pool).QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE invoice_id = $1`, int64(invoiceID))
	return scanListingRow(row)
}

// GetByInvoiceIDForUpdate retrieves the listing of an invoice with a FOR UPDATE lock.
func (r *ListingRepository) GetByInvoiceIDForUpdate(ctx context.Context, tx usecase.Transaction, invoiceID uint64) (*domain.Listing, error) {
	q, err := executor(tx)
	if err != nil {
		return nil, err
	}

	row := q.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE invoice_id = $1 FOR UPDATE`, int64(invoiceID))
	return scanListingRow(row)
}

// ListActive lists active listings in invoice id order.
func (r *ListingRepository) ListActive(ctx context.Context, limit, offset int) ([]*domain.Listing, error) {
	rows, err := reader(ctx, r.pool).Query(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE active
		ORDER BY invoice_id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := make([]*domain.Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}

	return listings, rows.Err()
}

func scanListingRow(row pgx.Row) (*domain.Listing, error) {
	l, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrListingNotFound
	}
	return l, err
}

func scanListing(row rowScanner) (*domain.Listing, error) {
	var (
		invoiceID     int64
		seller, buyer []byte
		price         pgtype.Numeric
		l             domain.Listing
	)
	if err := row.Scan(&invoiceID, &seller, &price, &l.Negotiable, &l.Active, &buyer,
		&l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}

	l.InvoiceID = uint64(invoiceID)
	l.Seller = bytesToAddress(seller)
	l.Price = numericToDecimal(price)
	l.Buyer = optionalAddress(buyer)
	return &l, nil
}
