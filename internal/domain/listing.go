package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is an offer to sell an invoice at a fixed price.
// A consumed listing (Buyer set) is never modified again.
type Listing struct {
	InvoiceID  uint64
	Seller     Address
	Price      decimal.Decimal
	Negotiable bool
	Active     bool
	Buyer      *Address
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks the listing price.
func (l *Listing) Validate() error {
	return ValidatePrice(l.Price)
}

// IsConsumed reports whether a buy has used this listing.
func (l *Listing) IsConsumed() bool {
	return l.Buyer != nil
}
