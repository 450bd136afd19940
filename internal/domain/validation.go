package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrAmountTooLarge     = errors.New("amount exceeds maximum allowed")
	ErrInvalidDocumentRef = errors.New("invalid document reference")
	ErrInvalidIDFormat    = errors.New("invalid ID format")
)

// Validation constants
const (
	MaxAmount            = "1000000000000000000000000000000" // 10^30 units
	MaxDocumentRefLength = 512
)

var maxAmount = decimal.RequireFromString(MaxAmount)

// ValidateAmount validates a face value, escrow or transfer amount.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	if !amount.Equal(amount.Truncate(0)) {
		return fmt.Errorf("%w: %s has a fractional part", ErrInvalidAmount, amount)
	}

	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxAmount)
	}

	return nil
}

// ValidatePrice validates a listing price.
func ValidatePrice(price decimal.Decimal) error {
	if err := ValidateAmount(price); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}
	return nil
}

// ValidateDocumentRef validates the opaque off-chain document pointer.
// The content is never interpreted; only its size is bounded.
func ValidateDocumentRef(ref string) error {
	if utf8.RuneCountInString(ref) > MaxDocumentRefLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidDocumentRef, MaxDocumentRefLength)
	}

	return nil
}

// ParseInvoiceID parses a decimal invoice id.
func ParseInvoiceID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIDFormat, s)
	}
	return id, nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
