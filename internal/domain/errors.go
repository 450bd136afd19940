package domain

import "errors"

var (
	// Invoice errors
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrInvalidAmount   = errors.New("amount must be a positive whole number")
	ErrInvalidDueDate  = errors.New("due date must be in the future")
	ErrNotOwner        = errors.New("caller does not hold the invoice")
	ErrInvalidState    = errors.New("operation not allowed in current invoice state")
	ErrTerminalState   = errors.New("invoice is settled or defaulted")

	// Listing errors
	ErrInvalidPrice         = errors.New("price must be a positive whole number")
	ErrListingNotFound      = errors.New("listing not found")
	ErrListingInactive      = errors.New("listing is not active")
	ErrAlreadyListed        = errors.New("invoice already has an active listing")
	ErrListingNotNegotiable = errors.New("listing price is not negotiable")

	// Access errors
	ErrUnauthorized       = errors.New("caller is not authorized for this operation")
	ErrComplianceRejected = errors.New("participant is not compliance verified")
	ErrInvalidAddress     = errors.New("invalid address")

	// Compliance errors
	ErrComplianceEntryNotFound = errors.New("compliance entry not found")
	ErrInvalidExpiry           = errors.New("compliance expiry must be in the future")

	// Funds errors
	ErrInsufficientFunds     = errors.New("insufficient balance or allowance")
	ErrInsufficientRepayment = errors.New("repayment is less than face value")
	ErrEscrowNotFound        = errors.New("no pending escrow for invoice")
	ErrInvalidFeeRate        = errors.New("fee rate must be in [0, 1)")
	ErrSameAccount           = errors.New("cannot transfer to same address")
	ErrPaymentRejected       = errors.New("payment receiver rejected credit")

	// Concurrency errors
	ErrReentrantCall = errors.New("reentrant call for invoice in progress")
)
