package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransferKind string

const (
	TransferKindDeposit        TransferKind = "deposit"
	TransferKindEscrowDeposit  TransferKind = "escrow_deposit"
	TransferKindSellerPayout   TransferKind = "seller_payout"
	TransferKindPlatformFee    TransferKind = "platform_fee"
	TransferKindHolderPayout   TransferKind = "holder_payout"
	TransferKindEscrowRefund   TransferKind = "escrow_refund"
	TransferKindDirectTransfer TransferKind = "transfer"
)

// Transfer is one settlement currency movement. Deposits come from ZeroAddress.
type Transfer struct {
	ID        string
	From      Address
	To        Address
	Amount    decimal.Decimal
	Kind      TransferKind
	InvoiceID *uint64
	CreatedAt time.Time
}

// Validate validates transfer request.
func (t *Transfer) Validate() error {
	if t.From == t.To {
		return ErrSameAccount
	}
	return ValidateAmount(t.Amount)
}
