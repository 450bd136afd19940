package postgres

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/domain"
)

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(d.String())

	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}

	return decimal.NewFromBigInt(new(big.Int).Set(n.Int), n.Exp)
}

func addressBytes(a domain.Address) []byte {
	return a.Bytes()
}

func addressList(addrs []domain.Address) [][]byte {
	out := make([][]byte, len(addrs))
	for i, a := range addrs {
		out[i] = a.Bytes()
	}
	return out
}

func bytesToAddress(b []byte) domain.Address {
	return common.BytesToAddress(b)
}

func optionalAddress(b []byte) *domain.Address {
	if b == nil {
		return nil
	}
	a := common.BytesToAddress(b)
	return &a
}

func optionalAddressBytes(a *domain.Address) []byte {
	if a == nil {
		return nil
	}
	return a.Bytes()
}

func optionalInvoiceID(id *uint64) *int64 {
	if id == nil {
		return nil
	}
	v := int64(*id)
	return &v
}
