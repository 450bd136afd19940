package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address identifies a participant, an operator component or a system account.
type Address = common.Address

// ZeroAddress is the counterparty of settlement currency deposits.
var ZeroAddress = Address{}

// ParseAddress parses a hex encoded address. The 0x prefix is optional.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	addr := common.HexToAddress(s)
	if addr == ZeroAddress {
		return Address{}, fmt.Errorf("%w: zero address", ErrInvalidAddress)
	}

	return addr, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}
