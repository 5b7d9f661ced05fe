package utils

import (
	"regexp"

	"github.com/ethereum/go-ethereum/common"
)

var upiPattern = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z][a-zA-Z0-9]{1,64}$`)

// IsValidCryptoAddress accepts EVM hex addresses (USDT on BEP20/ERC20)
func IsValidCryptoAddress(address string) bool {
	return common.IsHexAddress(address)
}

// NormalizeCryptoAddress returns the checksummed form of an EVM address
func NormalizeCryptoAddress(address string) string {
	return common.HexToAddress(address).Hex()
}

// IsValidUPI checks the handle@bank shape of a UPI id
func IsValidUPI(upi string) bool {
	return upiPattern.MatchString(upi)
}
