package utils

import (
	"strings"
)

// MaskAddress keeps the head and tail of a payout address for display,
// e.g. 0x52908400...e2d2b10c
func MaskAddress(address string) string {
	if len(address) <= 16 {
		return address
	}
	return address[:10] + "..." + address[len(address)-8:]
}

// IsValidEmail checks if an email address is valid
func IsValidEmail(email string) bool {
	// Simple validation - contains @ and at least one dot after @
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" {
		return false
	}

	domainParts := strings.Split(parts[1], ".")
	return len(domainParts) >= 2 && domainParts[0] != "" && domainParts[len(domainParts)-1] != ""
}
