package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// PINHashCost defines the cost for bcrypt PIN hashing. A 4-digit PIN has a
// tiny keyspace, so the cost and the attempt limiter carry the protection.
const PINHashCost = 12

// IsValidPIN reports whether pin is exactly four ASCII digits
func IsValidPIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}

// HashPIN creates a salted bcrypt hash of the PIN
func HashPIN(pin string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(pin), PINHashCost)
	return string(bytes), err
}

// CheckPINHash compares a PIN with a hash
func CheckPINHash(pin, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	return err == nil
}
