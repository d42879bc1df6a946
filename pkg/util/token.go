// Package util contains any functions used across the application that don't match
// any other package
package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// GenerateToken returns n random bytes hex encoded
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)

	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// GenerateOTP returns a uniformly random decimal code with exactly digits
// digits. The first digit is never zero.
func GenerateOTP(digits int) (string, error) {
	if digits < 1 || digits > 18 {
		return "", fmt.Errorf("unsupported otp length %d", digits)
	}

	lo := int64(1)
	for range digits - 1 {
		lo *= 10
	}

	n, err := rand.Int(rand.Reader, big.NewInt(lo*10-lo))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%d", n.Int64()+lo), nil
}
