package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Digits is the length of every generated recovery code.
const Digits = 6

var codeSpace = big.NewInt(1000000) // 10^Digits

// GenerateCode draws a uniformly random 6-digit decimal code, left-padded
// with zeros. Codes are compared as strings, so "007123" and "7123" are
// distinct values and the stored code must always carry its leading zeros.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
