package util

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

// GenerateVerificationCode returns a 6-digit code uniformly distributed over
// [100000, 999999] from a cryptographically secure source.
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}
