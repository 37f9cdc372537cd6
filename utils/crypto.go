package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
)

// GenerateRandomDigits returns length random decimal digits.
func GenerateRandomDigits(length int) string {
	return randomFrom("0123456789", length)
}

func randomFrom(charset string, length int) string {
	result := make([]byte, length)
	for i := range result {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[n.Int64()]
	}
	return string(result)
}

// HashPAN returns a keyed SHA-256 fingerprint of a card number so the same
// card can be recognised without storing it.
func HashPAN(key []byte, pan string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(pan))
	return hex.EncodeToString(mac.Sum(nil))
}
