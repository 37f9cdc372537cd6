package payment

import (
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"multigateway-api/utils"
)

// GenerateOrderID returns a fresh 20-character alphanumeric reference,
// prefixed when prefix is set. Processors cap reference fields at 20 chars.
func GenerateOrderID(prefix string) string {
	id := prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	if len(id) > 20 {
		id = id[:20]
	}
	return id
}

// DeriveOrderID maps an idempotency key onto a stable numeric order id of
// n digits. Replaying a request with the same key therefore reaches the
// processor with the same order id, where duplicate detection applies.
func DeriveOrderID(key string, n int) string {
	if n <= 0 {
		return ""
	}
	sum := sha256.Sum256([]byte(key))
	var b strings.Builder
	for b.Len() < n {
		for i := 0; i+8 <= len(sum) && b.Len() < n; i += 8 {
			v := binary.BigEndian.Uint64(sum[i : i+8])
			for j := 0; j < 19 && b.Len() < n; j++ {
				b.WriteByte(byte('0' + v%10))
				v /= 10
			}
		}
		sum = sha256.Sum256(sum[:])
	}
	return b.String()
}

// NumericOrderID returns orderID when it is already all digits and at most
// n long, otherwise a derived or random numeric id of n digits.
func NumericOrderID(orderID string, n int) string {
	if orderID == "" {
		return utils.GenerateRandomDigits(n)
	}
	if len(orderID) <= n && strings.Trim(orderID, "0123456789") == "" {
		return orderID
	}
	return DeriveOrderID(orderID, n)
}

// Truncate shortens s to at most n bytes without splitting a UTF-8 rune.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 0 {
		return ""
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
