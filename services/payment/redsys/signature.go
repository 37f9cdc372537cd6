package redsys

import (
	"crypto/cipher"
	"crypto/des"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

const SignatureVersion = "HMAC_SHA256_V1"

// Signer produces and checks HMAC_SHA256_V1 signatures. The HMAC key for each
// message is the order number encrypted with the merchant secret.
type Signer struct {
	block cipher.Block
}

// NewSigner takes the base64 merchant secret issued by the bank.
func NewSigner(secret string) (*Signer, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("decoding secret key: %w", err)
	}
	block, err := des.NewTripleDESCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secret key: %w", err)
	}
	return &Signer{block: block}, nil
}

// OrderKey encrypts the order with 3DES-CBC using a zero IV and zero padding.
func (s *Signer) OrderKey(order string) []byte {
	size := s.block.BlockSize()
	padded := []byte(order)
	if rem := len(padded) % size; rem != 0 || len(padded) == 0 {
		padded = append(padded, make([]byte, size-rem)...)
	}
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(s.block, make([]byte, size)).CryptBlocks(out, padded)
	return out
}

// Sign returns base64(HMAC-SHA256(OrderKey(order), merchantParameters)).
func (s *Signer) Sign(order, merchantParameters string) string {
	mac := hmac.New(sha256.New, s.OrderKey(order))
	mac.Write([]byte(merchantParameters))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks a reply signature. Replies may use the URL-safe alphabet.
func (s *Signer) Verify(order, merchantParameters, signature string) bool {
	expected := normalizeSignature(s.Sign(order, merchantParameters))
	return hmac.Equal([]byte(expected), []byte(normalizeSignature(signature)))
}

func normalizeSignature(sig string) string {
	sig = strings.NewReplacer("-", "+", "_", "/").Replace(sig)
	return strings.TrimRight(sig, "=")
}

func decodeParameters(encoded string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawURLEncoding, base64.RawStdEncoding} {
		if out, err := enc.DecodeString(encoded); err == nil {
			return out, nil
		}
	}
	return nil, fmt.Errorf("merchant parameters are not base64")
}
