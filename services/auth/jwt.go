package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"multigateway-api/models"
)

const (
	DefaultTokenDuration = 24 * time.Hour
	tokenTypeAPI         = "api"
)

var (
	ErrTokenExpired  = errors.New("token expired")
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingSecret = errors.New("jwt secret is not configured")
)

// JWTService issues and validates merchant API tokens.
type JWTService struct {
	secretKey []byte
	issuer    string
	now       func() time.Time
}

// Claims carries the merchant id in Subject and an optional gateway allow-list.
type Claims struct {
	Gateways  []string `json:"gateways,omitempty"`
	TokenType string   `json:"token_type"`
	jwt.RegisteredClaims
}

func NewJWTService(secretKey, issuer string) (*JWTService, error) {
	if secretKey == "" {
		return nil, ErrMissingSecret
	}
	return &JWTService{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		now:       time.Now,
	}, nil
}

// GenerateToken signs an HS256 token for merchant.
func (j *JWTService) GenerateToken(merchant models.Merchant, duration time.Duration) (*models.TokenResponse, error) {
	if merchant.ID == "" {
		return nil, fmt.Errorf("merchant id is required")
	}
	if duration <= 0 {
		duration = DefaultTokenDuration
	}
	now := j.now()
	expiresAt := now.Add(duration)
	claims := Claims{
		Gateways:  merchant.Gateways,
		TokenType: tokenTypeAPI,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   merchant.ID,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		return nil, fmt.Errorf("error signing token: %w", err)
	}
	return &models.TokenResponse{
		Token:     signed,
		ExpiresAt: expiresAt,
		Merchant:  merchant,
	}, nil
}

// ValidateToken verifies signature, expiry and issuer and returns the merchant.
func (j *JWTService) ValidateToken(tokenString string) (*models.Merchant, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TokenType != tokenTypeAPI || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &models.Merchant{ID: claims.Subject, Gateways: claims.Gateways}, nil
}
