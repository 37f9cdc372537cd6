package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"multigateway-api/models"
	"multigateway-api/services/auth"
	"multigateway-api/utils"
)

type contextKey string

const MerchantContextKey contextKey = "merchant"

// AuthMiddleware requires a valid bearer token and stores the merchant it
// identifies in the request context.
func AuthMiddleware(jwtService *auth.JWTService, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("missing authorization header", zap.String("remote_addr", r.RemoteAddr))
				utils.SendErrorResponse(w, http.StatusUnauthorized, "Missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				utils.SendErrorResponse(w, http.StatusUnauthorized, "Invalid authorization header format")
				return
			}

			merchant, err := jwtService.ValidateToken(parts[1])
			if err != nil {
				logger.Info("token validation failed",
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err))

				message := "Authentication failed"
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					message = "Token expired"
				case errors.Is(err, auth.ErrInvalidToken):
					message = "Invalid token"
				}
				utils.SendErrorResponse(w, http.StatusUnauthorized, message)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithMerchant(r.Context(), merchant)))
		})
	}
}

// WithMerchant returns a copy of ctx carrying merchant.
func WithMerchant(ctx context.Context, merchant *models.Merchant) context.Context {
	return context.WithValue(ctx, MerchantContextKey, merchant)
}

// GetMerchant returns the authenticated merchant, or nil when the request
// was not authenticated.
func GetMerchant(ctx context.Context) *models.Merchant {
	merchant, ok := ctx.Value(MerchantContextKey).(*models.Merchant)
	if !ok {
		return nil
	}
	return merchant
}

// GatewayAllowed reports whether the request may use gateway. Requests that
// carry no merchant are allowed; that only happens when auth is disabled.
func GatewayAllowed(ctx context.Context, gateway string) bool {
	merchant := GetMerchant(ctx)
	if merchant == nil {
		return true
	}
	return merchant.AllowsGateway(gateway)
}
