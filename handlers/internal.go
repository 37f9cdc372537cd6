package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"multigateway-api/models"
	"multigateway-api/services/auth"
	"multigateway-api/utils"
)

const (
	DefaultTokenDuration = 24 * time.Hour
	MaxTokenDuration     = 90 * 24 * time.Hour
)

// InternalHandler serves endpoints for trusted back-office systems.
type InternalHandler struct {
	jwtService     *auth.JWTService
	internalSecret string
	logger         *zap.Logger
}

func NewInternalHandler(jwtService *auth.JWTService, internalSecret string, logger *zap.Logger) *InternalHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InternalHandler{
		jwtService:     jwtService,
		internalSecret: internalSecret,
		logger:         logger.With(zap.String("component", "internal_handler")),
	}
}

// RequireInternalSecret checks the X-Internal-Secret header.
func (h *InternalHandler) RequireInternalSecret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secret := r.Header.Get("X-Internal-Secret")
		if h.internalSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.internalSecret)) != 1 {
			h.logger.Warn("invalid or missing internal secret", zap.String("remote_addr", r.RemoteAddr))
			utils.SendErrorResponse(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	}
}

// IssueToken creates an API token for a merchant.
func (h *InternalHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MerchantID string   `json:"merchant_id"`
		Gateways   []string `json:"gateways"`
		TTLSeconds int64    `json:"ttl_seconds"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.MerchantID == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "merchant_id is required")
		return
	}

	duration := DefaultTokenDuration
	if req.TTLSeconds > 0 {
		duration = time.Duration(req.TTLSeconds) * time.Second
	}
	if duration > MaxTokenDuration {
		duration = MaxTokenDuration
	}

	token, err := h.jwtService.GenerateToken(models.Merchant{ID: req.MerchantID, Gateways: req.Gateways}, duration)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	h.logger.Info("issued merchant token", zap.String("merchant", req.MerchantID), zap.Duration("ttl", duration))
	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Token generated successfully",
		Data:    token,
	})
}
