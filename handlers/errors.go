package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"multigateway-api/database"
	"multigateway-api/services/billing"
	"multigateway-api/services/idempotency"
	"multigateway-api/services/payment"
	"multigateway-api/services/payment/registry"
	"multigateway-api/utils"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, payment.ErrInvalidRequest),
		errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, idempotency.ErrEmptyKey):
		return http.StatusBadRequest
	case errors.Is(err, payment.ErrNotSupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, idempotency.ErrInProgress):
		return http.StatusConflict
	case errors.Is(err, database.ErrNotFound),
		errors.Is(err, registry.ErrGatewayNotRegistered):
		return http.StatusNotFound
	case errors.Is(err, billing.ErrQueueUnavailable):
		return http.StatusServiceUnavailable
	case payment.IsRetriable(err), errors.Is(err, payment.ErrInvalidResponse):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes err as an error envelope. Internal errors are logged
// and replaced with a generic message.
func respondError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		message = "Internal server error"
	}
	utils.SendErrorResponse(w, status, message)
}
