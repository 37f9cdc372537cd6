package payment

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"multigateway-api/models"
)

var (
	ErrTimeout         = errors.New("gateway timeout")
	ErrNetwork         = errors.New("gateway network error")
	ErrInvalidResponse = errors.New("invalid gateway response")
	ErrNotSupported    = errors.New("action not supported by gateway")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInvalidAmount   = errors.New("invalid amount")
)

// IsRetriable reports whether resending the same request can succeed.
func IsRetriable(err error) bool {
	return err != nil && (errors.Is(err, ErrTimeout) || errors.Is(err, ErrNetwork))
}

// ResponseError is returned when the processor answers with a non-2xx status.
type ResponseError struct {
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("gateway returned HTTP %d: %s", e.StatusCode, body)
}

// Unwrap classifies 5xx replies as network failures so they are retried.
func (e *ResponseError) Unwrap() error {
	if e.StatusCode >= 500 {
		return ErrNetwork
	}
	return ErrInvalidResponse
}

// MissingCredentialError reports an incomplete gateway configuration.
type MissingCredentialError struct {
	Gateway string
	Key     string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s: missing credential %q", e.Gateway, e.Key)
}

// Unsupported returns an ErrNotSupported error naming the gateway and verb.
func Unsupported(gateway string, action models.Action) error {
	return fmt.Errorf("%s %s: %w", gateway, action, ErrNotSupported)
}

// InvalidRequest wraps ErrInvalidRequest with a reason.
func InvalidRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// classifyTransportError maps client.Do failures onto ErrTimeout or ErrNetwork.
func classifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
