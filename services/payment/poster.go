package payment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxResponseBytes = 1 << 20

// Poster sends request bodies to a processor endpoint. It never logs
// request or response bodies since they may carry card data.
type Poster struct {
	gateway string
	client  *http.Client
	logger  *zap.Logger
}

func NewPoster(gateway string, client *http.Client, logger *zap.Logger) *Poster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poster{
		gateway: gateway,
		client:  client,
		logger:  logger,
	}
}

// Post sends body to endpoint and returns the reply with any UTF-8 BOM removed.
// Transport failures wrap ErrTimeout or ErrNetwork; non-2xx replies are
// returned as *ResponseError.
func (p *Poster) Post(ctx context.Context, endpoint string, body []byte, headers map[string]string) ([]byte, error) {
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("gateway request failed",
			zap.String("gateway", p.gateway),
			zap.String("endpoint", endpoint),
			zap.Duration("elapsed", time.Since(startTime)),
			zap.Error(err),
		)
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(fmt.Errorf("reading response body: %w", err))
	}

	p.logger.Debug("gateway response received",
		zap.String("gateway", p.gateway),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(startTime)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ResponseError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	return StripBOM(raw), nil
}

// StripBOM removes a leading UTF-8 byte order mark.
func StripBOM(b []byte) []byte {
	return []byte(strings.TrimPrefix(string(b), "\ufeff"))
}
