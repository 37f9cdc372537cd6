package payment

import (
	"context"

	"multigateway-api/models"
	"multigateway-api/types"
)

// Step is one call inside a MultiResponse.
type Step func(ctx context.Context) (*models.Response, error)

// MultiResponse runs dependent gateway calls in order. The first response is
// the primary one and decides the overall outcome.
type MultiResponse struct {
	Responses []*models.Response
}

// Process runs step unless an earlier step already failed. When ignoreResult
// is set the step's outcome is recorded but never stops the sequence and
// never changes the result.
func (m *MultiResponse) Process(ctx context.Context, step Step, ignoreResult bool) error {
	if !m.Success() {
		return nil
	}
	resp, err := step(ctx)
	if err != nil {
		if ignoreResult {
			return nil
		}
		return err
	}
	if ignoreResult {
		if resp != nil {
			m.Responses = append(m.Responses, ignored(resp))
		}
		return nil
	}
	m.Responses = append(m.Responses, resp)
	return nil
}

// Success reports the outcome so far. A sequence with no responses is successful.
func (m *MultiResponse) Success() bool {
	for _, r := range m.Responses {
		if r != nil && !r.Success && !isIgnored(r) {
			return false
		}
	}
	return true
}

// Primary returns the first response.
func (m *MultiResponse) Primary() *models.Response {
	if len(m.Responses) == 0 {
		return nil
	}
	return m.Responses[0]
}

// Result returns a copy of the primary response with Success reflecting
// the whole sequence.
func (m *MultiResponse) Result() *models.Response {
	primary := m.Primary()
	if primary == nil {
		return &models.Response{Success: true}
	}
	out := *primary
	out.Success = m.Success()
	if !out.Success {
		for _, r := range m.Responses {
			if r != nil && !r.Success && !isIgnored(r) {
				out.Message = r.Message
				out.ErrorCode = r.ErrorCode
				break
			}
		}
	}
	return &out
}

const ignoredParam = "_ignored"

func ignored(r *models.Response) *models.Response {
	out := *r
	params := make(map[string]string, len(r.Params)+1)
	for k, v := range r.Params {
		params[k] = v
	}
	params[ignoredParam] = "true"
	out.Params = params
	return &out
}

func isIgnored(r *models.Response) bool {
	return r.Param(ignoredParam) == "true"
}

// VerifyByAuthorizeVoid authorizes amount and voids it, ignoring the void
// outcome. Adapters without a native verification call use it.
func VerifyByAuthorizeVoid(ctx context.Context, g Gateway, amount int64, card *models.CreditCard, opts *types.TransactionOptions) (*models.Response, error) {
	var m MultiResponse
	err := m.Process(ctx, func(ctx context.Context) (*models.Response, error) {
		return g.Authorize(ctx, amount, card, opts)
	}, false)
	if err != nil {
		return nil, err
	}
	auth := m.Primary()
	if auth != nil && auth.Success {
		_ = m.Process(ctx, func(ctx context.Context) (*models.Response, error) {
			return g.Void(ctx, auth.Authorization, opts)
		}, true)
	}
	return m.Result(), nil
}
