// Package bogus is an in-process gateway for development and tests. Card
// numbers ending in 1 succeed, ending in 2 decline and ending in 3 fail
// with a network error. Follow-up calls fail for the authorizations "fail"
// and "error".
package bogus

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"multigateway-api/models"
	"multigateway-api/services/payment"
	"multigateway-api/types"
	"multigateway-api/utils"
)

const (
	Name = "bogus"

	SuccessMessage = "Bogus Gateway: Forced success"
	FailureMessage = "Bogus Gateway: Forced failure"
	NumberError    = "Bogus Gateway: Use CreditCard number ending in 1 for success, 2 for decline and 3 for network error"

	// Authorization returned by successful calls.
	Authorization = "53433"
)

type Gateway struct {
	test   bool
	logger *zap.Logger
}

var _ payment.Gateway = (*Gateway)(nil)

func New(cfg payment.Config) (*Gateway, error) {
	return &Gateway{
		test:   cfg.Test(),
		logger: cfg.LoggerOrNop().With(zap.String("gateway", Name)),
	}, nil
}

func (g *Gateway) Name() string { return Name }

func (g *Gateway) Purchase(ctx context.Context, money int64, source models.PaymentSource, opts *types.TransactionOptions) (*models.Response, error) {
	return g.charge(ctx, money, source, opts)
}

func (g *Gateway) Authorize(ctx context.Context, money int64, source models.PaymentSource, opts *types.TransactionOptions) (*models.Response, error) {
	return g.charge(ctx, money, source, opts)
}

func (g *Gateway) Capture(ctx context.Context, money int64, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	if err := checkAmount(money, opts); err != nil {
		return nil, err
	}
	return g.followUp(ctx, authorization)
}

func (g *Gateway) Refund(ctx context.Context, money int64, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	if err := checkAmount(money, opts); err != nil {
		return nil, err
	}
	return g.followUp(ctx, authorization)
}

func (g *Gateway) Void(ctx context.Context, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	return g.followUp(ctx, authorization)
}

func (g *Gateway) Store(ctx context.Context, card *models.CreditCard, opts *types.TransactionOptions) (*models.Response, error) {
	return g.byNumber(ctx, card.Number, func(resp *models.Response) {
		resp.Authorization = "tok_" + card.LastDigits()
		resp.Params = map[string]string{"billingid": "1"}
	})
}

func (g *Gateway) Unstore(ctx context.Context, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	return g.followUp(ctx, authorization)
}

func (g *Gateway) Verify(ctx context.Context, card *models.CreditCard, opts *types.TransactionOptions) (*models.Response, error) {
	return payment.VerifyByAuthorizeVoid(ctx, g, 100, card, opts)
}

func (g *Gateway) charge(ctx context.Context, money int64, source models.PaymentSource, opts *types.TransactionOptions) (*models.Response, error) {
	if err := checkAmount(money, opts); err != nil {
		return nil, err
	}
	switch src := source.(type) {
	case *models.CreditCard:
		return g.byNumber(ctx, src.Number, nil)
	case models.StoredToken:
		return g.byNumber(ctx, string(src), nil)
	default:
		return nil, payment.InvalidRequest("unsupported payment source %T", source)
	}
}

func (g *Gateway) byNumber(ctx context.Context, number string, decorate func(*models.Response)) (*models.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch {
	case strings.HasSuffix(number, "1"):
		resp := g.success()
		if decorate != nil {
			decorate(resp)
		}
		return resp, nil
	case strings.HasSuffix(number, "2"):
		return g.failure(), nil
	case strings.HasSuffix(number, "3"):
		return nil, fmt.Errorf("%w: bogus gateway forced network failure", payment.ErrNetwork)
	}
	return nil, payment.InvalidRequest(NumberError)
}

func (g *Gateway) followUp(ctx context.Context, authorization string) (*models.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch authorization {
	case "":
		return nil, payment.InvalidRequest("authorization is required")
	case "fail":
		return g.failure(), nil
	case "error":
		return nil, fmt.Errorf("%w: bogus gateway forced network failure", payment.ErrNetwork)
	}
	return g.success(), nil
}

func (g *Gateway) success() *models.Response {
	return &models.Response{
		Success:       true,
		Message:       SuccessMessage,
		Authorization: Authorization,
		AVSResult:     models.NewAVSResult("D"),
		CVVResult:     models.NewCVVResult("M"),
		Test:          g.test,
	}
}

func (g *Gateway) failure() *models.Response {
	return &models.Response{
		Success:   false,
		Message:   FailureMessage,
		ErrorCode: models.ErrorCardDeclined,
		AVSResult: models.NewAVSResult("N"),
		CVVResult: models.NewCVVResult("N"),
		Test:      g.test,
	}
}

func checkAmount(money int64, opts *types.TransactionOptions) error {
	if money < 0 {
		return payment.ErrInvalidAmount
	}
	if _, err := utils.FormatAmount(money, opts.CurrencyOr("USD")); err != nil {
		return fmt.Errorf("%w: %v", payment.ErrInvalidAmount, err)
	}
	return nil
}
