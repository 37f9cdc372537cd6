// Package redsys implements payment.Gateway against the Redsys REST API
// (trataPeticionREST). Requests are signed with HMAC_SHA256_V1.
package redsys

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"multigateway-api/models"
	"multigateway-api/services/payment"
	"multigateway-api/types"
	"multigateway-api/utils"
)

const (
	Name = "redsys"

	SandboxEndpoint    = "https://sis-t.redsys.es:25443/sis/rest/trataPeticionREST"
	ProductionEndpoint = "https://sis.redsys.es/sis/rest/trataPeticionREST"

	defaultCurrency = "EUR"
	identifierNew   = "REQUIRED"
)

// Transaction types.
const (
	txPurchase  = "0"
	txAuthorize = "1"
	txCapture   = "2"
	txRefund    = "3"
	txVoid      = "9"
)

var cofTypes = map[string]string{
	types.ReasonRecurring:   "R",
	types.ReasonInstallment: "I",
	types.ReasonUnscheduled: "C",
}

var responseErrors = map[int]string{
	101: models.ErrorExpiredCard,
	102: models.ErrorCardDeclined,
	104: models.ErrorCardDeclined,
	116: models.ErrorCardDeclined,
	118: models.ErrorInvalidNumber,
	129: models.ErrorIncorrectCVC,
	180: models.ErrorCardDeclined,
	184: models.ErrorCardDeclined,
	190: models.ErrorCardDeclined,
	191: models.ErrorInvalidExpiryDate,
	202: models.ErrorPickupCard,
	904: models.ErrorConfigError,
	909: models.ErrorProcessingError,
	913: models.ErrorProcessingError,
}

type Gateway struct {
	merchantCode string
	terminal     string
	signer       *Signer
	endpoint     string
	test         bool
	poster       *payment.Poster
	logger       *zap.Logger
	randomDigits func(n int) string
}

var _ payment.Gateway = (*Gateway)(nil)

// New requires the merchant_code, terminal and secret_key credentials.
func New(cfg payment.Config) (*Gateway, error) {
	if err := cfg.RequireCredentials(Name, "merchant_code", "terminal", "secret_key"); err != nil {
		return nil, err
	}
	signer, err := NewSigner(cfg.Credential("secret_key"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", Name, err)
	}
	logger := cfg.LoggerOrNop().With(zap.String("gateway", Name))
	return &Gateway{
		merchantCode: cfg.Credential("merchant_code"),
		terminal:     cfg.Credential("terminal"),
		signer:       signer,
		endpoint:     cfg.EndpointFor(SandboxEndpoint, ProductionEndpoint),
		test:         cfg.Test(),
		poster:       payment.NewPoster(Name, cfg.NewHTTPClient(), logger),
		logger:       logger,
		randomDigits: utils.GenerateRandomDigits,
	}, nil
}

func (g *Gateway) Name() string { return Name }

func (g *Gateway) Purchase(ctx context.Context, money int64, source models.PaymentSource, opts *types.TransactionOptions) (*models.Response, error) {
	return g.charge(ctx, txPurchase, money, source, opts, false)
}

func (g *Gateway) Authorize(ctx context.Context, money int64, source models.PaymentSource, opts *types.TransactionOptions) (*models.Response, error) {
	return g.charge(ctx, txAuthorize, money, source, opts, false)
}

func (g *Gateway) Capture(ctx context.Context, money int64, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	ref, err := parseAuthorization(authorization)
	if err != nil {
		return nil, err
	}
	return g.followUp(ctx, txCapture, money, ref, opts)
}

func (g *Gateway) Refund(ctx context.Context, money int64, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	ref, err := parseAuthorization(authorization)
	if err != nil {
		return nil, err
	}
	return g.followUp(ctx, txRefund, money, ref, opts)
}

// Void cancels the original operation for its full amount.
func (g *Gateway) Void(ctx context.Context, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	ref, err := parseAuthorization(authorization)
	if err != nil {
		return nil, err
	}
	return g.followUp(ctx, txVoid, ref.amount, ref, opts)
}

// Store runs a zero amount authorization that asks Redsys to tokenize the
// card. The returned Ds_Merchant_Identifier is the authorization.
func (g *Gateway) Store(ctx context.Context, card *models.CreditCard, opts *types.TransactionOptions) (*models.Response, error) {
	resp, err := g.charge(ctx, txPurchase, 0, card, opts, true)
	if err != nil {
		return nil, err
	}
	if resp.Success {
		resp.Authorization = resp.Param("Ds_Merchant_Identifier")
	}
	return resp, nil
}

func (g *Gateway) Unstore(ctx context.Context, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	return nil, payment.Unsupported(Name, models.ActionUnstore)
}

// Verify authorizes 1.00 and cancels it.
func (g *Gateway) Verify(ctx context.Context, card *models.CreditCard, opts *types.TransactionOptions) (*models.Response, error) {
	return payment.VerifyByAuthorizeVoid(ctx, g, 100, card, opts)
}

func (g *Gateway) charge(ctx context.Context, txType string, money int64, source models.PaymentSource, opts *types.TransactionOptions, store bool) (*models.Response, error) {
	opts = opts.OrEmpty()
	params, err := g.baseParameters(txType, money, g.cleanOrderID(opts.OrderID), opts)
	if err != nil {
		return nil, err
	}
	params.ProductDescription = payment.Truncate(opts.Description, 125)

	switch src := source.(type) {
	case *models.CreditCard:
		params.Pan = models.NormalizeNumber(src.Number)
		params.ExpiryDate = src.ExpiryYYMM()
		params.CVV2 = src.VerificationValue
		params.Titular = payment.Truncate(src.Name(), 60)
	case models.StoredToken:
		if src == "" {
			return nil, payment.InvalidRequest("stored token is empty")
		}
		params.Identifier = string(src)
		params.DirectPayment = "true"
	default:
		return nil, payment.InvalidRequest("unsupported payment source %T", source)
	}
	if store {
		params.Identifier = identifierNew
	}

	addStoredCredential(params, opts.StoredCredential)
	addThreeDSecure(params, opts.ThreeDSecure)

	return g.commit(ctx, params)
}

func (g *Gateway) followUp(ctx context.Context, txType string, money int64, ref authorizationRef, opts *types.TransactionOptions) (*models.Response, error) {
	params, err := g.baseParameters(txType, money, ref.order, opts.OrEmpty())
	if err != nil {
		return nil, err
	}
	return g.commit(ctx, params)
}

func (g *Gateway) baseParameters(txType string, money int64, order string, opts *types.TransactionOptions) (*MerchantParameters, error) {
	if money < 0 {
		return nil, payment.ErrInvalidAmount
	}
	currency := opts.CurrencyOr(defaultCurrency)
	numeric, ok := utils.CurrencyNumeric(currency)
	if !ok {
		return nil, payment.InvalidRequest("unsupported currency %q", currency)
	}
	return &MerchantParameters{
		Amount:          strconv.FormatInt(money, 10),
		Order:           order,
		MerchantCode:    g.merchantCode,
		Currency:        numeric,
		TransactionType: txType,
		Terminal:        g.terminal,
	}, nil
}

func (g *Gateway) commit(ctx context.Context, params *MerchantParameters) (*models.Response, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding merchant parameters: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	request := signedRequest{
		SignatureVersion:   SignatureVersion,
		MerchantParameters: encoded,
		Signature:          g.signer.Sign(params.Order, encoded),
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	g.logger.Debug("sending rest request",
		zap.String("order", params.Order),
		zap.String("transaction_type", params.TransactionType),
	)

	body, err := g.poster.Post(ctx, g.endpoint, payload, map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return nil, err
	}

	var reply signedReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("%w: decoding reply: %v", payment.ErrInvalidResponse, err)
	}
	if reply.ErrorCode != "" {
		return g.errorResponse(params, reply.ErrorCode), nil
	}
	return g.parseReply(params, &reply)
}

func (g *Gateway) parseReply(params *MerchantParameters, reply *signedReply) (*models.Response, error) {
	decoded, err := decodeParameters(reply.MerchantParameters)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidResponse, err)
	}
	var values map[string]interface{}
	if err := json.Unmarshal(decoded, &values); err != nil {
		return nil, fmt.Errorf("%w: decoding merchant parameters: %v", payment.ErrInvalidResponse, err)
	}
	fields := make(map[string]string, len(values))
	for k, v := range values {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case nil:
		default:
			b, _ := json.Marshal(val)
			fields[k] = string(b)
		}
	}

	if !g.signer.Verify(fields["Ds_Order"], reply.MerchantParameters, reply.Signature) {
		g.logger.Warn("reply signature mismatch", zap.String("order", fields["Ds_Order"]))
		return nil, fmt.Errorf("%w: reply signature mismatch", payment.ErrInvalidResponse)
	}

	code, err := strconv.Atoi(strings.TrimSpace(fields["Ds_Response"]))
	if err != nil {
		return nil, fmt.Errorf("%w: Ds_Response %q", payment.ErrInvalidResponse, fields["Ds_Response"])
	}

	resp := &models.Response{
		Success:              approved(code),
		Message:              responseMessage(code),
		NetworkTransactionID: fields["Ds_Merchant_Cof_Txnid"],
		Test:                 g.test,
		Params:               fields,
	}
	if resp.Success {
		resp.Authorization = formatAuthorization(fields["Ds_Order"], params.Amount, params.TransactionType)
	} else {
		resp.ErrorCode = responseErrors[code]
		if resp.ErrorCode == "" {
			resp.ErrorCode = models.ErrorCardDeclined
			if code >= 900 {
				resp.ErrorCode = models.ErrorProcessingError
			}
		}
	}
	return resp, nil
}

func (g *Gateway) errorResponse(params *MerchantParameters, sisCode string) *models.Response {
	errorCode := models.ErrorProcessingError
	switch sisCode {
	case "SIS0042", "SIS0026", "SIS0027":
		errorCode = models.ErrorConfigError
	case "SIS0018", "SIS0019":
		errorCode = models.ErrorInvalidAmount
	case "SIS0071":
		errorCode = models.ErrorExpiredCard
	case "SIS0093", "SIS0094":
		errorCode = models.ErrorInvalidNumber
	}
	return &models.Response{
		Success:   false,
		Message:   "Redsys error " + sisCode,
		ErrorCode: errorCode,
		Test:      g.test,
		Params: map[string]string{
			"errorCode": sisCode,
			"Ds_Order":  params.Order,
		},
	}
}

// approved reports success for 0000-0099, approved cancellations (0400) and
// approved refunds or confirmations (0900).
func approved(code int) bool {
	return (code >= 0 && code < 100) || code == 400 || code == 900
}

func responseMessage(code int) string {
	switch {
	case code >= 0 && code < 100:
		return "Transaction Approved"
	case code == 400:
		return "Cancellation Accepted"
	case code == 900:
		return "Refund / Confirmation approved"
	}
	return fmt.Sprintf("Transaction Declined (%04d)", code)
}

// cleanOrderID returns an order that starts with four digits and holds at
// most twelve alphanumerics.
func (g *Gateway) cleanOrderID(orderID string) string {
	cleansed := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return r
		}
		return -1
	}, orderID)
	if cleansed == "" {
		return g.randomDigits(12)
	}
	if len(cleansed) >= 4 && strings.Trim(cleansed[:4], "0123456789") == "" {
		return payment.Truncate(cleansed, 12)
	}
	return g.randomDigits(4) + payment.Truncate(cleansed, 8)
}

func addStoredCredential(params *MerchantParameters, sc *types.StoredCredential) {
	if sc == nil {
		return
	}
	if sc.InitialTransaction {
		params.CofIni = "S"
	} else {
		params.CofIni = "N"
		params.CofTid = sc.NetworkTransactionID
	}
	params.CofType = cofTypes[sc.ReasonType]
	if params.CofType == "" {
		params.CofType = "C"
	}
	if sc.MerchantInitiated() && sc.Subsequent() {
		params.Exception = "MIT"
	}
}

func addThreeDSecure(params *MerchantParameters, tds *types.ThreeDSecure) {
	if tds == nil {
		return
	}
	if tds.IsV2() {
		params.EMV3DS = &emv3DS{
			ProtocolVersion:     tds.Version,
			AuthenticacionValue: tds.CAVV,
			DSTransID:           tds.DSTransactionID,
			ECI:                 tds.ECI,
		}
		return
	}
	params.MPIExternal = &mpiExternal{TXID: tds.XID, CAVV: tds.CAVV, ECI: tds.ECI}
}

type authorizationRef struct {
	order  string
	amount int64
	txType string
}

func formatAuthorization(order, amount, txType string) string {
	return strings.Join([]string{order, amount, txType}, "|")
}

func parseAuthorization(authorization string) (authorizationRef, error) {
	parts := strings.Split(authorization, "|")
	if len(parts) != 3 || parts[0] == "" {
		return authorizationRef{}, payment.InvalidRequest("malformed authorization")
	}
	amount, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return authorizationRef{}, payment.InvalidRequest("malformed authorization amount")
	}
	return authorizationRef{order: parts[0], amount: amount, txType: parts[2]}, nil
}
