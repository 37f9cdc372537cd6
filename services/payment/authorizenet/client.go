// Package authorizenet implements payment.Gateway against the Authorize.Net
// JSON API, with card vaulting through Customer Information Manager profiles.
package authorizenet

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"multigateway-api/models"
	"multigateway-api/services/payment"
	"multigateway-api/types"
	"multigateway-api/utils"
)

const (
	Name = "authorize_net"

	SandboxEndpoint    = "https://apitest.authorize.net/xml/v1/request.api"
	ProductionEndpoint = "https://api.authorize.net/xml/v1/request.api"
	DuplicateWindow    = 3

	marketTypeRetail   = "2"
	deviceTypeWireless = "7"
)

const (
	txAuthCapture  = "authCaptureTransaction"
	txAuthOnly     = "authOnlyTransaction"
	txPriorCapture = "priorAuthCaptureTransaction"
	txRefund       = "refundTransaction"
	txVoid         = "voidTransaction"
)

// Response codes carried in transactionResponse.responseCode.
const (
	responseApproved = "1"
	responseDeclined = "2"
	responseError    = "3"
	responseReview   = "4"
)

var reasonCodeErrors = map[string]string{
	"2":  models.ErrorCardDeclined,
	"3":  models.ErrorCardDeclined,
	"4":  models.ErrorPickupCard,
	"6":  models.ErrorIncorrectNumber,
	"7":  models.ErrorInvalidExpiryDate,
	"8":  models.ErrorExpiredCard,
	"11": models.ErrorProcessingError,
	"27": models.ErrorIncorrectAddress,
	"37": models.ErrorInvalidNumber,
	"44": models.ErrorIncorrectCVC,
	"45": models.ErrorIncorrectZip,
	"65": models.ErrorIncorrectCVC,
	"78": models.ErrorInvalidCVC,
}

type Client struct {
	apiLoginID     string
	transactionKey string
	validationMode string
	endpoint       string
	test           bool
	poster         *payment.Poster
	logger         *zap.Logger
}

var _ payment.Gateway = (*Client)(nil)

// NewClient requires the "login" and "transaction_key" credentials. The
// optional "validation_mode" credential controls CIM card validation on Store.
func NewClient(cfg payment.Config) (*Client, error) {
	if err := cfg.RequireCredentials(Name, "login", "transaction_key"); err != nil {
		return nil, err
	}
	logger := cfg.LoggerOrNop().With(zap.String("gateway", Name))
	validationMode := cfg.Credential("validation_mode")
	if validationMode == "" {
		validationMode = "testMode"
	}
	return &Client{
		apiLoginID:     cfg.Credential("login"),
		transactionKey: cfg.Credential("transaction_key"),
		validationMode: validationMode,
		endpoint:       cfg.EndpointFor(SandboxEndpoint, ProductionEndpoint),
		test:           cfg.Test(),
		poster:         payment.NewPoster(Name, cfg.NewHTTPClient(), logger),
		logger:         logger,
	}, nil
}

func (c *Client) Name() string { return Name }

func (c *Client) getMerchantAuthentication() merchantAuthenticationType {
	return merchantAuthenticationType{
		Name:           c.apiLoginID,
		TransactionKey: c.transactionKey,
	}
}

func (c *Client) Purchase(ctx context.Context, money int64, source models.PaymentSource, opts *types.TransactionOptions) (*models.Response, error) {
	return c.sale(ctx, txAuthCapture, money, source, opts)
}

func (c *Client) Authorize(ctx context.Context, money int64, source models.PaymentSource, opts *types.TransactionOptions) (*models.Response, error) {
	return c.sale(ctx, txAuthOnly, money, source, opts)
}

func (c *Client) Capture(ctx context.Context, money int64, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	ref, err := parseAuthorization(authorization)
	if err != nil {
		return nil, err
	}
	opts = opts.OrEmpty()
	amount, err := utils.FormatAmount(money, opts.CurrencyOr("USD"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidAmount, err)
	}
	return c.createTransaction(ctx, transactionRequestType{
		TransactionType: txPriorCapture,
		Amount:          amount,
		RefTransID:      ref.transID,
	}, ref.last4)
}

// Refund sends the last four digits of the original card with a masked
// expiration, as required for refunds of settled transactions.
func (c *Client) Refund(ctx context.Context, money int64, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	ref, err := parseAuthorization(authorization)
	if err != nil {
		return nil, err
	}
	opts = opts.OrEmpty()
	amount, err := utils.FormatAmount(money, opts.CurrencyOr("USD"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidAmount, err)
	}
	return c.createTransaction(ctx, transactionRequestType{
		TransactionType: txRefund,
		Amount:          amount,
		Payment: &PaymentType{
			CreditCard: &CreditCardType{
				CardNumber:     ref.last4,
				ExpirationDate: "XXXX",
			},
		},
		RefTransID: ref.transID,
		Order:      order(opts),
	}, ref.last4)
}

func (c *Client) Void(ctx context.Context, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	ref, err := parseAuthorization(authorization)
	if err != nil {
		return nil, err
	}
	return c.createTransaction(ctx, transactionRequestType{
		TransactionType: txVoid,
		RefTransID:      ref.transID,
	}, ref.last4)
}

// Verify authorizes $0.00 on Visa and $1.00 on other brands, then voids.
func (c *Client) Verify(ctx context.Context, card *models.CreditCard, opts *types.TransactionOptions) (*models.Response, error) {
	return payment.VerifyByAuthorizeVoid(ctx, c, verifyAmount(card), card, opts)
}

func verifyAmount(card *models.CreditCard) int64 {
	if card.DetectBrand() == models.BrandVisa {
		return 0
	}
	return 100
}

func (c *Client) sale(ctx context.Context, txType string, money int64, source models.PaymentSource, opts *types.TransactionOptions) (*models.Response, error) {
	opts = opts.OrEmpty()
	amount, err := utils.FormatAmount(money, opts.CurrencyOr("USD"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidAmount, err)
	}

	txRequest := transactionRequestType{
		TransactionType: txType,
		Amount:          amount,
		CurrencyCode:    opts.Currency,
		Order:           order(opts),
		CustomerIP:      opts.IP,
		TransactionSettings: &TransactionSettingsType{
			Settings: []SettingType{{
				SettingName:  "duplicateWindow",
				SettingValue: fmt.Sprintf("%d", DuplicateWindow),
			}},
		},
	}

	var last4 string
	switch src := source.(type) {
	case *models.CreditCard:
		last4 = src.LastDigits()
		if src.CardPresent() {
			txRequest.Payment = &PaymentType{TrackData: trackData(src)}
			deviceType := opts.Metadata["device_type"]
			if deviceType == "" {
				deviceType = deviceTypeWireless
			}
			txRequest.Retail = &retailType{MarketType: marketTypeRetail, DeviceType: deviceType}
		} else {
			txRequest.Payment = &PaymentType{CreditCard: &CreditCardType{
				CardNumber:     models.NormalizeNumber(src.Number),
				ExpirationDate: src.ExpiryYYYYMM(),
				CardCode:       src.VerificationValue,
			}}
			txRequest.BillTo = address(opts.BillingAddress, src)
		}
	case models.StoredToken:
		profile, err := parseProfileToken(string(src))
		if err != nil {
			return nil, err
		}
		txRequest.Profile = profile
	default:
		return nil, payment.InvalidRequest("unsupported payment source %T", source)
	}

	if opts.Email != "" || opts.CustomerID != "" {
		txRequest.Customer = &CustomerType{Type: "individual", ID: payment.Truncate(opts.CustomerID, 20), Email: opts.Email}
	}
	if txRequest.Profile == nil {
		txRequest.ShipTo = address(opts.ShippingAddress, nil)
	}
	if tds := opts.ThreeDSecure; tds != nil && tds.CAVV != "" {
		txRequest.CardholderAuthentication = &cardholderAuthenticationType{
			AuthenticationIndicator:       tds.ECI,
			CardholderAuthenticationValue: tds.CAVV,
		}
	}
	txRequest.ProcessingOptions, txRequest.SubsequentAuthInformation = storedCredential(opts)

	return c.createTransaction(ctx, txRequest, last4)
}

func (c *Client) createTransaction(ctx context.Context, txRequest transactionRequestType, last4 string) (*models.Response, error) {
	wrapper := createTransactionRequestWrapper{
		CreateTransactionRequest: createTransactionRequest{
			MerchantAuthentication: c.getMerchantAuthentication(),
			TransactionRequest:     txRequest,
		},
	}
	if txRequest.Order != nil {
		wrapper.CreateTransactionRequest.RefID = txRequest.Order.InvoiceNumber
	}

	var response createTransactionResponse
	if err := c.post(ctx, wrapper, &response); err != nil {
		return nil, err
	}
	return c.parseTransaction(txRequest.TransactionType, last4, &response), nil
}

func (c *Client) post(ctx context.Context, request interface{}, out interface{}) error {
	jsonPayload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("error marshaling request: %w", err)
	}
	body, err := c.poster.Post(ctx, c.endpoint, jsonPayload, map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", payment.ErrInvalidResponse, err)
	}
	return nil
}

func (c *Client) parseTransaction(txType, last4 string, response *createTransactionResponse) *models.Response {
	tr := response.TransactionResponse
	if tr.AccountNumber != "" && len(tr.AccountNumber) >= 4 {
		last4 = tr.AccountNumber[len(tr.AccountNumber)-4:]
	}

	resp := &models.Response{
		Test:                 c.test,
		AVSResult:            models.NewAVSResult(normalizeAVS(tr.AVSResultCode)),
		CVVResult:            models.NewCVVResult(tr.CVVResultCode),
		NetworkTransactionID: tr.NetworkTransID,
		Params: map[string]string{
			"response_code":    tr.ResponseCode,
			"auth_code":        tr.AuthCode,
			"transaction_id":   tr.TransID,
			"account_type":     tr.AccountType,
			"result_code":      response.Messages.ResultCode,
			"response_reason":  reasonCode(&tr),
			"avs_result_code":  tr.AVSResultCode,
			"cvv_result_code":  tr.CVVResultCode,
			"transaction_type": txType,
			"network_trans_id": tr.NetworkTransID,
		},
	}

	if response.Messages.ResultCode == "Error" {
		if original := duplicateOf(response); original != "" {
			c.logger.Info("duplicate transaction resolved to original",
				zap.String("transaction_id", original))
			resp.Success = true
			resp.Message = "Transaction previously processed"
			resp.Authorization = formatAuthorization(original, last4, txType)
			resp.Params["duplicate"] = "true"
			return resp
		}
	}

	switch tr.ResponseCode {
	case responseApproved, responseReview:
		resp.Success = true
		resp.FraudReview = tr.ResponseCode == responseReview
		resp.Authorization = formatAuthorization(tr.TransID, last4, txType)
		if len(tr.Messages) > 0 {
			resp.Message = tr.Messages[0].Description
		}
		return resp
	}

	resp.Message = failureMessage(response)
	resp.ErrorCode = reasonCodeErrors[reasonCode(&tr)]
	if resp.ErrorCode == "" {
		resp.ErrorCode = models.ErrorProcessingError
		if tr.ResponseCode == responseDeclined {
			resp.ErrorCode = models.ErrorCardDeclined
		}
	}
	if tr.TransID != "" && tr.TransID != "0" {
		resp.Authorization = formatAuthorization(tr.TransID, last4, txType)
	}
	return resp
}

// duplicateOf returns the original transaction id when the processor rejected
// the request as a duplicate (E00027 with transaction error 11).
func duplicateOf(response *createTransactionResponse) string {
	isDuplicate := false
	for _, msg := range response.Messages.Message {
		if msg.Code == "E00027" {
			isDuplicate = true
			break
		}
	}
	if !isDuplicate {
		return ""
	}
	tr := response.TransactionResponse
	for _, e := range tr.Errors {
		if e.ErrorCode == "11" && tr.TransID != "" && tr.TransID != "0" {
			return tr.TransID
		}
	}
	return ""
}

func reasonCode(tr *transactionResponse) string {
	if len(tr.Errors) > 0 {
		return tr.Errors[0].ErrorCode
	}
	if len(tr.Messages) > 0 {
		return tr.Messages[0].Code
	}
	return ""
}

func failureMessage(response *createTransactionResponse) string {
	tr := response.TransactionResponse
	if len(tr.Errors) > 0 && tr.Errors[0].ErrorText != "" {
		return tr.Errors[0].ErrorText
	}
	if len(tr.Messages) > 0 && tr.Messages[0].Description != "" {
		return tr.Messages[0].Description
	}
	if len(response.Messages.Message) > 0 {
		return response.Messages.Message[0].Text
	}
	return "Transaction failed"
}

// normalizeAVS maps processor codes that differ from the standard table.
func normalizeAVS(code string) string {
	switch code {
	case "P":
		return ""
	case "B":
		return "I"
	}
	return code
}

func order(opts *types.TransactionOptions) *OrderType {
	if opts.OrderID == "" && opts.Description == "" {
		return nil
	}
	return &OrderType{
		InvoiceNumber: payment.Truncate(opts.OrderID, 20),
		Description:   payment.Truncate(opts.Description, 255),
	}
}

func address(addr *types.Address, card *models.CreditCard) *CustomerAddressType {
	if addr == nil && card == nil {
		return nil
	}
	out := &CustomerAddressType{}
	if card != nil {
		out.FirstName = card.FirstName
		out.LastName = card.LastName
	}
	if addr != nil {
		if addr.Name != "" {
			first, last := splitName(addr.Name)
			out.FirstName, out.LastName = first, last
		}
		out.Company = addr.Company
		out.Address = strings.TrimSpace(addr.Address1 + " " + addr.Address2)
		out.City = addr.City
		out.State = addr.State
		out.Zip = addr.Zip
		out.Country = addr.Country
		out.PhoneNumber = addr.Phone
	}
	if *out == (CustomerAddressType{}) {
		return nil
	}
	return out
}

func splitName(name string) (string, string) {
	names := strings.Fields(name)
	if len(names) == 0 {
		return "", ""
	}
	return names[0], strings.Join(names[1:], " ")
}

func trackData(card *models.CreditCard) *TrackDataType {
	if card.Track1 != "" {
		return &TrackDataType{Track1: strings.Trim(card.Track1, "%?")}
	}
	return &TrackDataType{Track2: strings.Trim(card.Track2, ";?")}
}

func storedCredential(opts *types.TransactionOptions) (*processingOptionsType, *subsequentAuthInformationType) {
	sc := opts.StoredCredential
	if sc == nil {
		return nil, nil
	}
	po := &processingOptionsType{}
	switch {
	case sc.InitialTransaction && sc.ReasonType == types.ReasonRecurring:
		po.IsFirstRecurringPayment = "true"
	case sc.InitialTransaction:
		po.IsFirstSubsequentAuth = "true"
	case sc.Initiator == types.InitiatorCardholder:
		po.IsStoredCredentials = "true"
	default:
		po.IsSubsequentAuth = "true"
	}

	if !sc.MerchantInitiated() {
		return po, nil
	}
	return po, &subsequentAuthInformationType{
		OriginalNetworkTransID: sc.NetworkTransactionID,
		Reason:                 opts.Metadata["stored_credential_reason"],
	}
}

type authorizationRef struct {
	transID string
	last4   string
	action  string
}

func formatAuthorization(transID, last4, action string) string {
	return strings.Join([]string{transID, last4, action}, "#")
}

func parseAuthorization(authorization string) (authorizationRef, error) {
	parts := strings.Split(authorization, "#")
	if parts[0] == "" {
		return authorizationRef{}, payment.InvalidRequest("authorization is required")
	}
	if len(parts) == 3 && parts[2] == customerAction {
		return authorizationRef{}, payment.InvalidRequest("stored card token cannot be used as a transaction reference")
	}
	ref := authorizationRef{transID: parts[0]}
	if len(parts) > 1 {
		ref.last4 = parts[1]
	}
	if len(parts) > 2 {
		ref.action = parts[2]
	}
	return ref, nil
}
