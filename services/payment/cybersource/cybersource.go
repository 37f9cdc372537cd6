// Package cybersource implements payment.Gateway against the CyberSource
// Simple Order API over SOAP, authenticated with a WS-Security UsernameToken.
package cybersource

import (
	"context"
	"encoding/xml"
	"errors"
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
	Name = "cybersource"

	SandboxEndpoint    = "https://ics2wstest.ic3.com/commerce/1.x/transactionProcessor"
	ProductionEndpoint = "https://ics2ws.ic3.com/commerce/1.x/transactionProcessor"

	clientLibrary        = "Go"
	clientLibraryVersion = "1.0"

	reasonSuccess = 100
	reasonReview  = 480
)

var cardTypes = map[string]string{
	models.BrandVisa:            "001",
	models.BrandMaster:          "002",
	models.BrandAmericanExpress: "003",
	models.BrandDiscover:        "004",
	models.BrandDinersClub:      "005",
	models.BrandJCB:             "007",
	models.BrandMaestro:         "042",
}

var threeDSCommerceIndicators = map[string]string{
	models.BrandVisa:            "vbv",
	models.BrandMaster:          "spa",
	models.BrandAmericanExpress: "aesk",
	models.BrandJCB:             "js",
	models.BrandDiscover:        "dipb",
}

var reasonMessages = map[int]string{
	100: "Successful transaction",
	101: "Request is missing one or more required fields",
	102: "One or more fields contains invalid data",
	110: "Partial amount was approved",
	150: "General failure",
	151: "The request was received but a server time-out occurred",
	152: "The request was received, but a service timed out",
	200: "The authorization request was approved by the issuing bank but declined by CyberSource because it did not pass the AVS check",
	201: "The issuing bank has questions about the request",
	202: "Expired card",
	203: "General decline of the card",
	204: "Insufficient funds in the account",
	205: "Stolen or lost card",
	207: "Issuing bank unavailable",
	208: "Inactive card or card not authorized for card-not-present transactions",
	209: "American Express Card Identifiction Digits (CID) did not match",
	210: "The card has reached the credit limit",
	211: "Invalid card verification number",
	220: "The processor declined the request based on a general issue with the customer's account",
	221: "The customer matched an entry on the processor's negative file",
	222: "The customer's bank account is frozen",
	230: "The authorization request was approved by the issuing bank but declined by CyberSource because it did not pass the card verification number check",
	231: "Invalid account number",
	232: "The card type is not accepted by the payment processor",
	233: "General decline by the processor",
	234: "A problem exists with your CyberSource merchant configuration",
	235: "The requested amount exceeds the originally authorized amount",
	236: "Processor failure",
	237: "The authorization has already been reversed",
	238: "The authorization has already been captured",
	239: "The requested transaction amount must match the previous transaction amount",
	240: "The card type sent is invalid or does not correlate with the credit card number",
	241: "The request ID is invalid",
	242: "You requested a capture, but there is no corresponding, unused authorization record",
	243: "The transaction has already been settled or reversed",
	246: "The capture or credit is not voidable because the capture or credit information has already been submitted to your processor",
	247: "You requested a credit for a capture that was previously voided",
	250: "The request was received, but a time-out occurred with the payment processor",
	480: "The order is marked for review by Decision Manager",
	481: "The order has been rejected by Decision Manager",
}

var reasonErrors = map[int]string{
	101: models.ErrorProcessingError,
	102: models.ErrorProcessingError,
	150: models.ErrorProcessingError,
	151: models.ErrorProcessingError,
	152: models.ErrorProcessingError,
	200: models.ErrorIncorrectAddress,
	201: models.ErrorCallIssuer,
	202: models.ErrorExpiredCard,
	203: models.ErrorCardDeclined,
	204: models.ErrorCardDeclined,
	205: models.ErrorPickupCard,
	208: models.ErrorCardDeclined,
	209: models.ErrorIncorrectCVC,
	211: models.ErrorInvalidCVC,
	230: models.ErrorIncorrectCVC,
	231: models.ErrorInvalidNumber,
	234: models.ErrorConfigError,
	250: models.ErrorProcessingError,
	481: models.ErrorCardDeclined,
}

// Processor specific numeric AVS and CV codes.
var avsCodes = map[string]string{"1": "S", "2": "E", "3": "R", "4": "R"}
var cvCodes = map[string]string{"1": "X", "2": "U", "3": "P"}

type Gateway struct {
	merchantID     string
	transactionKey string
	endpoint       string
	test           bool
	poster         *payment.Poster
	logger         *zap.Logger
}

var _ payment.Gateway = (*Gateway)(nil)

// New requires the merchant_id and transaction_key credentials.
func New(cfg payment.Config) (*Gateway, error) {
	if err := cfg.RequireCredentials(Name, "merchant_id", "transaction_key"); err != nil {
		return nil, err
	}
	logger := cfg.LoggerOrNop().With(zap.String("gateway", Name))
	return &Gateway{
		merchantID:     cfg.Credential("merchant_id"),
		transactionKey: cfg.Credential("transaction_key"),
		endpoint:       cfg.EndpointFor(SandboxEndpoint, ProductionEndpoint),
		test:           cfg.Test(),
		poster:         payment.NewPoster(Name, cfg.NewHTTPClient(), logger),
		logger:         logger,
	}, nil
}

func (g *Gateway) Name() string { return Name }

func (g *Gateway) Purchase(ctx context.Context, money int64, source models.PaymentSource, opts *types.TransactionOptions) (*models.Response, error) {
	return g.authorize(ctx, models.ActionPurchase, money, source, opts)
}

func (g *Gateway) Authorize(ctx context.Context, money int64, source models.PaymentSource, opts *types.TransactionOptions) (*models.Response, error) {
	return g.authorize(ctx, models.ActionAuthorize, money, source, opts)
}

func (g *Gateway) Capture(ctx context.Context, money int64, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	ref, err := parseAuthorization(authorization)
	if err != nil {
		return nil, err
	}
	req, err := g.newRequest(ref.reference, money, ref.currency)
	if err != nil {
		return nil, err
	}
	req.OrderRequestToken = ref.requestToken
	req.CCCaptureService = &ccCaptureService{Run: "true", AuthRequestID: ref.requestID, AuthRequestToken: ref.requestToken}
	return g.commit(ctx, req, models.ActionCapture, money)
}

func (g *Gateway) Refund(ctx context.Context, money int64, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	ref, err := parseAuthorization(authorization)
	if err != nil {
		return nil, err
	}
	req, err := g.newRequest(ref.reference, money, ref.currency)
	if err != nil {
		return nil, err
	}
	req.OrderRequestToken = ref.requestToken
	req.CCCreditService = &ccCreditService{Run: "true", CaptureRequestID: ref.requestID, CaptureRequestToken: ref.requestToken}
	return g.commit(ctx, req, models.ActionRefund, money)
}

// Void reverses an authorization, or voids a capture, purchase or refund
// that has not settled yet.
func (g *Gateway) Void(ctx context.Context, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	ref, err := parseAuthorization(authorization)
	if err != nil {
		return nil, err
	}
	if ref.action == string(models.ActionAuthorize) {
		req, err := g.newRequest(ref.reference, ref.amount, ref.currency)
		if err != nil {
			return nil, err
		}
		req.OrderRequestToken = ref.requestToken
		req.CCAuthReversalService = &ccAuthReversalService{Run: "true", AuthRequestID: ref.requestID, AuthRequestToken: ref.requestToken}
		return g.commit(ctx, req, models.ActionVoid, ref.amount)
	}
	req := g.baseRequest(ref.reference)
	req.OrderRequestToken = ref.requestToken
	req.VoidService = &voidService{Run: "true", VoidRequestID: ref.requestID, VoidRequestToken: ref.requestToken}
	return g.commit(ctx, req, models.ActionVoid, ref.amount)
}

// Store creates an on-demand payment subscription for the card.
func (g *Gateway) Store(ctx context.Context, card *models.CreditCard, opts *types.TransactionOptions) (*models.Response, error) {
	opts = opts.OrEmpty()
	req, err := g.newRequest(referenceCode(opts), 0, opts.CurrencyOr("USD"))
	if err != nil {
		return nil, err
	}
	req.PurchaseTotals.GrandTotalAmount = ""
	req.BillTo = buildBillTo(opts, card)
	req.Card = buildCard(card)
	req.RecurringSubscriptionInfo = &subscriptionInfo{Frequency: "on-demand"}
	req.PaySubscriptionCreateService = &runService{Run: "true"}
	return g.commit(ctx, req, models.ActionStore, 0)
}

// Unstore deletes the subscription referenced by a Store authorization.
func (g *Gateway) Unstore(ctx context.Context, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	subscriptionID := subscriptionOf(authorization)
	if subscriptionID == "" {
		return nil, payment.InvalidRequest("subscription id is required")
	}
	req := g.baseRequest(referenceCode(opts.OrEmpty()))
	req.RecurringSubscriptionInfo = &subscriptionInfo{SubscriptionID: subscriptionID}
	req.PaySubscriptionDeleteService = &runService{Run: "true"}
	return g.commit(ctx, req, models.ActionUnstore, 0)
}

// Verify authorizes 1.00 and reverses it.
func (g *Gateway) Verify(ctx context.Context, card *models.CreditCard, opts *types.TransactionOptions) (*models.Response, error) {
	return payment.VerifyByAuthorizeVoid(ctx, g, 100, card, opts)
}

func (g *Gateway) authorize(ctx context.Context, action models.Action, money int64, source models.PaymentSource, opts *types.TransactionOptions) (*models.Response, error) {
	opts = opts.OrEmpty()
	req, err := g.newRequest(referenceCode(opts), money, opts.CurrencyOr("USD"))
	if err != nil {
		return nil, err
	}

	auth := &ccAuthService{Run: "true"}
	brand := ""
	switch src := source.(type) {
	case *models.CreditCard:
		brand = src.DetectBrand()
		req.BillTo = buildBillTo(opts, src)
		if src.CardPresent() {
			track := src.Track2
			if track == "" {
				track = src.Track1
			}
			req.Pos = &pos{EntryMode: "swiped", CardPresent: "Y", TrackData: track}
			req.Card = &card{
				ExpirationMonth: fmt.Sprintf("%02d", src.Month),
				ExpirationYear:  strconv.Itoa(src.Year),
				CardType:        cardTypes[brand],
			}
		} else {
			req.Card = buildCard(src)
		}
	case models.StoredToken:
		subscriptionID := subscriptionOf(string(src))
		if subscriptionID == "" {
			return nil, payment.InvalidRequest("stored token is empty")
		}
		req.RecurringSubscriptionInfo = &subscriptionInfo{SubscriptionID: subscriptionID}
	default:
		return nil, payment.InvalidRequest("unsupported payment source %T", source)
	}
	req.ShipTo = buildShipTo(opts.ShippingAddress)

	addThreeDSecure(req, auth, brand, opts.ThreeDSecure)
	addStoredCredential(req, auth, opts)

	req.CCAuthService = auth
	if action == models.ActionPurchase {
		req.CCCaptureService = &ccCaptureService{Run: "true"}
	}
	return g.commit(ctx, req, action, money)
}

func (g *Gateway) baseRequest(reference string) *requestMessage {
	return &requestMessage{
		XMLNS:                 transactionNS,
		MerchantID:            g.merchantID,
		MerchantReferenceCode: reference,
		ClientLibrary:         clientLibrary,
		ClientLibraryVersion:  clientLibraryVersion,
	}
}

func (g *Gateway) newRequest(reference string, money int64, currency string) (*requestMessage, error) {
	amount, err := utils.FormatAmount(money, currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidAmount, err)
	}
	req := g.baseRequest(reference)
	req.PurchaseTotals = &purchaseTotals{Currency: strings.ToUpper(currency), GrandTotalAmount: amount}
	return req, nil
}

func (g *Gateway) envelope(req *requestMessage) soapEnvelope {
	return soapEnvelope{
		SoapNS: soapNS,
		Header: soapHeader{Security: wsseSecurity{
			MustUnderstand: "1",
			WsseNS:         wsseNS,
			UsernameToken: usernameToken{
				Username: g.merchantID,
				Password: wssePassword{Type: passwordText, Value: g.transactionKey},
			},
		}},
		Body: soapBody{RequestMessage: *req},
	}
}

func (g *Gateway) commit(ctx context.Context, req *requestMessage, action models.Action, money int64) (*models.Response, error) {
	payload, err := xml.Marshal(g.envelope(req))
	if err != nil {
		return nil, fmt.Errorf("encoding soap request: %w", err)
	}
	payload = append([]byte(xml.Header), payload...)

	g.logger.Debug("sending soap request",
		zap.String("action", string(action)),
		zap.String("reference", req.MerchantReferenceCode),
	)

	body, err := g.poster.Post(ctx, g.endpoint, payload, map[string]string{
		"Content-Type": "text/xml; charset=utf-8",
		"SOAPAction":   "runTransaction",
	})
	if err != nil {
		// SOAP faults arrive with HTTP 500.
		var respErr *payment.ResponseError
		if errors.As(err, &respErr) && strings.Contains(respErr.Body, "Fault") {
			body = []byte(respErr.Body)
		} else {
			return nil, err
		}
	}

	var envelope soapResponseEnvelope
	if err := xml.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decoding soap reply: %v", payment.ErrInvalidResponse, err)
	}
	if fault := envelope.Body.Fault; fault != nil {
		return &models.Response{
			Success:   false,
			Message:   fault.FaultString,
			ErrorCode: models.ErrorConfigError,
			Test:      g.test,
			Params:    map[string]string{"faultcode": fault.FaultCode},
		}, nil
	}
	if envelope.Body.ReplyMessage == nil {
		return nil, fmt.Errorf("%w: empty soap reply", payment.ErrInvalidResponse)
	}
	return g.buildResponse(envelope.Body.ReplyMessage, req, action, money), nil
}

func (g *Gateway) buildResponse(reply *replyMessage, req *requestMessage, action models.Action, money int64) *models.Response {
	success := reply.Decision == "ACCEPT" || reply.ReasonCode == reasonSuccess
	review := reply.Decision == "REVIEW" || reply.ReasonCode == reasonReview

	currency := "USD"
	if req.PurchaseTotals != nil {
		currency = req.PurchaseTotals.Currency
	}

	resp := &models.Response{
		Success:     success || review,
		FraudReview: review,
		Message:     reasonMessages[reply.ReasonCode],
		Test:        g.test,
		Params: map[string]string{
			"requestID":    reply.RequestID,
			"requestToken": reply.RequestToken,
			"decision":     reply.Decision,
			"reasonCode":   strconv.Itoa(reply.ReasonCode),
		},
	}
	if resp.Message == "" {
		resp.Message = fmt.Sprintf("%s (reason %d)", reply.Decision, reply.ReasonCode)
	}
	if len(reply.MissingField) > 0 {
		resp.Params["missingField"] = strings.Join(reply.MissingField, ",")
	}
	if len(reply.InvalidField) > 0 {
		resp.Params["invalidField"] = strings.Join(reply.InvalidField, ",")
	}

	if auth := reply.CCAuthReply; auth != nil {
		resp.AVSResult = models.NewAVSResult(mapCode(avsCodes, auth.AVSCode))
		resp.CVVResult = models.NewCVVResult(mapCode(cvCodes, auth.CVCode))
		resp.NetworkTransactionID = auth.PaymentNetworkTransactionID
		resp.Params["authorizationCode"] = auth.AuthorizationCode
		resp.Params["processorResponse"] = auth.ProcessorResponse
	}

	subscriptionID := ""
	if sub := reply.PaySubscriptionCreateReply; sub != nil {
		subscriptionID = sub.SubscriptionID
		resp.Params["subscriptionID"] = subscriptionID
	} else if req.RecurringSubscriptionInfo != nil {
		subscriptionID = req.RecurringSubscriptionInfo.SubscriptionID
	}

	if resp.Success {
		resp.Authorization = formatAuthorization(authorizationRef{
			reference:      req.MerchantReferenceCode,
			requestID:      reply.RequestID,
			requestToken:   reply.RequestToken,
			action:         string(action),
			amount:         money,
			currency:       currency,
			subscriptionID: subscriptionID,
		})
	} else {
		resp.ErrorCode = reasonErrors[reply.ReasonCode]
		if resp.ErrorCode == "" {
			resp.ErrorCode = models.ErrorProcessingError
		}
	}
	return resp
}

func mapCode(table map[string]string, code string) string {
	if mapped, ok := table[code]; ok {
		return mapped
	}
	return code
}

func referenceCode(opts *types.TransactionOptions) string {
	if opts.OrderID != "" {
		return opts.OrderID
	}
	return payment.GenerateOrderID("")
}

func buildCard(c *models.CreditCard) *card {
	out := &card{
		AccountNumber:   models.NormalizeNumber(c.Number),
		ExpirationMonth: fmt.Sprintf("%02d", c.Month),
		ExpirationYear:  strconv.Itoa(c.Year),
		CardType:        cardTypes[c.DetectBrand()],
	}
	if c.VerificationValue != "" {
		out.CVIndicator = "1"
		out.CVNumber = c.VerificationValue
	}
	return out
}

// buildBillTo fills the fields CyberSource requires with placeholders when
// the caller did not supply them.
func buildBillTo(opts *types.TransactionOptions, c *models.CreditCard) *billTo {
	out := &billTo{
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Street1:    "Unspecified",
		City:       "Unspecified",
		State:      "NC",
		PostalCode: "00000",
		Country:    "US",
		Email:      "null@cybersource.com",
		IPAddress:  opts.IP,
		CustomerID: opts.CustomerID,
	}
	if opts.Email != "" {
		out.Email = opts.Email
	}
	if addr := opts.BillingAddress; addr != nil {
		out.Company = addr.Company
		setIfPresent(&out.Street1, addr.Address1)
		out.Street2 = addr.Address2
		setIfPresent(&out.City, addr.City)
		setIfPresent(&out.State, addr.State)
		setIfPresent(&out.PostalCode, addr.Zip)
		setIfPresent(&out.Country, addr.Country)
		out.PhoneNumber = addr.Phone
	}
	return out
}

func buildShipTo(addr *types.Address) *shipTo {
	if addr == nil || addr.Address1 == "" {
		return nil
	}
	first, last := "", ""
	if names := strings.Fields(addr.Name); len(names) > 0 {
		first, last = names[0], strings.Join(names[1:], " ")
	}
	return &shipTo{
		FirstName:  first,
		LastName:   last,
		Street1:    addr.Address1,
		Street2:    addr.Address2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.Zip,
		Country:    addr.Country,
	}
}

func setIfPresent(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func addThreeDSecure(req *requestMessage, auth *ccAuthService, brand string, tds *types.ThreeDSecure) {
	if tds == nil {
		return
	}
	auth.CommerceIndicator = threeDSCommerceIndicators[brand]
	auth.ECIRaw = tds.ECI
	auth.PaSpecificationVersion = tds.Version
	auth.DirectoryServerTransactionID = tds.DSTransactionID
	if brand == models.BrandMaster {
		req.UCAF = &ucaf{AuthenticationData: tds.CAVV, CollectionIndicator: "2"}
		return
	}
	auth.CAVV = tds.CAVV
	auth.XID = tds.XID
}

func addStoredCredential(req *requestMessage, auth *ccAuthService, opts *types.TransactionOptions) {
	sc := opts.StoredCredential
	if sc == nil {
		return
	}
	if sc.InitialTransaction {
		req.SubsequentAuthFirst = "true"
		return
	}
	if sc.MerchantInitiated() {
		req.SubsequentAuth = "true"
		req.SubsequentAuthTransactionID = sc.NetworkTransactionID
		req.SubsequentAuthReason = opts.Metadata["stored_credential_reason"]
		if auth.CommerceIndicator == "" {
			switch sc.ReasonType {
			case types.ReasonRecurring:
				auth.CommerceIndicator = "recurring"
			case types.ReasonInstallment:
				auth.CommerceIndicator = "install"
			default:
				auth.CommerceIndicator = "internet"
			}
		}
		return
	}
	req.SubsequentAuthStoredCredential = "true"
}

type authorizationRef struct {
	reference      string
	requestID      string
	requestToken   string
	action         string
	amount         int64
	currency       string
	subscriptionID string
}

// formatAuthorization joins reference;requestID;requestToken;action;amount;currency
// and appends the subscription id when one exists.
func formatAuthorization(ref authorizationRef) string {
	parts := []string{ref.reference, ref.requestID, ref.requestToken, ref.action, strconv.FormatInt(ref.amount, 10), ref.currency}
	if ref.subscriptionID != "" {
		parts = append(parts, ref.subscriptionID)
	}
	return strings.Join(parts, ";")
}

func parseAuthorization(authorization string) (authorizationRef, error) {
	parts := strings.Split(authorization, ";")
	if len(parts) < 6 || parts[1] == "" {
		return authorizationRef{}, payment.InvalidRequest("malformed authorization")
	}
	amount, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return authorizationRef{}, payment.InvalidRequest("malformed authorization amount")
	}
	ref := authorizationRef{
		reference:    parts[0],
		requestID:    parts[1],
		requestToken: parts[2],
		action:       parts[3],
		amount:       amount,
		currency:     parts[5],
	}
	if len(parts) > 6 {
		ref.subscriptionID = parts[6]
	}
	return ref, nil
}

// subscriptionOf accepts either a full Store authorization or a bare
// subscription id.
func subscriptionOf(token string) string {
	if !strings.Contains(token, ";") {
		return token
	}
	ref, err := parseAuthorization(token)
	if err != nil {
		return ""
	}
	return ref.subscriptionID
}
