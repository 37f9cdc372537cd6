// Package epx implements payment.Gateway against the EPX Server Post API.
// Requests are form posts and replies are XML. Cards are vaulted as BRIC
// tokens and referenced by AUTH_GUID.
package epx

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"multigateway-api/models"
	"multigateway-api/services/payment"
	"multigateway-api/types"
	"multigateway-api/utils"
)

const (
	Name = "epx"

	SandboxEndpoint    = "https://epxnow.com/epx/server_post_sandbox"
	ProductionEndpoint = "https://epxnow.com/epx/server_post"
)

// TransactionType is the EPX TRAN_TYPE for a card transaction.
type TransactionType string

const (
	TranSale    TransactionType = "CCE1"
	TranAuth    TransactionType = "CCE2"
	TranCapture TransactionType = "CCE4"
	TranRefund  TransactionType = "CCE9"
	TranVoid    TransactionType = "CCEX"
	TranStore   TransactionType = "CCE8"
	TranVerify  TransactionType = "CCE0"
)

// Card entry methods.
const (
	entryKeyed = "E"
	entrySwipe = "D"
	entryToken = "Z"
)

const approved = "00"

// EPX reports "0" when no address check ran and may send lowercase codes.
var avsCodes = map[string]string{
	"0": "",
}

func normalizeAVS(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if mapped, ok := avsCodes[code]; ok {
		return mapped
	}
	return code
}

var authRespErrors = map[string]string{
	"01": models.ErrorCallIssuer,
	"02": models.ErrorCallIssuer,
	"04": models.ErrorPickupCard,
	"05": models.ErrorCardDeclined,
	"07": models.ErrorPickupCard,
	"13": models.ErrorInvalidAmount,
	"14": models.ErrorInvalidNumber,
	"41": models.ErrorPickupCard,
	"43": models.ErrorPickupCard,
	"51": models.ErrorCardDeclined,
	"54": models.ErrorExpiredCard,
	"55": models.ErrorIncorrectPIN,
	"82": models.ErrorIncorrectCVC,
	"N7": models.ErrorIncorrectCVC,
	"96": models.ErrorProcessingError,
}

var storedCredentialACI = map[string]string{
	types.ReasonRecurring:   "RB",
	types.ReasonInstallment: "IA",
	types.ReasonUnscheduled: "CA",
}

type Gateway struct {
	custNbr     string
	merchNbr    string
	dbaNbr      string
	terminalNbr string
	endpoint    string
	test        bool
	poster      *payment.Poster
	logger      *zap.Logger
	now         func() time.Time
}

var _ payment.Gateway = (*Gateway)(nil)

// New requires the cust_nbr, merch_nbr, dba_nbr and terminal_nbr credentials.
func New(cfg payment.Config) (*Gateway, error) {
	if err := cfg.RequireCredentials(Name, "cust_nbr", "merch_nbr", "dba_nbr", "terminal_nbr"); err != nil {
		return nil, err
	}
	logger := cfg.LoggerOrNop().With(zap.String("gateway", Name))
	return &Gateway{
		custNbr:     cfg.Credential("cust_nbr"),
		merchNbr:    cfg.Credential("merch_nbr"),
		dbaNbr:      cfg.Credential("dba_nbr"),
		terminalNbr: cfg.Credential("terminal_nbr"),
		endpoint:    cfg.EndpointFor(SandboxEndpoint, ProductionEndpoint),
		test:        cfg.Test(),
		poster:      payment.NewPoster(Name, cfg.NewHTTPClient(), logger),
		logger:      logger,
		now:         time.Now,
	}, nil
}

func (g *Gateway) Name() string { return Name }

func (g *Gateway) Purchase(ctx context.Context, money int64, source models.PaymentSource, opts *types.TransactionOptions) (*models.Response, error) {
	return g.charge(ctx, TranSale, money, source, opts)
}

func (g *Gateway) Authorize(ctx context.Context, money int64, source models.PaymentSource, opts *types.TransactionOptions) (*models.Response, error) {
	return g.charge(ctx, TranAuth, money, source, opts)
}

func (g *Gateway) Capture(ctx context.Context, money int64, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	return g.followUp(ctx, TranCapture, &money, authorization, opts)
}

func (g *Gateway) Refund(ctx context.Context, money int64, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	return g.followUp(ctx, TranRefund, &money, authorization, opts)
}

func (g *Gateway) Void(ctx context.Context, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	return g.followUp(ctx, TranVoid, nil, authorization, opts)
}

// Store registers the card as a BRIC token. The AUTH_GUID of the reply is
// the token.
func (g *Gateway) Store(ctx context.Context, card *models.CreditCard, opts *types.TransactionOptions) (*models.Response, error) {
	return g.charge(ctx, TranStore, 0, card, opts)
}

func (g *Gateway) Unstore(ctx context.Context, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	return nil, payment.Unsupported(Name, models.ActionUnstore)
}

// Verify runs an EPX account verification, which never moves funds.
func (g *Gateway) Verify(ctx context.Context, card *models.CreditCard, opts *types.TransactionOptions) (*models.Response, error) {
	return g.charge(ctx, TranVerify, 0, card, opts)
}

func (g *Gateway) charge(ctx context.Context, tranType TransactionType, money int64, source models.PaymentSource, opts *types.TransactionOptions) (*models.Response, error) {
	opts = opts.OrEmpty()
	data, err := g.baseForm(tranType, money, opts)
	if err != nil {
		return nil, err
	}

	switch src := source.(type) {
	case *models.CreditCard:
		if src.CardPresent() {
			track := src.Track2
			if track == "" {
				track = src.Track1
			}
			data.Set("TRACK_DATA", track)
			data.Set("CARD_ENT_METH", entrySwipe)
		} else {
			data.Set("ACCOUNT_NBR", models.NormalizeNumber(src.Number))
			data.Set("EXP_DATE", src.ExpiryYYMM())
			if src.VerificationValue != "" {
				data.Set("CVV2", src.VerificationValue)
			}
			data.Set("CARD_ENT_METH", entryKeyed)
		}
		setIfPresent(data, "FIRST_NAME", src.FirstName)
		setIfPresent(data, "LAST_NAME", src.LastName)
	case models.StoredToken:
		if src == "" {
			return nil, payment.InvalidRequest("stored token is empty")
		}
		data.Set("AUTH_GUID", string(src))
		data.Set("CARD_ENT_METH", entryToken)
	default:
		return nil, payment.InvalidRequest("unsupported payment source %T", source)
	}

	addAddress(data, opts.BillingAddress)
	addStoredCredential(data, opts.StoredCredential)
	addThreeDSecure(data, opts.ThreeDSecure)

	return g.commit(ctx, tranType, data)
}

func (g *Gateway) followUp(ctx context.Context, tranType TransactionType, money *int64, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	if authorization == "" {
		return nil, payment.InvalidRequest("authorization is required")
	}
	opts = opts.OrEmpty()
	amount := int64(0)
	if money != nil {
		amount = *money
	}
	data, err := g.baseForm(tranType, amount, opts)
	if err != nil {
		return nil, err
	}
	if money == nil {
		data.Del("AMOUNT")
	}
	data.Set("ORIG_AUTH_GUID", authorization)
	return g.commit(ctx, tranType, data)
}

func (g *Gateway) baseForm(tranType TransactionType, money int64, opts *types.TransactionOptions) (url.Values, error) {
	amount, err := utils.FormatAmount(money, opts.CurrencyOr("USD"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidAmount, err)
	}

	data := url.Values{}
	data.Set("CUST_NBR", g.custNbr)
	data.Set("MERCH_NBR", g.merchNbr)
	data.Set("DBA_NBR", g.dbaNbr)
	data.Set("TERMINAL_NBR", g.terminalNbr)
	data.Set("TRAN_TYPE", string(tranType))
	data.Set("AMOUNT", amount)
	data.Set("TRAN_NBR", payment.NumericOrderID(opts.OrderID, 10))
	data.Set("BATCH_ID", g.now().UTC().Format("20060102"))
	return data, nil
}

func (g *Gateway) commit(ctx context.Context, tranType TransactionType, data url.Values) (*models.Response, error) {
	g.logger.Debug("sending server post",
		zap.String("tran_type", string(tranType)),
		zap.String("tran_nbr", data.Get("TRAN_NBR")),
	)

	body, err := g.poster.Post(ctx, g.endpoint, []byte(data.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
	if err != nil {
		return nil, err
	}

	fields, err := parseFields(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidResponse, err)
	}
	if fields["AUTH_RESP"] == "" {
		return nil, fmt.Errorf("%w: AUTH_RESP is missing", payment.ErrInvalidResponse)
	}
	return g.buildResponse(fields), nil
}

func (g *Gateway) buildResponse(fields map[string]string) *models.Response {
	authResp := fields["AUTH_RESP"]
	resp := &models.Response{
		Success:              authResp == approved,
		Message:              fields["AUTH_RESP_TEXT"],
		Authorization:        fields["AUTH_GUID"],
		AVSResult:            models.NewAVSResult(normalizeAVS(fields["AUTH_AVS"])),
		CVVResult:            models.NewCVVResult(fields["AUTH_CVV2"]),
		NetworkTransactionID: fields["NETWORK_TRAN_ID"],
		Test:                 g.test,
		Params:               fields,
	}
	if !resp.Success {
		resp.ErrorCode = authRespErrors[authResp]
		if resp.ErrorCode == "" {
			resp.ErrorCode = models.ErrorProcessingError
		}
	}
	return resp
}

// parseFields reads both reply layouts: <RESPONSE><FIELDS><FIELD KEY="..">
// and flat elements such as <AUTH_RESP>00</AUTH_RESP>.
func parseFields(body []byte) (map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	fields := make(map[string]string)

	var (
		key  string
		text strings.Builder
		leaf bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			key = t.Name.Local
			for _, attr := range t.Attr {
				if strings.EqualFold(attr.Name.Local, "KEY") {
					key = attr.Value
				}
			}
			text.Reset()
			leaf = true
		case xml.CharData:
			if leaf {
				text.Write(t)
			}
		case xml.EndElement:
			if leaf && key != "" {
				fields[key] = strings.TrimSpace(text.String())
			}
			leaf = false
			key = ""
		}
	}
	if len(fields) == 0 {
		return nil, errors.New("empty reply")
	}
	return fields, nil
}

func addAddress(data url.Values, addr *types.Address) {
	if addr == nil {
		return
	}
	setIfPresent(data, "ADDRESS", strings.TrimSpace(addr.Address1+" "+addr.Address2))
	setIfPresent(data, "CITY", addr.City)
	setIfPresent(data, "STATE", addr.State)
	setIfPresent(data, "ZIP_CODE", addr.Zip)
}

func addStoredCredential(data url.Values, sc *types.StoredCredential) {
	if sc == nil {
		return
	}
	if sc.Subsequent() {
		if aci, ok := storedCredentialACI[sc.ReasonType]; ok {
			data.Set("ACI_EXT", aci)
		}
	}
	setIfPresent(data, "NETWORK_TRAN_ID", sc.NetworkTransactionID)
}

func addThreeDSecure(data url.Values, tds *types.ThreeDSecure) {
	if tds == nil {
		return
	}
	setIfPresent(data, "TDS_VER", tds.Version)
	setIfPresent(data, "ECI_IND", tds.ECI)
	setIfPresent(data, "CAVV_UCAF", tds.CAVV)
	setIfPresent(data, "DIRECTORY_SERVER_TRAN_ID", tds.DSTransactionID)
}

func setIfPresent(data url.Values, key, value string) {
	if value != "" {
		data.Set(key, value)
	}
}
