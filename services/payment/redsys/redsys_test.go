package redsys

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multigateway-api/models"
	"multigateway-api/services/payment"
	"multigateway-api/services/payment/testkit"
	"multigateway-api/types"
)

const testSecret = "sq7HjrUOBfKmC576ILgskD5srU870gJ7"

func newTestGateway(t *testing.T, transport *testkit.FakeTransport) *Gateway {
	t.Helper()
	g, err := New(payment.Config{
		Mode: payment.ModeTest,
		Credentials: map[string]string{
			"merchant_code": "091952713",
			"terminal":      "1",
			"secret_key":    testSecret,
		},
		HTTPClient: transport.Client(),
	})
	require.NoError(t, err)
	g.randomDigits = func(n int) string { return strings.Repeat("7", n) }
	return g
}

func signedReplyBody(t *testing.T, fields map[string]string) string {
	t.Helper()
	signer, err := NewSigner(testSecret)
	require.NoError(t, err)
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	encoded := base64.StdEncoding.EncodeToString(raw)
	body, err := json.Marshal(signedReply{
		SignatureVersion:   SignatureVersion,
		MerchantParameters: encoded,
		Signature:          signer.Sign(fields["Ds_Order"], encoded),
	})
	require.NoError(t, err)
	return string(body)
}

func sentParameters(t *testing.T, transport *testkit.FakeTransport) (MerchantParameters, signedRequest) {
	t.Helper()
	var req signedRequest
	require.NoError(t, json.Unmarshal(transport.Last().Body, &req))
	raw, err := base64.StdEncoding.DecodeString(req.MerchantParameters)
	require.NoError(t, err)
	var params MerchantParameters
	require.NoError(t, json.Unmarshal(raw, &params))
	return params, req
}

func TestSignerRoundTrip(t *testing.T) {
	signer, err := NewSigner(testSecret)
	require.NoError(t, err)

	assert.Len(t, signer.OrderKey("1234"), 8)
	assert.Len(t, signer.OrderKey("123456789012"), 16)

	sig := signer.Sign("1234abcd", "eyJhIjoiYiJ9")
	assert.True(t, signer.Verify("1234abcd", "eyJhIjoiYiJ9", sig))
	urlSafe := strings.NewReplacer("+", "-", "/", "_").Replace(sig)
	assert.True(t, signer.Verify("1234abcd", "eyJhIjoiYiJ9", urlSafe))
	assert.False(t, signer.Verify("1234abce", "eyJhIjoiYiJ9", sig))
	assert.False(t, signer.Verify("1234abcd", "eyJhIjoiYyJ9", sig))
}

// Sample merchant parameters from the Redsys integration guide. Expected keys
// and signatures use the public test secret.
const sampleParameters = "eyJEU19NRVJDSEFOVF9BTU9VTlQiOiIxNDUiLCJEU19NRVJDSEFOVF9PUkRFUiI6IjE0NDYwNjg1ODEiLCJEU19NRVJDSEFOVF9NRVJDSEFOVENPREUiOiI5OTkwMDg4ODEiLCJEU19NRVJDSEFOVF9DVVJSRU5DWSI6Ijk3OCIsIkRTX01FUkNIQU5UX1RSQU5TQUNUSU9OVFlQRSI6IjAiLCJEU19NRVJDSEFOVF9URVJNSU5BTCI6Ijg3MSIsIkRTX01FUkNIQU5UX01FUkNIQU5UVVJMIjoiaHR0cDpcL1wvd3d3LnBydWViYS5jb21cL3VybE5vdGlmaWNhY2lvbi5waHAiLCJEU19NRVJDSEFOVF9VUkxPSyI6Imh0dHA6XC9cL3d3dy5wcnVlYmEuY29tXC91cmxPSy5waHAiLCJEU19NRVJDSEFOVF9VUkxLTyI6Imh0dHA6XC9cL3d3dy5wcnVlYmEuY29tXC91cmxLTy5waHAifQ=="

func TestSignerKnownAnswers(t *testing.T) {
	signer, err := NewSigner(testSecret)
	require.NoError(t, err)

	tests := []struct {
		order      string
		orderKey   string
		parameters string
		signature  string
	}{
		{
			order:      "1446068581",
			orderKey:   "decaf4a139d22921434c30c18e0431af",
			parameters: sampleParameters,
			signature:  "2usCa5/jfdIOgQN7YdQ1YbeZncdTyaRZjzSbSVZQr5Y=",
		},
		{
			order:      "1001abc",
			orderKey:   "f1190f6202018f96",
			parameters: sampleParameters,
			signature:  "DvWHdLDNuDK66gPQjFzEQWgewV9PNN2aKrWWCU1yhCY=",
		},
	}
	for _, tt := range tests {
		t.Run(tt.order, func(t *testing.T) {
			assert.Equal(t, tt.orderKey, hex.EncodeToString(signer.OrderKey(tt.order)))
			assert.Equal(t, tt.signature, signer.Sign(tt.order, tt.parameters))
			assert.True(t, signer.Verify(tt.order, tt.parameters, tt.signature))
		})
	}
}

func TestNewRejectsBadSecret(t *testing.T) {
	_, err := New(payment.Config{Credentials: map[string]string{
		"merchant_code": "1", "terminal": "1", "secret_key": "c2hvcnQ=",
	}})
	assert.Error(t, err)
}

func TestPurchaseSignsRequestAndParsesReply(t *testing.T) {
	transport := (&testkit.FakeTransport{}).Reply(http.StatusOK, signedReplyBody(t, map[string]string{
		"Ds_Order":             "1001abc",
		"Ds_Response":          "0000",
		"Ds_AuthorisationCode": "123456",
		"Ds_Amount":            "1000",
	}))
	g := newTestGateway(t, transport)

	resp, err := g.Purchase(context.Background(), 1000, testkit.Card(testkit.VisaNumber), &types.TransactionOptions{OrderID: "1001-abc", Currency: "EUR"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "1001abc|1000|0", resp.Authorization)
	assert.True(t, resp.AVSResult.Empty())
	assert.True(t, resp.CVVResult.Empty())

	params, req := sentParameters(t, transport)
	assert.Equal(t, SignatureVersion, req.SignatureVersion)
	assert.Equal(t, "1001abc", params.Order)
	assert.Equal(t, "978", params.Currency)
	assert.Equal(t, "1000", params.Amount)
	assert.Equal(t, "0", params.TransactionType)
	assert.Equal(t, "9912", params.ExpiryDate)

	signer, _ := NewSigner(testSecret)
	assert.True(t, signer.Verify(params.Order, req.MerchantParameters, req.Signature))
}

func TestAcceptsPresignedReply(t *testing.T) {
	body := `{"Ds_SignatureVersion":"HMAC_SHA256_V1",` +
		`"Ds_MerchantParameters":"eyJEc19BbW91bnQiOiIxMDAwIiwiRHNfQXV0aG9yaXNhdGlvbkNvZGUiOiIxMjM0NTYiLCJEc19PcmRlciI6IjEwMDFhYmMiLCJEc19SZXNwb25zZSI6IjAwMDAifQ==",` +
		`"Ds_Signature":"xuTT9-6tqtVrkDQDMAnK6_f21SHP8mBW5ph7VxY5tB4="}`
	transport := (&testkit.FakeTransport{}).Reply(http.StatusOK, body)
	g := newTestGateway(t, transport)

	resp, err := g.Purchase(context.Background(), 1000, testkit.Card(testkit.VisaNumber), &types.TransactionOptions{OrderID: "1001abc", Currency: "EUR"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "123456", resp.Param("Ds_AuthorisationCode"))
}

func TestReplySignatureMismatch(t *testing.T) {
	body := signedReplyBody(t, map[string]string{"Ds_Order": "1001abc", "Ds_Response": "0000"})
	body = strings.Replace(body, `"Ds_Signature":"`, `"Ds_Signature":"AAAA`, 1)
	transport := (&testkit.FakeTransport{}).Reply(http.StatusOK, body)
	g := newTestGateway(t, transport)

	_, err := g.Purchase(context.Background(), 1000, testkit.Card(testkit.VisaNumber), &types.TransactionOptions{OrderID: "1001abc"})
	assert.ErrorIs(t, err, payment.ErrInvalidResponse)
}

func TestDeclineAndSISError(t *testing.T) {
	transport := (&testkit.FakeTransport{}).
		Reply(http.StatusOK, signedReplyBody(t, map[string]string{"Ds_Order": "1001", "Ds_Response": "0190"})).
		Reply(http.StatusOK, `{"errorCode":"SIS0042"}`)
	g := newTestGateway(t, transport)
	ctx := context.Background()

	resp, err := g.Authorize(ctx, 1000, testkit.Card(testkit.VisaNumber), &types.TransactionOptions{OrderID: "1001"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, models.ErrorCardDeclined, resp.ErrorCode)

	resp, err = g.Authorize(ctx, 1000, testkit.Card(testkit.VisaNumber), &types.TransactionOptions{OrderID: "1001"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, models.ErrorConfigError, resp.ErrorCode)
	assert.Equal(t, "SIS0042", resp.Param("errorCode"))
}

func TestFollowUpsReuseOrder(t *testing.T) {
	transport := (&testkit.FakeTransport{}).
		Reply(http.StatusOK, signedReplyBody(t, map[string]string{"Ds_Order": "1001", "Ds_Response": "0900"})).
		Reply(http.StatusOK, signedReplyBody(t, map[string]string{"Ds_Order": "1001", "Ds_Response": "0400"}))
	g := newTestGateway(t, transport)
	ctx := context.Background()

	resp, err := g.Capture(ctx, 600, "1001|1000|1", nil)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	params, _ := sentParameters(t, transport)
	assert.Equal(t, "1001", params.Order)
	assert.Equal(t, "600", params.Amount)
	assert.Equal(t, "2", params.TransactionType)

	resp, err = g.Void(ctx, "1001|1000|1", nil)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	params, _ = sentParameters(t, transport)
	assert.Equal(t, "1000", params.Amount)
	assert.Equal(t, "9", params.TransactionType)
}

func TestMalformedAuthorization(t *testing.T) {
	g := newTestGateway(t, &testkit.FakeTransport{})
	_, err := g.Refund(context.Background(), 100, "nonsense", nil)
	assert.ErrorIs(t, err, payment.ErrInvalidRequest)
}

func TestStoreReturnsIdentifier(t *testing.T) {
	transport := (&testkit.FakeTransport{}).Reply(http.StatusOK, signedReplyBody(t, map[string]string{
		"Ds_Order":               "7777777777",
		"Ds_Response":            "0000",
		"Ds_Merchant_Identifier": "a1b2c3d4e5",
	}))
	g := newTestGateway(t, transport)

	resp, err := g.Store(context.Background(), testkit.Card(testkit.VisaNumber), nil)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "a1b2c3d4e5", resp.Authorization)

	params, _ := sentParameters(t, transport)
	assert.Equal(t, identifierNew, params.Identifier)
	assert.Equal(t, "0", params.Amount)
	assert.Equal(t, "777777777777", params.Order)
}

func TestStoredTokenAndCredentialOnFile(t *testing.T) {
	transport := (&testkit.FakeTransport{}).Reply(http.StatusOK, signedReplyBody(t, map[string]string{
		"Ds_Order":              "1001",
		"Ds_Response":           "0000",
		"Ds_Merchant_Cof_Txnid": "NT-9",
	}))
	g := newTestGateway(t, transport)

	resp, err := g.Purchase(context.Background(), 500, models.StoredToken("a1b2c3d4e5"), &types.TransactionOptions{
		OrderID: "1001",
		StoredCredential: &types.StoredCredential{
			Initiator:            types.InitiatorMerchant,
			ReasonType:           types.ReasonRecurring,
			NetworkTransactionID: "NT-1",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "NT-9", resp.NetworkTransactionID)

	params, _ := sentParameters(t, transport)
	assert.Equal(t, "a1b2c3d4e5", params.Identifier)
	assert.Equal(t, "true", params.DirectPayment)
	assert.Equal(t, "N", params.CofIni)
	assert.Equal(t, "R", params.CofType)
	assert.Equal(t, "NT-1", params.CofTid)
	assert.Equal(t, "MIT", params.Exception)
	assert.Empty(t, params.Pan)
}

func TestThreeDSecureVersions(t *testing.T) {
	transport := (&testkit.FakeTransport{}).
		Reply(http.StatusOK, signedReplyBody(t, map[string]string{"Ds_Order": "1001", "Ds_Response": "0000"})).
		Reply(http.StatusOK, signedReplyBody(t, map[string]string{"Ds_Order": "1001", "Ds_Response": "0000"}))
	g := newTestGateway(t, transport)
	ctx := context.Background()

	_, err := g.Purchase(ctx, 500, testkit.Card(testkit.VisaNumber), &types.TransactionOptions{
		OrderID:      "1001",
		ThreeDSecure: &types.ThreeDSecure{Version: "2.1.0", CAVV: "cavv", DSTransactionID: "ds"},
	})
	require.NoError(t, err)
	params, _ := sentParameters(t, transport)
	require.NotNil(t, params.EMV3DS)
	assert.Equal(t, "2.1.0", params.EMV3DS.ProtocolVersion)
	assert.Equal(t, "cavv", params.EMV3DS.AuthenticacionValue)

	_, err = g.Purchase(ctx, 500, testkit.Card(testkit.VisaNumber), &types.TransactionOptions{
		OrderID:      "1001",
		ThreeDSecure: &types.ThreeDSecure{Version: "1.0.2", CAVV: "cavv", XID: "xid", ECI: "05"},
	})
	require.NoError(t, err)
	params, _ = sentParameters(t, transport)
	require.NotNil(t, params.MPIExternal)
	assert.Equal(t, "xid", params.MPIExternal.TXID)
}

func TestCleanOrderID(t *testing.T) {
	g := newTestGateway(t, &testkit.FakeTransport{})
	assert.Equal(t, "1234abcd5678", g.cleanOrderID("1234-abcd-5678-extra"))
	assert.Equal(t, "7777order123", g.cleanOrderID("order-1234"))
	assert.Equal(t, "777777777777", g.cleanOrderID(""))
}

func TestUnstoreUnsupported(t *testing.T) {
	g := newTestGateway(t, &testkit.FakeTransport{})
	_, err := g.Unstore(context.Background(), "token", nil)
	assert.ErrorIs(t, err, payment.ErrNotSupported)
}
