package models

// APIResponse is the envelope returned by the HTTP API.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Standard error codes. Gateways map their processor-specific decline and
// error codes onto these.
const (
	ErrorIncorrectNumber    = "incorrect_number"
	ErrorInvalidNumber      = "invalid_number"
	ErrorInvalidExpiryDate  = "invalid_expiry_date"
	ErrorInvalidCVC         = "invalid_cvc"
	ErrorExpiredCard        = "expired_card"
	ErrorIncorrectCVC       = "incorrect_cvc"
	ErrorIncorrectZip       = "incorrect_zip"
	ErrorIncorrectAddress   = "incorrect_address"
	ErrorIncorrectPIN       = "incorrect_pin"
	ErrorCardDeclined       = "card_declined"
	ErrorProcessingError    = "processing_error"
	ErrorCallIssuer         = "call_issuer"
	ErrorPickupCard         = "pickup_card"
	ErrorConfigError        = "config_error"
	ErrorTestModeLiveCard   = "test_mode_live_card"
	ErrorUnsupportedFeature = "unsupported_feature"
	ErrorInvalidAmount      = "invalid_amount"
)

// Response is the normalized outcome of a gateway call.
type Response struct {
	Success              bool              `json:"success"`
	Message              string            `json:"message"`
	Authorization        string            `json:"authorization,omitempty"`
	ErrorCode            string            `json:"error_code,omitempty"`
	AVSResult            AVSResult         `json:"avs_result"`
	CVVResult            CVVResult         `json:"cvv_result"`
	NetworkTransactionID string            `json:"network_transaction_id,omitempty"`
	FraudReview          bool              `json:"fraud_review,omitempty"`
	Test                 bool              `json:"test"`
	Params               map[string]string `json:"params,omitempty"`
}

// Param returns a raw processor field or "".
func (r *Response) Param(key string) string {
	if r == nil || r.Params == nil {
		return ""
	}
	return r.Params[key]
}
