package types

// Address is a billing or shipping address passed to gateways.
type Address struct {
	Name     string `json:"name,omitempty"`
	Company  string `json:"company,omitempty"`
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Zip      string `json:"zip,omitempty"`
	Country  string `json:"country,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Stored credential initiators.
const (
	InitiatorCardholder = "cardholder"
	InitiatorMerchant   = "merchant"
)

// Stored credential reasons.
const (
	ReasonRecurring   = "recurring"
	ReasonInstallment = "installment"
	ReasonUnscheduled = "unscheduled"
)

// StoredCredential carries card-network metadata for credential-on-file
// transactions. Gateways pass it through without interpretation beyond
// mapping it onto their own field names.
type StoredCredential struct {
	InitialTransaction   bool   `json:"initial_transaction"`
	Initiator            string `json:"initiator,omitempty"`
	ReasonType           string `json:"reason_type,omitempty"`
	NetworkTransactionID string `json:"network_transaction_id,omitempty"`
}

// MerchantInitiated reports whether the merchant started the transaction.
func (s *StoredCredential) MerchantInitiated() bool {
	return s != nil && s.Initiator == InitiatorMerchant
}

// Subsequent reports whether this is a follow-up use of an already stored credential.
func (s *StoredCredential) Subsequent() bool {
	return s != nil && !s.InitialTransaction
}

// ThreeDSecure holds the result of an external 3-D Secure authentication.
type ThreeDSecure struct {
	Version                      string `json:"version,omitempty"`
	ECI                          string `json:"eci,omitempty"`
	CAVV                         string `json:"cavv,omitempty"`
	XID                          string `json:"xid,omitempty"`
	DSTransactionID              string `json:"ds_transaction_id,omitempty"`
	AuthenticationResponseStatus string `json:"authentication_response_status,omitempty"`
}

// IsV2 reports whether the authentication used EMV 3DS (version 2.x).
func (t *ThreeDSecure) IsV2() bool {
	return t != nil && len(t.Version) > 0 && t.Version[0] == '2'
}

// TransactionOptions are the optional parameters accepted by every gateway verb.
type TransactionOptions struct {
	OrderID          string            `json:"order_id,omitempty"`
	Currency         string            `json:"currency,omitempty"`
	Description      string            `json:"description,omitempty"`
	Email            string            `json:"email,omitempty"`
	CustomerID       string            `json:"customer_id,omitempty"`
	IP               string            `json:"ip,omitempty"`
	BillingAddress   *Address          `json:"billing_address,omitempty"`
	ShippingAddress  *Address          `json:"shipping_address,omitempty"`
	StoredCredential *StoredCredential `json:"stored_credential,omitempty"`
	ThreeDSecure     *ThreeDSecure     `json:"three_d_secure,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// OrEmpty returns o, or a zero value when o is nil, so callers never check for nil.
func (o *TransactionOptions) OrEmpty() *TransactionOptions {
	if o == nil {
		return &TransactionOptions{}
	}
	return o
}

// CurrencyOr returns the configured currency or def when none is set.
func (o *TransactionOptions) CurrencyOr(def string) string {
	if o == nil || o.Currency == "" {
		return def
	}
	return o.Currency
}
