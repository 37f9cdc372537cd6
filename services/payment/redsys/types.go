package redsys

// MerchantParameters is the JSON document sent base64-encoded as
// Ds_MerchantParameters.
type MerchantParameters struct {
	Amount             string       `json:"DS_MERCHANT_AMOUNT"`
	Order              string       `json:"DS_MERCHANT_ORDER"`
	MerchantCode       string       `json:"DS_MERCHANT_MERCHANTCODE"`
	Currency           string       `json:"DS_MERCHANT_CURRENCY"`
	TransactionType    string       `json:"DS_MERCHANT_TRANSACTIONTYPE"`
	Terminal           string       `json:"DS_MERCHANT_TERMINAL"`
	Pan                string       `json:"DS_MERCHANT_PAN,omitempty"`
	ExpiryDate         string       `json:"DS_MERCHANT_EXPIRYDATE,omitempty"`
	CVV2               string       `json:"DS_MERCHANT_CVV2,omitempty"`
	Titular            string       `json:"DS_MERCHANT_TITULAR,omitempty"`
	ProductDescription string       `json:"DS_MERCHANT_PRODUCTDESCRIPTION,omitempty"`
	Identifier         string       `json:"DS_MERCHANT_IDENTIFIER,omitempty"`
	DirectPayment      string       `json:"DS_MERCHANT_DIRECTPAYMENT,omitempty"`
	Exception          string       `json:"DS_MERCHANT_EXCEP_SCA,omitempty"`
	CofIni             string       `json:"DS_MERCHANT_COF_INI,omitempty"`
	CofType            string       `json:"DS_MERCHANT_COF_TYPE,omitempty"`
	CofTid             string       `json:"DS_MERCHANT_COF_TXNID,omitempty"`
	EMV3DS             *emv3DS      `json:"DS_MERCHANT_EMV3DS,omitempty"`
	MPIExternal        *mpiExternal `json:"DS_MERCHANT_MPIEXTERNAL,omitempty"`
}

// emv3DS carries an external 3DS 2.x authentication. Field names follow the
// Redsys spelling.
type emv3DS struct {
	ProtocolVersion     string `json:"protocolVersion"`
	AuthenticacionValue string `json:"authenticacionValue,omitempty"`
	DSTransID           string `json:"dsTransID,omitempty"`
	ECI                 string `json:"eci,omitempty"`
}

// mpiExternal carries an external 3DS 1.0 authentication.
type mpiExternal struct {
	TXID string `json:"TXID,omitempty"`
	CAVV string `json:"CAVV,omitempty"`
	ECI  string `json:"ECI,omitempty"`
}

type signedRequest struct {
	SignatureVersion   string `json:"Ds_SignatureVersion"`
	MerchantParameters string `json:"Ds_MerchantParameters"`
	Signature          string `json:"Ds_Signature"`
}

type signedReply struct {
	SignatureVersion   string `json:"Ds_SignatureVersion"`
	MerchantParameters string `json:"Ds_MerchantParameters"`
	Signature          string `json:"Ds_Signature"`
	ErrorCode          string `json:"errorCode"`
}
