package authorizenet

// Field order follows the Authorize.Net schema; the JSON endpoint rejects
// elements that appear out of sequence.

type createTransactionRequestWrapper struct {
	CreateTransactionRequest createTransactionRequest `json:"createTransactionRequest"`
}

type createTransactionRequest struct {
	MerchantAuthentication merchantAuthenticationType `json:"merchantAuthentication"`
	RefID                  string                     `json:"refId,omitempty"`
	TransactionRequest     transactionRequestType     `json:"transactionRequest"`
}

type merchantAuthenticationType struct {
	Name           string `json:"name"`
	TransactionKey string `json:"transactionKey"`
}

type CreditCardType struct {
	CardNumber     string `json:"cardNumber"`
	ExpirationDate string `json:"expirationDate"`
	CardCode       string `json:"cardCode,omitempty"`
}

type TrackDataType struct {
	Track1 string `json:"track1,omitempty"`
	Track2 string `json:"track2,omitempty"`
}

type PaymentType struct {
	CreditCard *CreditCardType `json:"creditCard,omitempty"`
	TrackData  *TrackDataType  `json:"trackData,omitempty"`
}

type paymentProfileRef struct {
	PaymentProfileID string `json:"paymentProfileId"`
}

type profileTransType struct {
	CustomerProfileID string            `json:"customerProfileId"`
	PaymentProfile    paymentProfileRef `json:"paymentProfile"`
}

type OrderType struct {
	InvoiceNumber string `json:"invoiceNumber,omitempty"`
	Description   string `json:"description,omitempty"`
}

type CustomerType struct {
	Type  string `json:"type,omitempty"`
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
}

type CustomerAddressType struct {
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Company     string `json:"company,omitempty"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Zip         string `json:"zip,omitempty"`
	Country     string `json:"country,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

type cardholderAuthenticationType struct {
	AuthenticationIndicator       string `json:"authenticationIndicator,omitempty"`
	CardholderAuthenticationValue string `json:"cardholderAuthenticationValue,omitempty"`
}

type retailType struct {
	MarketType string `json:"marketType"`
	DeviceType string `json:"deviceType"`
}

type SettingType struct {
	SettingName  string `json:"settingName"`
	SettingValue string `json:"settingValue"`
}

type TransactionSettingsType struct {
	Settings []SettingType `json:"setting"`
}

type processingOptionsType struct {
	IsFirstRecurringPayment string `json:"isFirstRecurringPayment,omitempty"`
	IsFirstSubsequentAuth   string `json:"isFirstSubsequentAuth,omitempty"`
	IsSubsequentAuth        string `json:"isSubsequentAuth,omitempty"`
	IsStoredCredentials     string `json:"isStoredCredentials,omitempty"`
}

type subsequentAuthInformationType struct {
	OriginalNetworkTransID string `json:"originalNetworkTransId,omitempty"`
	Reason                 string `json:"reason,omitempty"`
}

type transactionRequestType struct {
	TransactionType           string                         `json:"transactionType"`
	Amount                    string                         `json:"amount,omitempty"`
	CurrencyCode              string                         `json:"currencyCode,omitempty"`
	Payment                   *PaymentType                   `json:"payment,omitempty"`
	Profile                   *profileTransType              `json:"profile,omitempty"`
	RefTransID                string                         `json:"refTransId,omitempty"`
	Order                     *OrderType                     `json:"order,omitempty"`
	Customer                  *CustomerType                  `json:"customer,omitempty"`
	BillTo                    *CustomerAddressType           `json:"billTo,omitempty"`
	ShipTo                    *CustomerAddressType           `json:"shipTo,omitempty"`
	CustomerIP                string                         `json:"customerIP,omitempty"`
	CardholderAuthentication  *cardholderAuthenticationType  `json:"cardholderAuthentication,omitempty"`
	Retail                    *retailType                    `json:"retail,omitempty"`
	TransactionSettings       *TransactionSettingsType       `json:"transactionSettings,omitempty"`
	ProcessingOptions         *processingOptionsType         `json:"processingOptions,omitempty"`
	SubsequentAuthInformation *subsequentAuthInformationType `json:"subsequentAuthInformation,omitempty"`
}

type MessageType struct {
	Code        string `json:"code"`
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
}

type MessagesType struct {
	ResultCode string        `json:"resultCode"`
	Message    []MessageType `json:"message"`
}

type transactionErrorType struct {
	ErrorCode string `json:"errorCode"`
	ErrorText string `json:"errorText"`
}

type transactionResponse struct {
	ResponseCode   string                 `json:"responseCode"`
	AuthCode       string                 `json:"authCode"`
	AVSResultCode  string                 `json:"avsResultCode"`
	CVVResultCode  string                 `json:"cvvResultCode"`
	TransID        string                 `json:"transId"`
	RefTransID     string                 `json:"refTransID"`
	AccountNumber  string                 `json:"accountNumber"`
	AccountType    string                 `json:"accountType"`
	NetworkTransID string                 `json:"networkTransId"`
	Messages       []MessageType          `json:"messages,omitempty"`
	Errors         []transactionErrorType `json:"errors,omitempty"`
}

type createTransactionResponse struct {
	TransactionResponse transactionResponse `json:"transactionResponse"`
	RefID               string              `json:"refId"`
	Messages            MessagesType        `json:"messages"`
}

// CIM

type CustomerPaymentProfileType struct {
	CustomerType          string               `json:"customerType,omitempty"`
	BillTo                *CustomerAddressType `json:"billTo,omitempty"`
	Payment               *PaymentType         `json:"payment,omitempty"`
	DefaultPaymentProfile bool                 `json:"defaultPaymentProfile,omitempty"`
}

type CustomerProfileType struct {
	MerchantCustomerID string                       `json:"merchantCustomerId,omitempty"`
	Description        string                       `json:"description,omitempty"`
	Email              string                       `json:"email,omitempty"`
	PaymentProfiles    []CustomerPaymentProfileType `json:"paymentProfiles,omitempty"`
}

type createCustomerProfileRequestWrapper struct {
	CreateCustomerProfileRequest createCustomerProfileRequest `json:"createCustomerProfileRequest"`
}

type createCustomerProfileRequest struct {
	MerchantAuthentication merchantAuthenticationType `json:"merchantAuthentication"`
	RefID                  string                     `json:"refId,omitempty"`
	Profile                CustomerProfileType        `json:"profile"`
	ValidationMode         string                     `json:"validationMode,omitempty"`
}

type createCustomerProfileResponse struct {
	CustomerProfileID            string       `json:"customerProfileId"`
	CustomerPaymentProfileIDList []string     `json:"customerPaymentProfileIdList"`
	ValidationDirectResponseList []string     `json:"validationDirectResponseList"`
	Messages                     MessagesType `json:"messages"`
}

type getCustomerProfileRequestWrapper struct {
	GetCustomerProfileRequest getCustomerProfileRequest `json:"getCustomerProfileRequest"`
}

type getCustomerProfileRequest struct {
	MerchantAuthentication merchantAuthenticationType `json:"merchantAuthentication"`
	CustomerProfileID      string                     `json:"customerProfileId"`
}

type getCustomerProfileResponse struct {
	Profile struct {
		CustomerProfileID string `json:"customerProfileId"`
		PaymentProfiles   []struct {
			CustomerPaymentProfileID string `json:"customerPaymentProfileId"`
		} `json:"paymentProfiles"`
	} `json:"profile"`
	Messages MessagesType `json:"messages"`
}

type deleteCustomerProfileRequestWrapper struct {
	DeleteCustomerProfileRequest deleteCustomerProfileRequest `json:"deleteCustomerProfileRequest"`
}

type deleteCustomerProfileRequest struct {
	MerchantAuthentication merchantAuthenticationType `json:"merchantAuthentication"`
	CustomerProfileID      string                     `json:"customerProfileId"`
}

type deleteCustomerProfileResponse struct {
	Messages MessagesType `json:"messages"`
}
