package cybersource

import "encoding/xml"

const (
	soapNS        = "http://schemas.xmlsoap.org/soap/envelope/"
	wsseNS        = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	passwordText  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordText"
	transactionNS = "urn:schemas-cybersource-com:transaction-data-1.181"
)

// Request structures. Element order is the schema sequence of requestMessage.

type soapEnvelope struct {
	XMLName xml.Name   `xml:"s:Envelope"`
	SoapNS  string     `xml:"xmlns:s,attr"`
	Header  soapHeader `xml:"s:Header"`
	Body    soapBody   `xml:"s:Body"`
}

type soapHeader struct {
	Security wsseSecurity `xml:"wsse:Security"`
}

type wsseSecurity struct {
	MustUnderstand string        `xml:"s:mustUnderstand,attr"`
	WsseNS         string        `xml:"xmlns:wsse,attr"`
	UsernameToken  usernameToken `xml:"wsse:UsernameToken"`
}

type usernameToken struct {
	Username string       `xml:"wsse:Username"`
	Password wssePassword `xml:"wsse:Password"`
}

type wssePassword struct {
	Type  string `xml:"Type,attr"`
	Value string `xml:",chardata"`
}

type soapBody struct {
	RequestMessage requestMessage `xml:"requestMessage"`
}

type requestMessage struct {
	XMLNS                          string                 `xml:"xmlns,attr"`
	MerchantID                     string                 `xml:"merchantID"`
	MerchantReferenceCode          string                 `xml:"merchantReferenceCode"`
	ClientLibrary                  string                 `xml:"clientLibrary"`
	ClientLibraryVersion           string                 `xml:"clientLibraryVersion"`
	BillTo                         *billTo                `xml:"billTo,omitempty"`
	ShipTo                         *shipTo                `xml:"shipTo,omitempty"`
	PurchaseTotals                 *purchaseTotals        `xml:"purchaseTotals,omitempty"`
	Pos                            *pos                   `xml:"pos,omitempty"`
	Card                           *card                  `xml:"card,omitempty"`
	UCAF                           *ucaf                  `xml:"ucaf,omitempty"`
	RecurringSubscriptionInfo      *subscriptionInfo      `xml:"recurringSubscriptionInfo,omitempty"`
	OrderRequestToken              string                 `xml:"orderRequestToken,omitempty"`
	CCAuthService                  *ccAuthService         `xml:"ccAuthService,omitempty"`
	CCCaptureService               *ccCaptureService      `xml:"ccCaptureService,omitempty"`
	CCCreditService                *ccCreditService       `xml:"ccCreditService,omitempty"`
	CCAuthReversalService          *ccAuthReversalService `xml:"ccAuthReversalService,omitempty"`
	PaySubscriptionCreateService   *runService            `xml:"paySubscriptionCreateService,omitempty"`
	PaySubscriptionDeleteService   *runService            `xml:"paySubscriptionDeleteService,omitempty"`
	VoidService                    *voidService           `xml:"voidService,omitempty"`
	SubsequentAuth                 string                 `xml:"subsequentAuth,omitempty"`
	SubsequentAuthReason           string                 `xml:"subsequentAuthReason,omitempty"`
	SubsequentAuthTransactionID    string                 `xml:"subsequentAuthTransactionID,omitempty"`
	SubsequentAuthStoredCredential string                 `xml:"subsequentAuthStoredCredential,omitempty"`
	SubsequentAuthFirst            string                 `xml:"subsequentAuthFirst,omitempty"`
}

type billTo struct {
	FirstName   string `xml:"firstName"`
	LastName    string `xml:"lastName"`
	Company     string `xml:"company,omitempty"`
	Street1     string `xml:"street1"`
	Street2     string `xml:"street2,omitempty"`
	City        string `xml:"city"`
	State       string `xml:"state,omitempty"`
	PostalCode  string `xml:"postalCode"`
	Country     string `xml:"country"`
	PhoneNumber string `xml:"phoneNumber,omitempty"`
	Email       string `xml:"email"`
	IPAddress   string `xml:"ipAddress,omitempty"`
	CustomerID  string `xml:"customerID,omitempty"`
}

type shipTo struct {
	FirstName  string `xml:"firstName,omitempty"`
	LastName   string `xml:"lastName,omitempty"`
	Street1    string `xml:"street1"`
	Street2    string `xml:"street2,omitempty"`
	City       string `xml:"city"`
	State      string `xml:"state,omitempty"`
	PostalCode string `xml:"postalCode"`
	Country    string `xml:"country"`
}

type purchaseTotals struct {
	Currency         string `xml:"currency"`
	GrandTotalAmount string `xml:"grandTotalAmount,omitempty"`
}

type pos struct {
	EntryMode   string `xml:"entryMode"`
	CardPresent string `xml:"cardPresent"`
	TrackData   string `xml:"trackData"`
}

type card struct {
	AccountNumber   string `xml:"accountNumber,omitempty"`
	ExpirationMonth string `xml:"expirationMonth"`
	ExpirationYear  string `xml:"expirationYear"`
	CVIndicator     string `xml:"cvIndicator,omitempty"`
	CVNumber        string `xml:"cvNumber,omitempty"`
	CardType        string `xml:"cardType,omitempty"`
}

type ucaf struct {
	AuthenticationData  string `xml:"authenticationData,omitempty"`
	CollectionIndicator string `xml:"collectionIndicator"`
}

type subscriptionInfo struct {
	SubscriptionID string `xml:"subscriptionID,omitempty"`
	Frequency      string `xml:"frequency,omitempty"`
}

type ccAuthService struct {
	Run                          string `xml:"run,attr"`
	CAVV                         string `xml:"cavv,omitempty"`
	CommerceIndicator            string `xml:"commerceIndicator,omitempty"`
	ECIRaw                       string `xml:"eciRaw,omitempty"`
	XID                          string `xml:"xid,omitempty"`
	PaSpecificationVersion       string `xml:"paSpecificationVersion,omitempty"`
	DirectoryServerTransactionID string `xml:"directoryServerTransactionID,omitempty"`
}

type ccCaptureService struct {
	Run              string `xml:"run,attr"`
	AuthRequestID    string `xml:"authRequestID,omitempty"`
	AuthRequestToken string `xml:"authRequestToken,omitempty"`
}

type ccCreditService struct {
	Run                 string `xml:"run,attr"`
	CaptureRequestID    string `xml:"captureRequestID"`
	CaptureRequestToken string `xml:"captureRequestToken,omitempty"`
}

type ccAuthReversalService struct {
	Run              string `xml:"run,attr"`
	AuthRequestID    string `xml:"authRequestID,omitempty"`
	AuthRequestToken string `xml:"authRequestToken,omitempty"`
}

type voidService struct {
	Run              string `xml:"run,attr"`
	VoidRequestID    string `xml:"voidRequestID"`
	VoidRequestToken string `xml:"voidRequestToken,omitempty"`
}

type runService struct {
	Run string `xml:"run,attr"`
}

// Response structures. Matching is by local name so the c: prefix is ignored.

type soapResponseEnvelope struct {
	XMLName xml.Name         `xml:"Envelope"`
	Body    soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	ReplyMessage *replyMessage  `xml:"replyMessage"`
	Fault        *soapFaultBody `xml:"Fault"`
}

type replyMessage struct {
	MerchantReferenceCode      string               `xml:"merchantReferenceCode"`
	RequestID                  string               `xml:"requestID"`
	Decision                   string               `xml:"decision"`
	ReasonCode                 int                  `xml:"reasonCode"`
	RequestToken               string               `xml:"requestToken"`
	MissingField               []string             `xml:"missingField"`
	InvalidField               []string             `xml:"invalidField"`
	PurchaseTotals             *replyPurchaseTotals `xml:"purchaseTotals"`
	CCAuthReply                *ccAuthReply         `xml:"ccAuthReply"`
	CCCaptureReply             *amountReply         `xml:"ccCaptureReply"`
	CCCreditReply              *amountReply         `xml:"ccCreditReply"`
	CCAuthReversalReply        *amountReply         `xml:"ccAuthReversalReply"`
	VoidReply                  *amountReply         `xml:"voidReply"`
	PaySubscriptionCreateReply *subscriptionReply   `xml:"paySubscriptionCreateReply"`
	PaySubscriptionDeleteReply *subscriptionReply   `xml:"paySubscriptionDeleteReply"`
}

type replyPurchaseTotals struct {
	Currency string `xml:"currency"`
}

type ccAuthReply struct {
	ReasonCode                  int    `xml:"reasonCode"`
	Amount                      string `xml:"amount"`
	AuthorizationCode           string `xml:"authorizationCode"`
	AVSCode                     string `xml:"avsCode"`
	AVSCodeRaw                  string `xml:"avsCodeRaw"`
	CVCode                      string `xml:"cvCode"`
	CVCodeRaw                   string `xml:"cvCodeRaw"`
	ProcessorResponse           string `xml:"processorResponse"`
	PaymentNetworkTransactionID string `xml:"paymentNetworkTransactionID"`
}

type amountReply struct {
	ReasonCode int    `xml:"reasonCode"`
	Amount     string `xml:"amount"`
}

type subscriptionReply struct {
	ReasonCode     int    `xml:"reasonCode"`
	SubscriptionID string `xml:"subscriptionID"`
}

type soapFaultBody struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}
