package models

var cvvMessages = map[string]string{
	"D": "CVV check flagged transaction as suspicious",
	"I": "CVV failed data validation check",
	"M": "CVV matches",
	"N": "CVV does not match",
	"P": "CVV not processed",
	"S": "CVV should have been present",
	"U": "CVV request unable to be processed by issuer",
	"X": "Card does not support CVV",
}

// CVVResult is a standard card verification value outcome.
type CVVResult struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewCVVResult builds a result from a standard CVV code. Unknown codes
// produce an empty result.
func NewCVVResult(code string) CVVResult {
	msg, ok := cvvMessages[code]
	if !ok {
		return CVVResult{}
	}
	return CVVResult{Code: code, Message: msg}
}

// Empty reports whether no CVV outcome is available.
func (r CVVResult) Empty() bool {
	return r.Code == ""
}
