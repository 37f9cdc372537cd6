package models

// Match outcomes for AVSResult street and postal checks. An empty string
// means the check was not performed or the outcome is unknown.
const (
	MatchYes         = "Y"
	MatchNo          = "N"
	MatchUnsupported = "X"
)

var avsMessages = map[string]string{
	"A": "Street address matches, but postal code does not match.",
	"B": "Street address matches, but postal code not verified.",
	"C": "Street address and postal code do not match.",
	"D": "Street address and postal code match.",
	"E": "AVS data is invalid or AVS is not allowed for this card type.",
	"F": "Card member's name does not match, but billing postal code matches.",
	"G": "Non-U.S. issuing bank does not support AVS.",
	"H": "Card member's name does not match. Street address and postal code match.",
	"I": "Address not verified.",
	"J": "Card member's name, billing address, and postal code match. Shipping information verified and chargeback protection guaranteed through the Fraud Protection Program.",
	"K": "Card member's name matches but billing address and billing postal code do not match.",
	"L": "Card member's name and billing postal code match, but billing address does not match.",
	"M": "Street address and postal code match.",
	"N": "Street address and postal code do not match.",
	"O": "Card member's name and billing address match, but billing postal code does not match.",
	"P": "Postal code matches, but street address not verified.",
	"Q": "Card member's name, billing address, and postal code match. Shipping information verified but chargeback protection not guaranteed.",
	"R": "System unavailable.",
	"S": "U.S.-issuing bank does not support AVS.",
	"T": "Card member's name does not match, but street address matches.",
	"U": "Address information unavailable.",
	"V": "Card member's name, billing address, and billing postal code match.",
	"W": "Street address does not match, but 9-digit postal code matches.",
	"X": "Street address and 9-digit postal code match.",
	"Y": "Street address and 5-digit postal code match.",
	"Z": "Street address does not match, but 5-digit postal code matches.",
}

var postalMatch = codeTable(map[string]string{
	MatchYes:         "DHFJLMPQVWXYZ",
	MatchNo:          "ACKNO",
	MatchUnsupported: "GS",
})

var streetMatch = codeTable(map[string]string{
	MatchYes:         "ABDHJMOQTVXY",
	MatchNo:          "CKLNWZ",
	MatchUnsupported: "GS",
})

// AVSResult is a standard address verification outcome.
type AVSResult struct {
	Code        string `json:"code,omitempty"`
	Message     string `json:"message,omitempty"`
	StreetMatch string `json:"street_match,omitempty"`
	PostalMatch string `json:"postal_match,omitempty"`
}

// NewAVSResult builds a result from a standard AVS code. Unknown codes
// produce an empty result.
func NewAVSResult(code string) AVSResult {
	msg, ok := avsMessages[code]
	if !ok {
		return AVSResult{}
	}
	return AVSResult{
		Code:        code,
		Message:     msg,
		StreetMatch: streetMatch[code],
		PostalMatch: postalMatch[code],
	}
}

// AVSFromMatches builds a result for processors that report street and
// postal checks separately instead of returning a single letter.
func AVSFromMatches(street, postal string) AVSResult {
	switch {
	case street == MatchYes && postal == MatchYes:
		return NewAVSResult("D")
	case street == MatchYes && postal == MatchNo:
		return NewAVSResult("A")
	case street == MatchNo && postal == MatchYes:
		return NewAVSResult("Z")
	case street == MatchNo && postal == MatchNo:
		return NewAVSResult("N")
	case street == MatchYes:
		return NewAVSResult("B")
	case postal == MatchYes:
		return NewAVSResult("P")
	}
	return AVSResult{}
}

// Empty reports whether no AVS outcome is available.
func (r AVSResult) Empty() bool {
	return r.Code == ""
}

func codeTable(groups map[string]string) map[string]string {
	out := make(map[string]string)
	for match, codes := range groups {
		for _, c := range codes {
			out[string(c)] = match
		}
	}
	return out
}
