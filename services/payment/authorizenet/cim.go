package authorizenet

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"multigateway-api/models"
	"multigateway-api/services/payment"
	"multigateway-api/types"
)

// customerAction marks an authorization that refers to a CIM profile rather
// than a transaction.
const customerAction = "customer"

// Store creates a customer profile holding the card. The authorization is
// "customerProfileId#paymentProfileId#customer" and can be passed back to
// Purchase or Authorize as a models.StoredToken.
func (c *Client) Store(ctx context.Context, card *models.CreditCard, opts *types.TransactionOptions) (*models.Response, error) {
	opts = opts.OrEmpty()

	merchantCustomerID := opts.CustomerID
	if merchantCustomerID == "" {
		merchantCustomerID = payment.GenerateOrderID("")
	}

	paymentProfile := CustomerPaymentProfileType{
		CustomerType: "individual",
		BillTo:       address(opts.BillingAddress, card),
		Payment: &PaymentType{
			CreditCard: &CreditCardType{
				CardNumber:     models.NormalizeNumber(card.Number),
				ExpirationDate: card.ExpiryYYYYMM(),
				CardCode:       card.VerificationValue,
			},
		},
		DefaultPaymentProfile: true,
	}

	request := createCustomerProfileRequestWrapper{
		CreateCustomerProfileRequest: createCustomerProfileRequest{
			MerchantAuthentication: c.getMerchantAuthentication(),
			RefID:                  payment.Truncate(opts.OrderID, 20),
			Profile: CustomerProfileType{
				MerchantCustomerID: payment.Truncate(merchantCustomerID, 20),
				Description:        payment.Truncate(opts.Description, 255),
				Email:              opts.Email,
				PaymentProfiles:    []CustomerPaymentProfileType{paymentProfile},
			},
			ValidationMode: c.validationMode,
		},
	}

	var response createCustomerProfileResponse
	if err := c.post(ctx, request, &response); err != nil {
		return nil, err
	}

	resp := &models.Response{
		Test: c.test,
		Params: map[string]string{
			"result_code": response.Messages.ResultCode,
		},
	}
	if len(response.Messages.Message) > 0 {
		resp.Message = response.Messages.Message[0].Text
		resp.Params["message_code"] = response.Messages.Message[0].Code
	}

	if response.Messages.ResultCode == "Error" {
		if resp.Params["message_code"] == "E00039" {
			return c.resolveDuplicateProfile(ctx, resp)
		}
		resp.ErrorCode = models.ErrorProcessingError
		return resp, nil
	}

	if response.CustomerProfileID == "" || len(response.CustomerPaymentProfileIDList) == 0 {
		return nil, payment.ErrInvalidResponse
	}

	resp.Success = true
	resp.Authorization = profileToken(response.CustomerProfileID, response.CustomerPaymentProfileIDList[0])
	resp.Params["customer_profile_id"] = response.CustomerProfileID
	resp.Params["customer_payment_profile_id"] = response.CustomerPaymentProfileIDList[0]
	return resp, nil
}

// resolveDuplicateProfile looks up the payment profile of an existing
// customer profile named in an E00039 message.
func (c *Client) resolveDuplicateProfile(ctx context.Context, resp *models.Response) (*models.Response, error) {
	existingProfileID := extractProfileIDFromDuplicateError(resp.Message)
	if existingProfileID == "" {
		resp.ErrorCode = models.ErrorProcessingError
		return resp, nil
	}

	request := getCustomerProfileRequestWrapper{
		GetCustomerProfileRequest: getCustomerProfileRequest{
			MerchantAuthentication: c.getMerchantAuthentication(),
			CustomerProfileID:      existingProfileID,
		},
	}
	var response getCustomerProfileResponse
	if err := c.post(ctx, request, &response); err != nil {
		return nil, err
	}
	if response.Messages.ResultCode == "Error" || len(response.Profile.PaymentProfiles) == 0 {
		c.logger.Warn("existing customer profile has no payment profile",
			zap.String("customer_profile_id", existingProfileID))
		resp.ErrorCode = models.ErrorProcessingError
		return resp, nil
	}

	paymentProfileID := response.Profile.PaymentProfiles[0].CustomerPaymentProfileID
	resp.Success = true
	resp.Authorization = profileToken(existingProfileID, paymentProfileID)
	resp.Params["customer_profile_id"] = existingProfileID
	resp.Params["customer_payment_profile_id"] = paymentProfileID
	resp.Params["duplicate"] = "true"
	return resp, nil
}

// Unstore deletes the customer profile referenced by a Store authorization.
func (c *Client) Unstore(ctx context.Context, authorization string, opts *types.TransactionOptions) (*models.Response, error) {
	profile, err := parseProfileToken(authorization)
	if err != nil {
		return nil, err
	}
	request := deleteCustomerProfileRequestWrapper{
		DeleteCustomerProfileRequest: deleteCustomerProfileRequest{
			MerchantAuthentication: c.getMerchantAuthentication(),
			CustomerProfileID:      profile.CustomerProfileID,
		},
	}
	var response deleteCustomerProfileResponse
	if err := c.post(ctx, request, &response); err != nil {
		return nil, err
	}

	resp := &models.Response{
		Success: response.Messages.ResultCode == "Ok",
		Test:    c.test,
		Params:  map[string]string{"result_code": response.Messages.ResultCode},
	}
	if len(response.Messages.Message) > 0 {
		resp.Message = response.Messages.Message[0].Text
		resp.Params["message_code"] = response.Messages.Message[0].Code
	}
	if !resp.Success {
		resp.ErrorCode = models.ErrorProcessingError
	}
	return resp, nil
}

func profileToken(customerProfileID, paymentProfileID string) string {
	return strings.Join([]string{customerProfileID, paymentProfileID, customerAction}, "#")
}

func parseProfileToken(token string) (*profileTransType, error) {
	parts := strings.Split(token, "#")
	if len(parts) != 3 || parts[2] != customerAction || parts[0] == "" || parts[1] == "" {
		return nil, payment.InvalidRequest("malformed stored card token")
	}
	return &profileTransType{
		CustomerProfileID: parts[0],
		PaymentProfile:    paymentProfileRef{PaymentProfileID: parts[1]},
	}, nil
}

// extractProfileIDFromDuplicateError pulls the profile id out of messages like
// "A duplicate record with ID 123456789 already exists."
func extractProfileIDFromDuplicateError(errorMessage string) string {
	words := strings.Fields(errorMessage)
	for i, word := range words {
		if strings.EqualFold(word, "ID") && i+1 < len(words) {
			potentialID := strings.TrimRight(words[i+1], ".")
			if isNumeric(potentialID) {
				return potentialID
			}
		}
	}
	return ""
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, char := range s {
		if char < '0' || char > '9' {
			return false
		}
	}
	return true
}
