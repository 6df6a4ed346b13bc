// Package twilio sends and checks verification codes through Twilio Verify.
package twilio

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/verify/v2"

	"github.com/dtroode/phoneauth/internal/logger"
	"github.com/dtroode/phoneauth/internal/model"
)

const statusApproved = "approved"

// Twilio error codes, see https://www.twilio.com/docs/api/errors.
const (
	errInvalidParameter    = 60200
	errMaxCheckAttempts    = 60202
	errMaxSendAttempts     = 60203
	errNotFound            = 20404
	errTooManyRequests     = 20429
	errInvalidToNumber     = 21211
	errUnverifiedToNumber  = 21614
	errLandlineUnreachable = 60205
)

type verifyAPI interface {
	CreateVerification(serviceSid string, params *openapi.CreateVerificationParams) (*openapi.VerifyV2Verification, error)
	CreateVerificationCheck(serviceSid string, params *openapi.CreateVerificationCheckParams) (*openapi.VerifyV2VerificationCheck, error)
}

// Verifier implements identity.Verifier on top of a Verify v2 service.
type Verifier struct {
	api        verifyAPI
	serviceSID string
	channel    string
	logger     *logger.Logger
}

func NewVerifier(accountSID, authToken, serviceSID, channel string, logger *logger.Logger) *Verifier {
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newVerifierWithAPI(rest.VerifyV2, serviceSID, channel, logger)
}

func newVerifierWithAPI(api verifyAPI, serviceSID, channel string, logger *logger.Logger) *Verifier {
	if channel == "" {
		channel = "sms"
	}
	return &Verifier{
		api:        api,
		serviceSID: serviceSID,
		channel:    channel,
		logger:     logger,
	}
}

func (v *Verifier) Send(_ context.Context, phoneNumber string) (string, error) {
	params := &openapi.CreateVerificationParams{}
	params.SetTo(phoneNumber)
	params.SetChannel(v.channel)

	resp, err := v.api.CreateVerification(v.serviceSID, params)
	if err != nil {
		v.logger.Error("Twilio verifier: failed to create verification",
			"phone_number", phoneNumber,
			"error", err.Error())
		return "", sendError(err)
	}
	if resp == nil || resp.Sid == nil {
		return "", model.NewProviderError(model.CodeInternal, "verification sid missing from response")
	}

	return *resp.Sid, nil
}

func (v *Verifier) Check(_ context.Context, ref, _, code string) (bool, error) {
	params := &openapi.CreateVerificationCheckParams{}
	params.SetVerificationSid(ref)
	params.SetCode(code)

	resp, err := v.api.CreateVerificationCheck(v.serviceSID, params)
	if err != nil {
		v.logger.Info("Twilio verifier: verification check failed",
			"verification_sid", ref,
			"error", err.Error())
		return false, checkError(err)
	}
	if resp == nil {
		return false, nil
	}
	if resp.Valid != nil && !*resp.Valid {
		return false, nil
	}
	return resp.Status != nil && *resp.Status == statusApproved, nil
}

func sendError(err error) error {
	var restErr *client.TwilioRestError
	if !errors.As(err, &restErr) {
		return model.NewProviderError(model.CodeInternal, err.Error())
	}

	switch {
	case restErr.Code == errInvalidParameter,
		restErr.Code == errInvalidToNumber,
		restErr.Code == errUnverifiedToNumber,
		restErr.Code == errLandlineUnreachable:
		return model.NewProviderError(model.CodeInvalidPhoneNumber, restErr.Message)
	case restErr.Code == errMaxSendAttempts,
		restErr.Code == errTooManyRequests,
		restErr.Status == http.StatusTooManyRequests:
		return model.NewProviderError(model.CodeTooManyRequests, restErr.Message)
	default:
		return model.NewProviderError(model.CodeInternal, fmt.Sprintf("twilio error %d: %s", restErr.Code, restErr.Message))
	}
}

func checkError(err error) error {
	var restErr *client.TwilioRestError
	if !errors.As(err, &restErr) {
		return model.NewProviderError(model.CodeInternal, err.Error())
	}

	switch restErr.Code {
	case errNotFound, errMaxCheckAttempts:
		// approved, expired and exhausted verifications are all gone on Twilio's side
		return model.NewProviderError(model.CodeCodeExpired, restErr.Message)
	case errInvalidParameter:
		return model.NewProviderError(model.CodeInvalidVerificationCode, restErr.Message)
	case errTooManyRequests:
		return model.NewProviderError(model.CodeTooManyRequests, restErr.Message)
	default:
		return model.NewProviderError(model.CodeInternal, fmt.Sprintf("twilio error %d: %s", restErr.Code, restErr.Message))
	}
}
