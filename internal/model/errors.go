package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Kind classifies errors surfaced by the session controller.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindProviderRejected
	KindProfileSyncFailed
	KindSignOutFailed
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindProviderRejected:
		return "provider_rejected"
	case KindProfileSyncFailed:
		return "profile_sync_failed"
	case KindSignOutFailed:
		return "sign_out_failed"
	case KindBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Reason narrows KindProviderRejected down to the provider's verdict.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonInvalidPhoneFormat Reason = "invalid_phone_format"
	ReasonRateLimited        Reason = "rate_limited"
	ReasonQuotaExceeded      Reason = "quota_exceeded"
	ReasonInvalidCode        Reason = "invalid_code"
	ReasonChallengeExpired   Reason = "challenge_expired"
)

// Error is the error type returned by the session controller.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind and, when the target carries one, on Reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == ReasonNone || t.Reason == e.Reason
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidInput       = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrProviderRejected   = &Error{Kind: KindProviderRejected, Message: "rejected by identity provider"}
	ErrInvalidPhoneFormat = &Error{Kind: KindProviderRejected, Reason: ReasonInvalidPhoneFormat, Message: "invalid phone number format"}
	ErrRateLimited        = &Error{Kind: KindProviderRejected, Reason: ReasonRateLimited, Message: "too many requests"}
	ErrQuotaExceeded      = &Error{Kind: KindProviderRejected, Reason: ReasonQuotaExceeded, Message: "sms quota exceeded"}
	ErrInvalidCode        = &Error{Kind: KindProviderRejected, Reason: ReasonInvalidCode, Message: "invalid verification code"}
	ErrChallengeExpired   = &Error{Kind: KindProviderRejected, Reason: ReasonChallengeExpired, Message: "verification challenge expired"}
	ErrProfileSyncFailed  = &Error{Kind: KindProfileSyncFailed, Message: "profile sync failed"}
	ErrSignOutFailed      = &Error{Kind: KindSignOutFailed, Message: "sign out failed"}
	ErrBusy               = &Error{Kind: KindBusy, Message: "another operation is in progress"}
	ErrUnknown            = &Error{Kind: KindUnknown, Message: "unknown error"}
)

// NewInvalidInput returns an InvalidInput error with the given message.
func NewInvalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

// Provider error codes used by IdentityProvider implementations.
const (
	CodeInvalidPhoneNumber      = "invalid-phone-number"
	CodeTooManyRequests         = "too-many-requests"
	CodeQuotaExceeded           = "quota-exceeded"
	CodeInvalidAppCredential    = "invalid-app-credential"
	CodeInvalidVerificationCode = "invalid-verification-code"
	CodeInvalidVerificationID   = "invalid-verification-id"
	CodeCodeExpired             = "code-expired"
	CodeSessionExpired          = "session-expired"
	CodeInternal                = "internal-error"
)

// ProviderError is returned by an IdentityProvider when it rejects a request.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider: %s: %s", e.Code, e.Message)
}

// NewProviderError creates a ProviderError.
func NewProviderError(code, message string) *ProviderError {
	return &ProviderError{Code: code, Message: message}
}
