package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"

	"github.com/dtroode/phoneauth/internal/logger"
	"github.com/dtroode/phoneauth/internal/model"
)

// Verifier delivers one-time codes and checks them.
type Verifier interface {
	// Send delivers a code to phoneNumber and returns a reference used by Check.
	Send(ctx context.Context, phoneNumber string) (ref string, err error)
	Check(ctx context.Context, ref, phoneNumber, code string) (bool, error)
}

const staticRefPrefix = "static:"

// StaticVerifier serves test phone numbers with fixed codes. Nothing is sent.
type StaticVerifier struct {
	codes map[string]string
}

func NewStaticVerifier(codes map[string]string) *StaticVerifier {
	c := make(map[string]string, len(codes))
	for phone, code := range codes {
		c[phone] = code
	}
	return &StaticVerifier{codes: c}
}

func (v *StaticVerifier) Has(phoneNumber string) bool {
	_, ok := v.codes[phoneNumber]
	return ok
}

func (v *StaticVerifier) Send(_ context.Context, phoneNumber string) (string, error) {
	if !v.Has(phoneNumber) {
		return "", model.NewProviderError(model.CodeInvalidPhoneNumber, "not a test phone number")
	}
	return staticRefPrefix + phoneNumber, nil
}

func (v *StaticVerifier) Check(_ context.Context, _, phoneNumber, code string) (bool, error) {
	want, ok := v.codes[phoneNumber]
	if !ok {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1, nil
}

// Router sends test numbers to a StaticVerifier and everything else to next.
type Router struct {
	static *StaticVerifier
	next   Verifier
}

func NewRouter(static *StaticVerifier, next Verifier) *Router {
	return &Router{static: static, next: next}
}

func (r *Router) Send(ctx context.Context, phoneNumber string) (string, error) {
	if r.static != nil && r.static.Has(phoneNumber) {
		return r.static.Send(ctx, phoneNumber)
	}
	if r.next == nil {
		return "", model.NewProviderError(model.CodeInternal, "no verification backend configured")
	}
	return r.next.Send(ctx, phoneNumber)
}

func (r *Router) Check(ctx context.Context, ref, phoneNumber, code string) (bool, error) {
	if r.static != nil && r.static.Has(phoneNumber) {
		return r.static.Check(ctx, ref, phoneNumber, code)
	}
	if r.next == nil {
		return false, model.NewProviderError(model.CodeInternal, "no verification backend configured")
	}
	return r.next.Check(ctx, ref, phoneNumber, code)
}

// LogVerifier generates codes locally and writes them to the log instead of
// sending them. Meant for development without an SMS backend.
type LogVerifier struct {
	mu     sync.Mutex
	codes  map[string]string
	logger *logger.Logger
}

func NewLogVerifier(logger *logger.Logger) *LogVerifier {
	return &LogVerifier{
		codes:  make(map[string]string),
		logger: logger,
	}
}

func (v *LogVerifier) Send(_ context.Context, phoneNumber string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())
	ref := uuid.NewString()

	v.mu.Lock()
	v.codes[ref] = code
	v.mu.Unlock()

	v.logger.Warn("Log verifier: verification code generated",
		"phone_number", phoneNumber,
		"code", code)

	return ref, nil
}

func (v *LogVerifier) Check(_ context.Context, ref, _, code string) (bool, error) {
	v.mu.Lock()
	want, ok := v.codes[ref]
	delete(v.codes, ref)
	v.mu.Unlock()

	if !ok {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1, nil
}
