package middleware

import (
	"context"
	"crypto/subtle"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/phoneauth/internal/logger"
	"github.com/dtroode/phoneauth/internal/model"
)

// Authenticate checks the client key presented in the x-client-key header.
type Authenticate struct {
	clientKey      string
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(clientKey string, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{clientKey: clientKey, contextManager: contextManager, logger: logger}
}

// AuthFunc rejects calls whose client key is missing or does not match.
func (m *Authenticate) AuthFunc(ctx context.Context) (context.Context, error) {
	key, ok := m.contextManager.GetClientKey(ctx)
	if !ok || key == "" {
		return nil, status.Error(codes.Unauthenticated, "missing client key")
	}

	if subtle.ConstantTimeCompare([]byte(key), []byte(m.clientKey)) != 1 {
		m.logger.Warn("Authenticate: client key mismatch")
		return nil, status.Error(codes.Unauthenticated, "invalid client key")
	}

	return ctx, nil
}
