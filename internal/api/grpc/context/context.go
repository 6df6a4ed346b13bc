package context

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/dtroode/phoneauth/internal/model"
)

const (
	// UserIDHeader carries the signed-in user id on successful VerifyCode responses.
	UserIDHeader = "x-user-id"
	// ClientKeyHeader carries the shared client key on mutating calls.
	ClientKeyHeader = "x-client-key"
)

var _ model.ContextManager = (*Manager)(nil)

// Manager reads and writes phoneauth values in gRPC metadata.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// SetUserIDHeader sends userID back to the client as a response header.
func (m *Manager) SetUserIDHeader(ctx context.Context, userID string) error {
	return grpc.SetHeader(ctx, metadata.Pairs(UserIDHeader, userID))
}

// GetClientKey returns the client key presented in incoming metadata.
func (m *Manager) GetClientKey(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	keys := md.Get(ClientKeyHeader)
	if len(keys) == 0 || keys[0] == "" {
		return "", false
	}
	return keys[0], true
}

// GetUserIDFromResponseMetadata is the client-side counterpart of
// SetUserIDHeader.
func (m *Manager) GetUserIDFromResponseMetadata(md metadata.MD) (string, bool) {
	ids := md.Get(UserIDHeader)
	if len(ids) == 0 || ids[0] == "" {
		return "", false
	}
	return ids[0], true
}
