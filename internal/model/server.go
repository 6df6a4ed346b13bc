package model

import (
	"context"
	"net"
)

// SecurityLayer opens the listener the transport serves on.
type SecurityLayer interface {
	Listen(protocol, addr string) (net.Listener, error)
}

// Server is a transport with a start/stop lifecycle.
type Server interface {
	Start(securityLayer SecurityLayer) error
	Stop(ctx context.Context) error
	Address() string
}

// ContextManager moves request-scoped values between gRPC metadata and handlers.
type ContextManager interface {
	SetUserIDHeader(ctx context.Context, userID string) error
	GetClientKey(ctx context.Context) (string, bool)
}
