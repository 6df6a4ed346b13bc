package router

import (
	"context"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/dtroode/phoneauth/internal/api/grpc/handler"
	"github.com/dtroode/phoneauth/internal/api/grpc/middleware"
	"github.com/dtroode/phoneauth/internal/logger"
	"github.com/dtroode/phoneauth/internal/model"
)

// Router represents a gRPC router for the session service.
// It manages gRPC service registration and middleware configuration.
type Router struct {
	sessionService handler.SessionService
	contextManager model.ContextManager
	clientKey      string
	logger         *logger.Logger
	health         *health.Server
}

// New creates new gRPC Router instance. An empty clientKey disables client
// key checks.
func New(
	sessionService handler.SessionService,
	contextManager model.ContextManager,
	clientKey string,
	logger *logger.Logger,
) *Router {
	return &Router{
		sessionService: sessionService,
		contextManager: contextManager,
		clientKey:      clientKey,
		logger:         logger,
		health:         health.NewServer(),
	}
}

var guardedMethods = map[string]struct{}{
	handler.SessionRequestVerificationMethod: {},
	handler.SessionVerifyCodeMethod:          {},
	handler.SessionSignOutMethod:             {},
	handler.SessionRetryProfileSyncMethod:    {},
}

func requiresClientKey(_ context.Context, c interceptors.CallMeta) bool {
	_, ok := guardedMethods[c.FullMethod()]
	return ok
}

// Register registers all gRPC services and middleware.
//
// Returns the configured gRPC server instance.
func (r *Router) Register() *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	recoveryOpt := recovery.WithRecoveryHandler(r.recover)

	unary := []grpc.UnaryServerInterceptor{
		recovery.UnaryServerInterceptor(recoveryOpt),
		logging.HandleGRPC,
	}
	stream := []grpc.StreamServerInterceptor{
		recovery.StreamServerInterceptor(recoveryOpt),
		logging.HandleGRPCStream,
	}

	if r.clientKey != "" {
		authenticate := middleware.NewAuthenticate(r.clientKey, r.contextManager, r.logger)
		unary = append(unary, selector.UnaryServerInterceptor(
			auth.UnaryServerInterceptor(authenticate.AuthFunc),
			selector.MatchFunc(requiresClientKey),
		))
		stream = append(stream, selector.StreamServerInterceptor(
			auth.StreamServerInterceptor(authenticate.AuthFunc),
			selector.MatchFunc(requiresClientKey),
		))
	}

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	)

	r.registerSessionRoutes(s)

	healthpb.RegisterHealthServer(s, r.health)
	r.health.SetServingStatus(handler.SessionServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(s)

	return s
}

// Shutdown flips every health status to NOT_SERVING.
func (r *Router) Shutdown() {
	r.health.Shutdown()
}

func (r *Router) registerSessionRoutes(server *grpc.Server) {
	sessionHandler := handler.NewSession(r.sessionService, r.contextManager, r.logger)
	handler.RegisterSessionServer(server, sessionHandler)
}

func (r *Router) recover(p any) error {
	r.logger.Error("gRPC handler panicked", "panic", p)
	return status.Error(codes.Internal, "internal server error")
}
