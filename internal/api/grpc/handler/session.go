package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dtroode/phoneauth/internal/logger"
	"github.com/dtroode/phoneauth/internal/model"
)

// SessionService is the session controller as seen by the transport.
type SessionService interface {
	RequestVerification(ctx context.Context, phoneNumber string, challengeCtx model.ChallengeContext) (string, error)
	VerifyCode(ctx context.Context, challengeID, code string) error
	SignOut(ctx context.Context) error
	RetryProfileSync(ctx context.Context) (model.State, error)
	State() model.State
	Watch(ctx context.Context) <-chan model.State
}

var _ SessionServer = (*Session)(nil)

// Session handles the phoneauth.v1.Session service.
type Session struct {
	service        SessionService
	contextManager model.ContextManager
	logger         *logger.Logger
}

func NewSession(service SessionService, contextManager model.ContextManager, logger *logger.Logger) *Session {
	return &Session{
		service:        service,
		contextManager: contextManager,
		logger:         logger,
	}
}

// RequestVerification expects {phone_number, app_verifier_token} and returns
// the challenge id.
func (h *Session) RequestVerification(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	phoneNumber := stringField(req, "phone_number")

	h.logger.Debug("Session handler: processing verification request",
		"phone_number", phoneNumber)

	challengeID, err := h.service.RequestVerification(ctx, phoneNumber, model.ChallengeContext{
		AppVerifierToken: stringField(req, "app_verifier_token"),
	})
	if err != nil {
		return nil, handleError(err)
	}

	return wrapperspb.String(challengeID), nil
}

// VerifyCode expects {challenge_id, code}. On success the user id is also
// returned in the x-user-id header.
func (h *Session) VerifyCode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	challengeID := stringField(req, "challenge_id")

	h.logger.Debug("Session handler: processing verify code request",
		"challenge_id", challengeID)

	if err := h.service.VerifyCode(ctx, challengeID, stringField(req, "code")); err != nil {
		return nil, handleError(err)
	}

	state := h.service.State()
	if state.Session != nil {
		if err := h.contextManager.SetUserIDHeader(ctx, state.Session.UserID); err != nil {
			h.logger.Warn("Session handler: failed to set user id header",
				"error", err.Error())
		}
	}

	return h.encodeState(state)
}

func (h *Session) SignOut(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := h.service.SignOut(ctx); err != nil {
		return nil, handleError(err)
	}
	return &emptypb.Empty{}, nil
}

func (h *Session) GetState(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return h.encodeState(h.service.State())
}

func (h *Session) RetryProfileSync(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	state, err := h.service.RetryProfileSync(ctx)
	if err != nil {
		return nil, handleError(err)
	}
	return h.encodeState(state)
}

// WatchState streams every published state until the client goes away or
// the controller shuts down.
func (h *Session) WatchState(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()

	h.logger.Debug("Session handler: state watch started")

	for state := range h.service.Watch(ctx) {
		msg, err := h.encodeState(state)
		if err != nil {
			return err
		}
		if err := stream.Send(msg); err != nil {
			h.logger.Debug("Session handler: state watch send failed",
				"error", err.Error())
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.Unavailable, "session controller is shutting down")
}

func (h *Session) encodeState(state model.State) (*structpb.Struct, error) {
	msg, err := stateToStruct(state)
	if err != nil {
		h.logger.Error("Session handler: failed to encode state",
			"error", err.Error())
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return msg, nil
}
