package handler

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	grpcctx "github.com/dtroode/phoneauth/internal/api/grpc/context"
	"github.com/dtroode/phoneauth/internal/mocks"
	"github.com/dtroode/phoneauth/internal/model"
	"github.com/dtroode/phoneauth/internal/testutil"
)

var authenticatedState = model.State{
	Phase:         model.PhaseAuthenticated,
	Session:       &model.Session{ID: "s1", UserID: "u1", PhoneNumber: "+3317220554"},
	Profile:       &model.Profile{UserID: "u1", PhoneNumber: "+3317220554", CreatedAt: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)},
	Authenticated: true,
}

func mustStruct(t *testing.T, fields map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func dialSession(t *testing.T, svc SessionService) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterSessionServer(s, NewSession(svc, grpcctx.NewManager(), testutil.MakeNoopLogger()))
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestStateToStruct(t *testing.T) {
	t.Parallel()

	msg, err := stateToStruct(authenticatedState)
	require.NoError(t, err)

	fields := msg.AsMap()
	assert.Equal(t, "authenticated", fields["phase"])
	assert.Equal(t, true, fields["authenticated"])
	assert.Equal(t, false, fields["loading"])
	assert.NotContains(t, fields, "sync_error")
	assert.Equal(t, map[string]interface{}{"user_id": "u1", "phone_number": "+3317220554"}, fields["session"])
	assert.Equal(t, "2024-05-06T07:08:09Z", fields["profile"].(map[string]interface{})["created_at"])

	msg, err = stateToStruct(model.State{Phase: model.PhaseAnonymous, SyncError: "db down"})
	require.NoError(t, err)
	fields = msg.AsMap()
	assert.Equal(t, "db down", fields["sync_error"])
	assert.NotContains(t, fields, "session")
	assert.NotContains(t, fields, "profile")
}

func TestSession_RequestVerification(t *testing.T) {
	t.Parallel()

	svc := mocks.NewSessionService(t)
	svc.On("RequestVerification", mock.Anything, "3317220554", model.ChallengeContext{AppVerifierToken: "tok"}).
		Return("abc123", nil).Once()

	h := NewSession(svc, mocks.NewContextManager(t), testutil.MakeNoopLogger())
	resp, err := h.RequestVerification(context.Background(), mustStruct(t, map[string]interface{}{
		"phone_number":       "3317220554",
		"app_verifier_token": "tok",
	}))
	require.NoError(t, err)
	assert.Equal(t, "abc123", resp.GetValue())
}

func TestSession_RequestVerification_Error(t *testing.T) {
	t.Parallel()

	svc := mocks.NewSessionService(t)
	svc.On("RequestVerification", mock.Anything, "", model.ChallengeContext{}).
		Return("", model.NewInvalidInput("phone number is required")).Once()

	h := NewSession(svc, mocks.NewContextManager(t), testutil.MakeNoopLogger())
	_, err := h.RequestVerification(context.Background(), &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSession_VerifyCode(t *testing.T) {
	t.Parallel()

	svc := mocks.NewSessionService(t)
	cm := mocks.NewContextManager(t)
	svc.On("VerifyCode", mock.Anything, "abc123", "123456").Return(nil).Once()
	svc.On("State").Return(authenticatedState).Once()
	cm.On("SetUserIDHeader", mock.Anything, "u1").Return(nil).Once()

	h := NewSession(svc, cm, testutil.MakeNoopLogger())
	resp, err := h.VerifyCode(context.Background(), mustStruct(t, map[string]interface{}{
		"challenge_id": "abc123",
		"code":         "123456",
	}))
	require.NoError(t, err)
	assert.Equal(t, "authenticated", resp.AsMap()["phase"])
}

func TestSession_VerifyCode_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{name: "bad code", err: model.NewInvalidInput("code must be exactly 6 digits"), want: codes.InvalidArgument},
		{name: "wrong code", err: model.ErrInvalidCode, want: codes.FailedPrecondition},
		{name: "busy", err: model.ErrBusy, want: codes.Aborted},
		{name: "profile sync", err: model.ErrProfileSyncFailed, want: codes.Unavailable},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := mocks.NewSessionService(t)
			svc.On("VerifyCode", mock.Anything, "abc123", "12345").Return(tt.err).Once()

			h := NewSession(svc, mocks.NewContextManager(t), testutil.MakeNoopLogger())
			_, err := h.VerifyCode(context.Background(), mustStruct(t, map[string]interface{}{
				"challenge_id": "abc123",
				"code":         "12345",
			}))
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestSession_SignOutAndRetry(t *testing.T) {
	t.Parallel()

	svc := mocks.NewSessionService(t)
	svc.On("SignOut", mock.Anything).Return(model.ErrSignOutFailed).Once()
	svc.On("SignOut", mock.Anything).Return(nil).Once()
	svc.On("RetryProfileSync", mock.Anything).Return(authenticatedState, nil).Once()

	h := NewSession(svc, mocks.NewContextManager(t), testutil.MakeNoopLogger())

	_, err := h.SignOut(context.Background(), &emptypb.Empty{})
	assert.Equal(t, codes.Unavailable, status.Code(err))

	_, err = h.SignOut(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)

	resp, err := h.RetryProfileSync(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, true, resp.AsMap()["authenticated"])
}

func TestSession_OverGRPC(t *testing.T) {
	t.Parallel()

	svc := mocks.NewSessionService(t)
	svc.On("VerifyCode", mock.Anything, "abc123", "123456").Return(nil).Once()
	svc.On("State").Return(authenticatedState)

	conn := dialSession(t, svc)
	ctx := context.Background()

	var header metadata.MD
	out := new(structpb.Struct)
	err := conn.Invoke(ctx, SessionVerifyCodeMethod, mustStruct(t, map[string]interface{}{
		"challenge_id": "abc123",
		"code":         "123456",
	}), out, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, "authenticated", out.AsMap()["phase"])

	userID, ok := grpcctx.NewManager().GetUserIDFromResponseMetadata(header)
	require.True(t, ok)
	assert.Equal(t, "u1", userID)

	state := new(structpb.Struct)
	require.NoError(t, conn.Invoke(ctx, SessionGetStateMethod, &emptypb.Empty{}, state))
	assert.Equal(t, "u1", state.AsMap()["profile"].(map[string]interface{})["user_id"])

	var unknown wrapperspb.StringValue
	err = conn.Invoke(ctx, "/"+SessionServiceName+"/Nope", &emptypb.Empty{}, &unknown)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestSession_WatchStateOverGRPC(t *testing.T) {
	t.Parallel()

	states := make(chan model.State, 2)
	states <- model.State{Phase: model.PhaseLoading, Loading: true}
	states <- authenticatedState
	close(states)

	svc := mocks.NewSessionService(t)
	svc.On("Watch", mock.Anything).Return((<-chan model.State)(states)).Once()

	conn := dialSession(t, svc)

	stream, err := conn.NewStream(context.Background(), &SessionServiceDesc.Streams[0], SessionWatchStateMethod)
	require.NoError(t, err)
	require.NoError(t, stream.SendMsg(&emptypb.Empty{}))
	require.NoError(t, stream.CloseSend())

	first := new(structpb.Struct)
	require.NoError(t, stream.RecvMsg(first))
	assert.Equal(t, "loading", first.AsMap()["phase"])

	second := new(structpb.Struct)
	require.NoError(t, stream.RecvMsg(second))
	assert.Equal(t, "authenticated", second.AsMap()["phase"])

	// the controller closing the watch ends the stream
	err = stream.RecvMsg(new(structpb.Struct))
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}
