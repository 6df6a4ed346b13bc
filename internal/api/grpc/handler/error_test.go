package handler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/phoneauth/internal/model"
)

func TestHandleError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		in         error
		wantCode   codes.Code
		wantReason string
	}{
		{name: "invalid input", in: model.NewInvalidInput("code must be exactly 6 digits"), wantCode: codes.InvalidArgument},
		{name: "invalid phone", in: model.ErrInvalidPhoneFormat, wantCode: codes.FailedPrecondition, wantReason: "invalid_phone_format"},
		{name: "invalid code", in: model.ErrInvalidCode, wantCode: codes.FailedPrecondition, wantReason: "invalid_code"},
		{name: "expired", in: model.ErrChallengeExpired, wantCode: codes.FailedPrecondition, wantReason: "challenge_expired"},
		{name: "rate limited", in: model.ErrRateLimited, wantCode: codes.ResourceExhausted, wantReason: "rate_limited"},
		{name: "quota", in: model.ErrQuotaExceeded, wantCode: codes.ResourceExhausted, wantReason: "quota_exceeded"},
		{name: "busy", in: model.ErrBusy, wantCode: codes.Aborted},
		{name: "profile sync", in: &model.Error{Kind: model.KindProfileSyncFailed, Message: "failed to sync profile", Err: errors.New("db down")}, wantCode: codes.Unavailable},
		{name: "sign out", in: model.ErrSignOutFailed, wantCode: codes.Unavailable},
		{name: "unknown kind", in: model.ErrUnknown, wantCode: codes.Internal},
		{name: "plain error", in: errors.New("boom"), wantCode: codes.Internal},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			st, ok := status.FromError(handleError(tt.in))
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, st.Code())

			var e *model.Error
			if !errors.As(tt.in, &e) {
				assert.Equal(t, "internal server error", st.Message())
				assert.Empty(t, st.Details())
				return
			}

			assert.Equal(t, e.Message, st.Message())
			require.Len(t, st.Details(), 1)
			info, ok := st.Details()[0].(*errdetails.ErrorInfo)
			require.True(t, ok)
			assert.Equal(t, e.Kind.String(), info.GetReason())
			assert.Equal(t, "phoneauth", info.GetDomain())
			assert.Equal(t, tt.wantReason, info.GetMetadata()["reason"])
		})
	}
}
