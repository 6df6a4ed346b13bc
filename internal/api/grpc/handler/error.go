package handler

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/phoneauth/internal/model"
)

const errorDomain = "phoneauth"

// handleError maps controller errors to gRPC statuses. The error kind and
// reason travel in an ErrorInfo detail so clients can branch on them.
func handleError(err error) error {
	var e *model.Error
	if !errors.As(err, &e) {
		return status.Error(codes.Internal, "internal server error")
	}

	code := codes.Internal
	switch e.Kind {
	case model.KindInvalidInput:
		code = codes.InvalidArgument
	case model.KindProviderRejected:
		code = codes.FailedPrecondition
		if e.Reason == model.ReasonRateLimited || e.Reason == model.ReasonQuotaExceeded {
			code = codes.ResourceExhausted
		}
	case model.KindBusy:
		code = codes.Aborted
	case model.KindProfileSyncFailed, model.KindSignOutFailed:
		code = codes.Unavailable
	}

	st := status.New(code, e.Message)
	info := &errdetails.ErrorInfo{
		Reason:   e.Kind.String(),
		Domain:   errorDomain,
		Metadata: map[string]string{},
	}
	if e.Reason != model.ReasonNone {
		info.Metadata["reason"] = string(e.Reason)
	}
	if detailed, detailErr := st.WithDetails(info); detailErr == nil {
		st = detailed
	}
	return st.Err()
}
