package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// SessionServiceName is the fully qualified gRPC service name.
const SessionServiceName = "phoneauth.v1.Session"

const (
	SessionRequestVerificationMethod = "/" + SessionServiceName + "/RequestVerification"
	SessionVerifyCodeMethod          = "/" + SessionServiceName + "/VerifyCode"
	SessionSignOutMethod             = "/" + SessionServiceName + "/SignOut"
	SessionGetStateMethod            = "/" + SessionServiceName + "/GetState"
	SessionRetryProfileSyncMethod    = "/" + SessionServiceName + "/RetryProfileSync"
	SessionWatchStateMethod          = "/" + SessionServiceName + "/WatchState"
)

// SessionServer is the server API for the phoneauth.v1.Session service.
// Messages are protobuf well-known types so no generated code is needed.
type SessionServer interface {
	RequestVerification(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	VerifyCode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SignOut(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	RetryProfileSync(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	WatchState(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

// RegisterSessionServer registers srv on s.
func RegisterSessionServer(s grpc.ServiceRegistrar, srv SessionServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}

// SessionServiceDesc is the grpc.ServiceDesc for the phoneauth.v1.Session service.
var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RequestVerification", Handler: requestVerificationHandler},
		{MethodName: "VerifyCode", Handler: verifyCodeHandler},
		{MethodName: "SignOut", Handler: signOutHandler},
		{MethodName: "GetState", Handler: getStateHandler},
		{MethodName: "RetryProfileSync", Handler: retryProfileSyncHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchState", Handler: watchStateHandler, ServerStreams: true},
	},
}

func requestVerificationHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServer).RequestVerification(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SessionRequestVerificationMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionServer).RequestVerification(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func verifyCodeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServer).VerifyCode(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SessionVerifyCodeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionServer).VerifyCode(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func signOutHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServer).SignOut(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SessionSignOutMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionServer).SignOut(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getStateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServer).GetState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SessionGetStateMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionServer).GetState(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func retryProfileSyncHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServer).RetryProfileSync(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SessionRetryProfileSyncMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionServer).RetryProfileSync(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func watchStateHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(SessionServer).WatchState(m, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}
