package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// SessionMeMethod is the full method name of the caller profile RPC.
const SessionMeMethod = "/snaptrack.v1.Session/Me"

// sessionServer is the handler contract of the snaptrack.v1.Session service.
type sessionServer interface {
	Me(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// sessionServiceDesc is written by hand over well-known types, so no
// generated stubs are needed.
var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: "snaptrack.v1.Session",
	HandlerType: (*sessionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Me", Handler: sessionMeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "snaptrack/v1/session.proto",
}

func sessionMeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(sessionServer).Me(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SessionMeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(sessionServer).Me(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

type sessionHandler struct{}

// Me returns the profile of the identity resolved by the access token interceptor.
func (sessionHandler) Me(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	u, ok := CallerFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "not authenticated")
	}

	fields := map[string]interface{}{
		"id":         u.ID,
		"username":   u.UserName,
		"email":      u.Email,
		"role":       string(u.Role),
		"is_active":  u.IsActive,
		"created_at": u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u.FullName != nil {
		fields["full_name"] = *u.FullName
	}

	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode profile")
	}
	return out, nil
}
