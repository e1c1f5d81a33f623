package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/dmitrijs2005/snaptrack/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const callerKey ctxKey = "caller"

// publicPrefixes lists services reachable without a token.
var publicPrefixes = []string{
	"/grpc.health.v1.Health/",
	"/grpc.reflection.",
}

func isPublic(fullMethod string) bool {
	for _, p := range publicPrefixes {
		if strings.HasPrefix(fullMethod, p) {
			return true
		}
	}
	return false
}

// CallerFromContext returns the identity the interceptor resolved, if any.
func CallerFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(callerKey).(*models.User)
	return u, ok && u != nil
}

func (s *GRPCServer) authenticate(ctx context.Context) (context.Context, error) {
	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(strings.ToLower(common.AuthorizationHeaderName))
		if len(values) > 0 {
			header = values[0]
		}
	}

	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, common.BearerScheme) || token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	user, err := s.resolver.ResolveCaller(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrInactiveAccount) {
			return nil, status.Error(codes.PermissionDenied, "inactive account")
		}
		s.logger.Debug(ctx, "token rejected", "error", err)
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	return context.WithValue(ctx, callerKey, user), nil
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if isPublic(info.FullMethod) {
		return handler(ctx, req)
	}

	ctx, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	return handler(ctx, req)
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (a *authedStream) Context() context.Context { return a.ctx }

func (s *GRPCServer) streamAccessTokenInterceptor(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {

	if isPublic(info.FullMethod) {
		return handler(srv, ss)
	}

	ctx, err := s.authenticate(ss.Context())
	if err != nil {
		return err
	}

	return handler(srv, &authedStream{ServerStream: ss, ctx: ctx})
}
