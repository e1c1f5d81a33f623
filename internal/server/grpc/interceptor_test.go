package grpc

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/dmitrijs2005/snaptrack/internal/logging"
	"github.com/dmitrijs2005/snaptrack/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const protectedMethod = SessionMeMethod

var alice = &models.User{ID: "u-1", UserName: "alice", Role: models.RoleStaff, IsActive: true}

// helper to build server
func newTestServer(r *fakeResolver) *GRPCServer {
	return NewGRPCServer("", logging.Nop{}, r)
}

func withAuth(value string) context.Context {
	md := metadata.New(map[string]string{"authorization": value})
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestInterceptor_PublicMethod_AllowsWithoutToken(t *testing.T) {
	s := newTestServer(&fakeResolver{})

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	handlerCalled := false

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		handlerCalled = true
		return "ok", nil
	}

	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handlerCalled {
		t.Fatal("handler was not called")
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
}

func TestInterceptor_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		resolver *fakeResolver
		want     codes.Code
	}{
		{"no metadata", context.Background(), &fakeResolver{}, codes.Unauthenticated},
		{"wrong scheme", withAuth("Basic abc"), &fakeResolver{}, codes.Unauthenticated},
		{"empty bearer", withAuth("Bearer "), &fakeResolver{}, codes.Unauthenticated},
		{"unknown token", withAuth("Bearer nope"), &fakeResolver{}, codes.Unauthenticated},
		{"expired", withAuth("Bearer tok"), &fakeResolver{err: common.ErrTokenExpired}, codes.Unauthenticated},
		{"inactive", withAuth("Bearer tok"), &fakeResolver{err: common.ErrInactiveAccount}, codes.PermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(tt.resolver)
			info := &grpc.UnaryServerInfo{FullMethod: protectedMethod}

			h := func(ctx context.Context, req interface{}) (interface{}, error) {
				t.Fatal("handler should not be called")
				return nil, nil
			}

			_, err := s.accessTokenInterceptor(tt.ctx, nil, info, h)
			if status.Code(err) != tt.want {
				t.Fatalf("expected %v, got %v (%v)", tt.want, status.Code(err), err)
			}
		})
	}
}

func TestInterceptor_ValidToken_SetsCaller(t *testing.T) {
	s := newTestServer(&fakeResolver{users: map[string]*models.User{"tok": alice}})
	info := &grpc.UnaryServerInfo{FullMethod: protectedMethod}

	var got *models.User
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		got, _ = CallerFromContext(ctx)
		return "ok", nil
	}

	if _, err := s.accessTokenInterceptor(withAuth("Bearer tok"), nil, info, h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != alice.ID {
		t.Fatalf("caller not propagated in context: got %v", got)
	}
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeStream) Context() context.Context { return f.ctx }

func TestStreamInterceptor(t *testing.T) {
	s := newTestServer(&fakeResolver{users: map[string]*models.User{"tok": alice}})
	info := &grpc.StreamServerInfo{FullMethod: protectedMethod}

	var got *models.User
	h := func(srv interface{}, ss grpc.ServerStream) error {
		got, _ = CallerFromContext(ss.Context())
		return nil
	}

	if err := s.streamAccessTokenInterceptor(nil, &fakeStream{ctx: withAuth("Bearer tok")}, info, h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != alice.ID {
		t.Fatalf("caller not propagated in stream context: got %v", got)
	}

	err := s.streamAccessTokenInterceptor(nil, &fakeStream{ctx: context.Background()}, info, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
	}

	watch := &grpc.StreamServerInfo{FullMethod: "/grpc.health.v1.Health/Watch"}
	if err := s.streamAccessTokenInterceptor(nil, &fakeStream{ctx: context.Background()}, watch, h); err != nil {
		t.Fatalf("health watch should be public: %v", err)
	}
}

func TestCallerFromContext_Empty(t *testing.T) {
	if _, ok := CallerFromContext(context.Background()); ok {
		t.Fatal("expected no caller")
	}
}
