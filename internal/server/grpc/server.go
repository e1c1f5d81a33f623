package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/dmitrijs2005/snaptrack/internal/logging"
	"github.com/dmitrijs2005/snaptrack/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// CallerResolver turns a bearer access token into the calling identity.
type CallerResolver interface {
	ResolveCaller(ctx context.Context, accessToken string) (*models.User, error)
}

type GRPCServer struct {
	address  string
	resolver CallerResolver
	health   *health.Server
	logger   logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, r CallerResolver) *GRPCServer {
	return &GRPCServer{
		address:  a,
		resolver: r,
		health:   health.NewServer(),
		logger:   l.With("module", "grpc_server"),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.streamAccessTokenInterceptor),
	)

	healthpb.RegisterHealthServer(srv, s.health)
	srv.RegisterService(&sessionServiceDesc, sessionHandler{})
	reflection.Register(srv)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(common.AppName, healthpb.HealthCheckResponse_SERVING)

	return srv
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
