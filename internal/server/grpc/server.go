// Package grpc exposes the document lifecycle over gRPC. Messages travel as
// JSON (content subtype "json"), so no generated stubs are required.
package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/estatekeeper/internal/audit"
	"github.com/dmitrijs2005/estatekeeper/internal/logging"
	"github.com/dmitrijs2005/estatekeeper/internal/server/lifecycle"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

// Lifecycle is the subset of lifecycle.Manager served over gRPC.
type Lifecycle interface {
	CreateDocument(ctx context.Context, req lifecycle.CreateRequest) (*models.Document, error)
	GetDocument(ctx context.Context, id, actorID string) (*models.Document, error)
	UpdateDocument(ctx context.Context, id, actorID string, patch lifecycle.Patch) (*models.Document, error)
	DeleteDocument(ctx context.Context, id, actorID string) error
	ListDocuments(ctx context.Context, ownerID, actorID string, filter lifecycle.ListFilter) ([]*models.Document, error)
	QueryAuditLog(ctx context.Context, f audit.Filter) ([]models.AuditLogEntry, error)
	GrantDelegate(ctx context.Context, ownerID, actorID, delegateID string, role models.DelegateRole, expiresAt *time.Time) (*models.Delegate, error)
	RevokeDelegate(ctx context.Context, ownerID, actorID, delegateID string) error
	GrantAccess(ctx context.Context, documentID, actorID, delegateID string, level models.AccessLevel, expiresAt *time.Time) (*models.AccessControlEntry, error)
	RevokeAccess(ctx context.Context, documentID, actorID, delegateID string) error
	UploadProgress(correlationID, actorID string) (models.UploadState, error)
}

type GRPCServer struct {
	address   string
	lifecycle Lifecycle
	logger    logging.Logger
	jwtSecret []byte
	health    *health.Server
}

func NewGRPCServer(a string, l logging.Logger, lc Lifecycle, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		lifecycle: lc,
		jwtSecret: []byte(secretKey),
		health:    health.NewServer(),
	}
}

// newServer builds the grpc.Server with interceptors and services registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	srv.RegisterService(&DocumentServiceDesc, s)
	healthpb.RegisterHealthServer(srv, s.health)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
