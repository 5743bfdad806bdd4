// Package handlers provides gRPC and HTTP server implementations for
// serving the PayrollService, bridging the transport layer and business logic,
// translating between request bodies and domain models.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gartstein/payroll/internal/payroll/auth"
	"github.com/gartstein/payroll/internal/payroll/controller"
	"github.com/gartstein/payroll/internal/payroll/models"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// PayrollController defines the business logic interface
// that the gRPC/HTTP handlers will invoke.
type PayrollController interface {
	CreateCompany(ctx context.Context, authority models.Pubkey, in *models.NewCompany) (*models.Company, error)
	AddEmployee(ctx context.Context, caller models.Pubkey, in *models.NewEmployee) (*models.Employee, error)
	UpdateEmployeeSalary(ctx context.Context, caller models.Pubkey, in *models.SalaryUpdate) (*models.Employee, error)
	RemoveEmployee(ctx context.Context, caller models.Pubkey, ref *models.EmployeeRef) (*models.Employee, error)
	ProcessPayment(ctx context.Context, caller models.Pubkey, in *models.Payment) (*models.Employee, error)
	ProcessPayroll(ctx context.Context, caller, company models.Pubkey, payments []models.Payment) (*controller.PayrollRun, error)
	RecordPaymentProof(ctx context.Context, caller models.Pubkey, in *models.NewPaymentProof) (*models.PaymentProof, error)

	GetCompany(ctx context.Context, addr models.Pubkey) (*models.Company, error)
	GetTreasury(ctx context.Context, company models.Pubkey) (*models.TokenAccount, error)
	GetEmployee(ctx context.Context, addr models.Pubkey) (*models.Employee, error)
	ListEmployees(ctx context.Context, company models.Pubkey) ([]*models.Employee, error)
	GetPaymentProof(ctx context.Context, addr models.Pubkey) (*models.PaymentProof, error)
	ListPaymentProofs(ctx context.Context, company, employee models.Pubkey) ([]*models.PaymentProof, error)
	GetTokenAccount(ctx context.Context, addr models.Pubkey) (*models.TokenAccount, error)

	OpenTokenAccount(ctx context.Context, owner, mint models.Pubkey) (*models.TokenAccount, error)
	Deposit(ctx context.Context, addr models.Pubkey, amount uint64) (*models.TokenAccount, error)
}

// Server holds references to both a gRPC server and an HTTP server.
type Server struct {
	grpcServer   *grpc.Server
	httpServer   *http.Server
	health       *health.Server
	logger       *zap.Logger
	grpcEndpoint string
	httpEndpoint string
}

// NewServer constructs a Server with separate endpoints for gRPC and HTTP.
func NewServer(
	grpcPort int,
	httpPort int,
	logger *zap.Logger,
	grpcOpts ...grpc.ServerOption,
) *Server {
	grpcServer := grpc.NewServer(grpcOpts...)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	return &Server{
		grpcServer:   grpcServer,
		httpServer:   &http.Server{ReadHeaderTimeout: 10 * time.Second},
		health:       healthServer,
		logger:       logger,
		grpcEndpoint: fmt.Sprintf(":%d", grpcPort),
		httpEndpoint: fmt.Sprintf(":%d", httpPort),
	}
}

// RegisterGRPCHandler registers the gRPC handler for the PayrollService.
func (s *Server) RegisterGRPCHandler(h PayrollServiceServer) {
	s.grpcServer.RegisterService(&PayrollServiceDesc, h)
	s.health.SetServingStatus(auth.ServiceName, healthpb.HealthCheckResponse_SERVING)
}

// RegisterHTTPHandler mounts the JSON API behind the auth middleware.
func (s *Server) RegisterHTTPHandler(h *HTTPHandler, jwtSecret string) {
	s.httpServer.Handler = auth.HTTPMiddleware(h.Routes(), jwtSecret)
	s.httpServer.Addr = s.httpEndpoint
}

// Start runs the gRPC and HTTP servers concurrently, returning on the first error.
func (s *Server) Start() error {
	var wg sync.WaitGroup
	wg.Add(2)
	errChan := make(chan error, 2)

	// Start gRPC Server
	go func() {
		defer wg.Done()
		s.logger.Info("Starting gRPC server", zap.String("endpoint", s.grpcEndpoint))
		lis, err := net.Listen("tcp", s.grpcEndpoint)
		if err != nil {
			errChan <- fmt.Errorf("gRPC listen error: %w", err)
			return
		}
		if err := s.grpcServer.Serve(lis); err != nil {
			errChan <- fmt.Errorf("gRPC serve error: %w", err)
		}
	}()

	// Start HTTP Server
	go func() {
		defer wg.Done()
		s.logger.Info("Starting HTTP server", zap.String("endpoint", s.httpEndpoint))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP serve error: %w", err)
		}
	}()

	go func() {
		wg.Wait()
		close(errChan)
	}()

	for err := range errChan {
		if err != nil {
			return err
		}
	}
	return nil
}

// Stop gracefully shuts down both gRPC and HTTP servers.
func (s *Server) Stop() {
	s.logger.Info("Shutting down servers...")
	s.health.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.grpcServer.GracefulStop()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	s.logger.Info("Servers stopped")
}
