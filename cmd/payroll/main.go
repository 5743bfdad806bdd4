package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gartstein/payroll/internal/payroll/auth"
	"github.com/gartstein/payroll/internal/payroll/config"
	"github.com/gartstein/payroll/internal/payroll/controller"
	"github.com/gartstein/payroll/internal/payroll/db"
	"github.com/gartstein/payroll/internal/payroll/events"
	"github.com/gartstein/payroll/internal/payroll/handlers"
	"github.com/gartstein/payroll/internal/payroll/ledger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const programName = "payroll"

var configFile string

// eventProducer is what the service needs from a producer plus shutdown.
type eventProducer interface {
	controller.EventProducer
	Close()
}

func main() {
	logger := initLogger()
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Confidential payroll service",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "path to the YAML config file")
	rootCmd.AddCommand(serveCommand(logger), migrateCommand(logger))

	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func serveCommand(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC and HTTP servers",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return serve(cfg, logger)
		},
	}
}

func migrateCommand(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the account store schema and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			repo, err := connectDatabase(cfg, logger)
			if err != nil {
				return err
			}
			defer repo.Close()
			logger.Info("Schema migrated", zap.String("driver", cfg.DBDriver))
			return nil
		},
	}
}

func serve(cfg *config.Config, logger *zap.Logger) error {
	repo, err := connectDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	producer, err := initProducer(cfg, logger)
	if err != nil {
		return err
	}
	defer producer.Close()

	settings := cfg.Settings()
	payrollSvc := controller.NewPayrollService(repo, ledger.New(logger), producer, logger, settings)
	if settings.Sandbox {
		logger.Warn("Ledger sandbox enabled: token accounts can be opened and credited over the API")
	}

	authInterceptor := auth.NewAuthInterceptor(cfg.JWTSecret)
	server := handlers.NewServer(cfg.GRPCPort, cfg.HTTPPort, logger, grpc.UnaryInterceptor(authInterceptor.Unary()))
	server.RegisterGRPCHandler(handlers.NewPayrollHandler(payrollSvc, logger))
	server.RegisterHTTPHandler(handlers.NewHTTPHandler(payrollSvc, logger), cfg.JWTSecret)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	return waitForShutdown(server, errCh, logger)
}

// initLogger initializes a Zap production logger.
func initLogger() *zap.Logger {
	logger, _ := zap.NewProduction()
	return logger.Named(programName)
}

// connectDatabase opens the store, retrying while the database comes up.
func connectDatabase(cfg *config.Config, logger *zap.Logger) (*db.Repository, error) {
	var repo *db.Repository
	err := backoff.Retry(func() error {
		var err error
		repo, err = db.NewRepository(cfg.Database())
		if err != nil {
			logger.Warn("Database not ready, retrying", zap.Error(err))
		}
		return err
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 8))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return repo, nil
}

// initProducer connects to Kafka, or discards events when no brokers are configured.
func initProducer(cfg *config.Config, logger *zap.Logger) (eventProducer, error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("No Kafka brokers configured, events will be discarded")
		return events.NopProducer{}, nil
	}
	var producer *events.Producer
	err := backoff.Retry(func() error {
		var err error
		producer, err = events.NewProducer(cfg.KafkaBrokers, logger, cfg.Topic)
		if err != nil {
			logger.Warn("Kafka not ready, retrying", zap.Error(err))
		}
		return err
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 8))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Kafka producer: %w", err)
	}
	return producer, nil
}

// waitForShutdown blocks until an interrupt, SIGTERM or a server failure, then shuts down servers.
func waitForShutdown(server *handlers.Server, errCh <-chan error, logger *zap.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			server.Stop()
			return fmt.Errorf("server failed: %w", err)
		}
	}

	server.Stop()
	select {
	case <-errCh:
	case <-time.After(10 * time.Second):
		logger.Warn("Timed out waiting for servers to exit")
	}
	logger.Info("Servers stopped properly")
	return nil
}
