// payroll-audit tails the payroll event topic and writes every committed
// transition to the log as an audit trail.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/gartstein/payroll/internal/payroll/config"
	"github.com/gartstein/payroll/internal/payroll/events"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatal("KAFKA_BROKERS is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	consumer := events.NewConsumer(cfg.KafkaBrokers, cfg.AuditGroupID, cfg.Topic, logger)
	consumer.RegisterHandler(auditEvent(logger.Named("audit")))
	consumer.Start(ctx)
	logger.Info("Auditing payroll events",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.Topic),
		zap.String("group_id", cfg.AuditGroupID),
	)

	consumer.Wait()
	consumer.Close()
	logger.Info("Audit consumer stopped")
}

// auditEvent logs one event. Events without a company are rejected so they
// stay uncommitted for inspection.
func auditEvent(logger *zap.Logger) func(context.Context, events.Event) error {
	return func(_ context.Context, event events.Event) error {
		if event.Company == nil {
			return errors.New("event carries no company")
		}
		fields := []zap.Field{
			zap.String("event_id", event.ID.String()),
			zap.String("type", string(event.Type)),
			zap.Int64("occurred_at", event.OccurredAt),
			zap.String("company", event.Company.Address.String()),
			zap.Uint16("employee_count", event.Company.EmployeeCount),
			zap.Uint64("total_payments_made", event.Company.TotalPaymentsMade),
		}
		if event.Employee != nil {
			fields = append(fields,
				zap.String("employee", event.Employee.Address.String()),
				zap.String("wallet", event.Employee.Wallet.String()),
				zap.Bool("employee_active", event.Employee.IsActive),
			)
		}
		if event.PaymentProof != nil {
			fields = append(fields,
				zap.String("payment_proof", event.PaymentProof.Address.String()),
				zap.Uint64("payment_id", event.PaymentProof.PaymentID),
			)
		}
		if event.AmountCommitment != nil {
			fields = append(fields, zap.Stringer("amount_commitment", event.AmountCommitment))
		}
		logger.Info("Payroll event", fields...)
		return nil
	}
}
