package test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gartstein/payroll/internal/payroll/address"
	"github.com/gartstein/payroll/internal/payroll/auth"
	"github.com/gartstein/payroll/internal/payroll/controller"
	"github.com/gartstein/payroll/internal/payroll/db"
	"github.com/gartstein/payroll/internal/payroll/events"
	"github.com/gartstein/payroll/internal/payroll/handlers"
	"github.com/gartstein/payroll/internal/payroll/ledger"
	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	jwtSecret = "integration-secret"
	topic     = "payroll-events-it"
	grpcPort  = 50151
	httpPort  = 8181
)

var kafkaBrokers = []string{"localhost:9092"}

type IntegrationTestSuite struct {
	suite.Suite
	dbRepo      *db.Repository
	producer    *events.Producer
	kafkaReader *kafka.Reader
	server      *handlers.Server
	conn        *grpc.ClientConn
	client      *handlers.Client
	logger      *zap.Logger
	testTimeout time.Duration
}

// TestIntegrationSuite needs postgres on localhost:5432 (test/test/test)
// and Kafka on localhost:9092.
func TestIntegrationSuite(t *testing.T) {
	if testing.Short() || os.Getenv("PAYROLL_INTEGRATION") != "1" {
		t.Skip("Skipping integration tests; set PAYROLL_INTEGRATION=1")
	}
	suite.Run(t, new(IntegrationTestSuite))
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.logger = zap.NewNop()
	s.testTimeout = 30 * time.Second

	var err error
	s.dbRepo, err = initializeDBWithRetry()
	s.Require().NoError(err, "database initialization failed")

	s.producer, s.kafkaReader, err = initializeKafkaWithRetry()
	s.Require().NoError(err, "Kafka initialization failed")

	settings := controller.DefaultSettings()
	settings.Sandbox = true
	svc := controller.NewPayrollService(s.dbRepo, ledger.New(s.logger), s.producer, s.logger, settings)

	authInterceptor := auth.NewAuthInterceptor(jwtSecret)
	s.server = handlers.NewServer(grpcPort, httpPort, s.logger, grpc.UnaryInterceptor(authInterceptor.Unary()))
	s.server.RegisterGRPCHandler(handlers.NewPayrollHandler(svc, s.logger))
	s.server.RegisterHTTPHandler(handlers.NewHTTPHandler(svc, s.logger), jwtSecret)
	go func() {
		if err := s.server.Start(); err != nil {
			s.T().Logf("server stopped: %v", err)
		}
	}()

	s.conn, err = grpc.NewClient(fmt.Sprintf("localhost:%d", grpcPort),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err)
	s.client = handlers.NewClient(s.conn)
}

func initializeDBWithRetry() (*db.Repository, error) {
	cfg := &db.Config{
		Driver:   db.DriverPostgres,
		Host:     "localhost",
		Port:     5432,
		User:     "test",
		Password: "test",
		DBName:   "test",
		SSLMode:  "disable",
	}

	var repo *db.Repository
	err := backoff.Retry(func() error {
		var err error
		repo, err = db.NewRepository(cfg)
		return err
	}, backoff.NewExponentialBackOff())
	return repo, err
}

func initializeKafkaWithRetry() (*events.Producer, *kafka.Reader, error) {
	var producer *events.Producer
	err := backoff.Retry(func() error {
		var err error
		producer, err = events.NewProducer(kafkaBrokers, zap.NewNop(), topic)
		return err
	}, backoff.NewExponentialBackOff())
	if err != nil {
		return nil, nil, fmt.Errorf("Kafka producer initialization failed: %w", err)
	}

	// Verify Kafka readiness using metadata instead of blocking on ReadMessage
	err = backoff.Retry(func() error {
		conn, err := kafka.Dial("tcp", kafkaBrokers[0])
		if err != nil {
			return err
		}
		defer conn.Close()
		partitions, err := conn.ReadPartitions(topic)
		if err != nil || len(partitions) == 0 {
			return fmt.Errorf("topic %s not found", topic)
		}
		return nil
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5))
	if err != nil {
		producer.Close()
		return nil, nil, fmt.Errorf("Kafka topic check failed: %w", err)
	}

	// A fresh group reads every partition from the start; consumeEvent
	// filters by key and type.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkaBrokers,
		GroupID:     fmt.Sprintf("payroll-it-%d", time.Now().UnixNano()),
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return producer, reader, nil
}

func (s *IntegrationTestSuite) TearDownSuite() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	if s.server != nil {
		s.server.Stop()
	}
	if s.kafkaReader != nil {
		_ = s.kafkaReader.Close()
	}
	if s.producer != nil {
		s.producer.Close()
	}
	if s.dbRepo != nil {
		_ = s.dbRepo.Close()
	}
}

func (s *IntegrationTestSuite) SetupTest() {
	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()
	s.Require().NoError(s.dbRepo.Exec(ctx, "TRUNCATE TABLE accounts"))
}

func (s *IntegrationTestSuite) signed(ctx context.Context, wallet models.Pubkey) context.Context {
	token, err := auth.GenerateToken(wallet, jwtSecret, time.Hour)
	s.Require().NoError(err)
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func wallet(b byte) models.Pubkey {
	var k models.Pubkey
	for i := range k {
		k[i] = b
	}
	return k
}

func (s *IntegrationTestSuite) TestPayrollCycle() {
	t := s.T()
	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()

	authority, employeeWallet, mint := wallet(0x11), wallet(0x22), wallet(0x33)
	asAuthority := s.signed(ctx, authority)
	monthly := models.Monthly

	var company models.Company
	require.NoError(t, backoff.Retry(func() error {
		return s.client.Call(asAuthority, "CreateCompany", &handlers.CreateCompanyRequest{
			Name:             "Integration Payroll",
			PaymentToken:     mint,
			PaymentFrequency: &monthly,
		}, &company)
	}, backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), 10)))

	var account models.TokenAccount
	require.NoError(t, s.client.Call(asAuthority, "OpenTokenAccount",
		&handlers.OpenTokenAccountRequest{Owner: employeeWallet, Mint: mint}, &account))
	require.NoError(t, s.client.Call(asAuthority, "Deposit",
		&handlers.DepositRequest{Account: address.Treasury(company.Address), Amount: 10_000_000}, nil))

	var employee models.Employee
	require.NoError(t, s.client.Call(asAuthority, "AddEmployee", &handlers.AddEmployeeRequest{
		Company:          company.Address,
		Wallet:           employeeWallet,
		EncryptedSalary:  []byte("sealed salary"),
		PaymentFrequency: &monthly,
		TokenAccount:     account.Address,
	}, &employee))

	commitment := models.Hash{0xC0}
	var run controller.PayrollRun
	require.NoError(t, s.client.Call(asAuthority, "ProcessPayroll", &handlers.PayrollRequest{
		Company: company.Address,
		Payments: []handlers.PaymentRequest{{
			EmployeeRequest:  handlers.EmployeeRequest{Employee: employee.Address},
			RecipientAccount: account.Address,
			Amount:           4_000_000,
			AmountCommitment: commitment,
		}},
	}, &run))
	assert.Equal(t, uint64(1), run.Company.TotalPaymentsMade)

	var received models.TokenAccount
	require.NoError(t, s.client.Call(ctx, "GetTokenAccount", &handlers.AddressRequest{Address: account.Address}, &received))
	assert.Equal(t, uint64(4_000_000), received.Amount)

	err := s.client.Call(asAuthority, "RecordPaymentProof", &handlers.PaymentProofRequest{
		EmployeeRequest: handlers.EmployeeRequest{Company: company.Address, Employee: employee.Address},
		PaymentID:       1,
	}, nil)
	require.NoError(t, err)
	err = s.client.Call(asAuthority, "RecordPaymentProof", &handlers.PaymentProofRequest{
		EmployeeRequest: handlers.EmployeeRequest{Company: company.Address, Employee: employee.Address},
		PaymentID:       1,
	}, nil)
	st, _ := status.FromError(err)
	assert.Equal(t, codes.AlreadyExists, st.Code())

	event := s.consumeEvent(ctx, events.PaymentProcessed, company.Address)
	require.NotNil(t, event.AmountCommitment)
	assert.Equal(t, commitment, *event.AmountCommitment)
	assert.Equal(t, employee.Address, event.Employee.Address)
}

func (s *IntegrationTestSuite) consumeEvent(ctx context.Context, eventType events.EventType, company models.Pubkey) events.Event {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	for {
		msg, err := s.kafkaReader.ReadMessage(ctx)
		if err != nil {
			s.T().Fatalf("no %s event received: %v", eventType, err)
		}
		if string(msg.Key) != company.String() {
			continue
		}
		var event events.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			s.T().Fatalf("Failed to unmarshal Kafka message: %v", err)
		}
		if event.Type != eventType {
			continue
		}
		return event
	}
}
