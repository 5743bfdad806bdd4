// Package controller implements the payroll state machine. Every mutating
// operation runs inside one store transaction: its preconditions, the
// treasury transfer and the counter updates commit together or not at all.
// Events are produced only after the commit.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gartstein/payroll/internal/payroll/address"
	"github.com/gartstein/payroll/internal/payroll/db"
	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/gartstein/payroll/internal/payroll/events"
	"github.com/gartstein/payroll/internal/payroll/ledger"
	"github.com/gartstein/payroll/internal/payroll/metrics"
	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/gartstein/payroll/internal/pkg/checked"
	"go.uber.org/zap"
)

type EventProducer interface {
	Produce(event events.Event)
}

// Repository defines the account store used by the service. Mutations go
// through WithTransaction; the remaining methods serve reads.
type Repository interface {
	GetCompany(ctx context.Context, addr models.Pubkey) (*models.Company, error)
	GetEmployee(ctx context.Context, addr models.Pubkey) (*models.Employee, error)
	ListEmployees(ctx context.Context, company models.Pubkey) ([]*models.Employee, error)
	GetPaymentProof(ctx context.Context, addr models.Pubkey) (*models.PaymentProof, error)
	ListPaymentProofs(ctx context.Context, company, wallet models.Pubkey) ([]*models.PaymentProof, error)
	GetTokenAccount(ctx context.Context, addr models.Pubkey) (*models.TokenAccount, error)
	WithTransaction(ctx context.Context, fn func(repo *db.Repository) error) error
}

// Ledger is the token-transfer subsystem. *ledger.Ledger implements it.
type Ledger interface {
	OpenAccount(ctx context.Context, store ledger.Store, addr, owner, mint models.Pubkey) (*models.TokenAccount, error)
	OpenAssociatedAccount(ctx context.Context, store ledger.Store, owner, mint models.Pubkey) (*models.TokenAccount, error)
	Account(ctx context.Context, store ledger.Store, addr models.Pubkey) (*models.TokenAccount, error)
	Deposit(ctx context.Context, store ledger.Store, addr models.Pubkey, amount uint64) (*models.TokenAccount, error)
	Transfer(ctx context.Context, store ledger.Store, req ledger.TransferRequest) error
}

// Settings tunes the limits of the state machine.
type Settings struct {
	MinSalaryAmount uint64
	MaxEmployees    uint16
	MaxBatchSize    int
	// EnforceSchedule rejects payments made before company.NextPaymentDue.
	EnforceSchedule bool
	// Sandbox enables opening and funding token accounts through the service.
	Sandbox bool
}

// DefaultSettings returns the limits of the on-ledger program.
func DefaultSettings() Settings {
	return Settings{
		MinSalaryAmount: models.MinSalaryAmount,
		MaxEmployees:    models.MaxEmployeesPerCompany,
		MaxBatchSize:    models.MaxBatchSize,
	}
}

// PayrollService applies payroll operations to the account store.
type PayrollService struct {
	repo     Repository
	ledger   Ledger
	producer EventProducer
	logger   *zap.Logger
	metrics  *metrics.PayrollMetrics
	settings Settings
	now      func() int64
}

// NewPayrollService constructs a PayrollService. Zero limits in settings
// fall back to DefaultSettings.
func NewPayrollService(repo Repository, tokens Ledger, producer EventProducer, logger *zap.Logger, settings Settings) *PayrollService {
	defaults := DefaultSettings()
	if settings.MinSalaryAmount == 0 {
		settings.MinSalaryAmount = defaults.MinSalaryAmount
	}
	if settings.MaxEmployees == 0 || settings.MaxEmployees > models.MaxEmployeesPerCompany {
		settings.MaxEmployees = defaults.MaxEmployees
	}
	if settings.MaxBatchSize <= 0 {
		settings.MaxBatchSize = defaults.MaxBatchSize
	}
	return &PayrollService{
		repo:     repo,
		ledger:   tokens,
		producer: producer,
		logger:   logger.Named("payroll_service"),
		metrics:  metrics.Payroll(),
		settings: settings,
		now:      func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc replaces the clock. It is meant for tests.
func (s *PayrollService) SetNowFunc(now func() int64) {
	s.now = now
}

// Settings returns the effective limits.
func (s *PayrollService) Settings() Settings {
	return s.settings
}

// PayrollRun is the outcome of a committed payroll batch.
type PayrollRun struct {
	Company   *models.Company    `json:"company"`
	Employees []*models.Employee `json:"employees"`
}

// CreateCompany allocates the company owned by authority and opens its
// treasury token account for the payment token.
func (s *PayrollService) CreateCompany(ctx context.Context, authority models.Pubkey, in *models.NewCompany) (company *models.Company, err error) {
	defer s.observe("CreateCompany", time.Now(), &err)

	if len(in.Name) == 0 || len(in.Name) > models.MaxCompanyNameLength {
		return nil, e.ErrCompanyNameTooLong
	}
	if !in.PaymentFrequency.Valid() {
		return nil, e.ErrInvalidPaymentFrequency
	}
	if in.PaymentToken.IsZero() {
		return nil, fmt.Errorf("%w: payment token is required", e.ErrInvalidTokenMint)
	}
	if authority.IsZero() {
		return nil, e.ErrUnauthorizedAccess
	}

	now := s.now()
	nextDue, ok := checked.AddInt64(now, in.PaymentFrequency.Interval())
	if !ok {
		return nil, e.ErrArithmeticOverflow
	}
	company = &models.Company{
		Address:              address.Company(authority),
		Authority:            authority,
		Name:                 in.Name,
		EmployeeCount:        0,
		BudgetCommitment:     in.BudgetCommitment,
		PaymentToken:         in.PaymentToken,
		PaymentFrequency:     in.PaymentFrequency,
		LastPaymentTimestamp: 0,
		NextPaymentDue:       nextDue,
		TotalPaymentsMade:    0,
		IsActive:             true,
	}

	err = s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		if err := repo.CreateCompany(ctx, company); err != nil {
			if errors.Is(err, e.ErrAlreadyExists) {
				return e.ErrCompanyAlreadyExists
			}
			return fmt.Errorf("failed to create company: %w", err)
		}
		treasury := address.Treasury(company.Address)
		if _, err := s.ledger.OpenAccount(ctx, repo, treasury, company.Address, company.PaymentToken); err != nil {
			if errors.Is(err, ledger.ErrAccountExists) {
				return fmt.Errorf("%w: treasury %s", e.ErrCompanyAlreadyExists, treasury)
			}
			return fmt.Errorf("failed to open treasury: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Company created",
		zap.String("company", company.Address.String()),
		zap.String("authority", authority.String()),
		zap.String("payment_frequency", company.PaymentFrequency.String()),
		zap.Int64("next_payment_due", company.NextPaymentDue),
	)
	s.producer.Produce(events.NewEvent(events.CompanyCreated, now, company))
	return company, nil
}

// AddEmployee puts wallet on the company roster.
func (s *PayrollService) AddEmployee(ctx context.Context, caller models.Pubkey, in *models.NewEmployee) (employee *models.Employee, err error) {
	defer s.observe("AddEmployee", time.Now(), &err)

	if !in.PaymentFrequency.Valid() {
		return nil, e.ErrInvalidPaymentFrequency
	}
	if err := validateWallet(in.Company, in.Wallet); err != nil {
		return nil, err
	}

	now := s.now()
	var company *models.Company
	err = s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		var err error
		company, err = s.loadCompany(ctx, repo, caller, in.Company)
		if err != nil {
			return err
		}
		if !company.IsActive {
			return e.ErrCompanyInactive
		}
		if company.EmployeeCount >= s.settings.MaxEmployees {
			return e.ErrMaxEmployeesReached
		}
		if !in.TokenAccount.IsZero() {
			if err := s.checkRecipient(ctx, repo, company, in.Wallet, in.TokenAccount); err != nil {
				return err
			}
		}
		if err := validateEncryptedSalary(in.EncryptedSalary); err != nil {
			return err
		}
		count, ok := checked.Add(company.EmployeeCount, 1)
		if !ok {
			return e.ErrArithmeticOverflow
		}

		employee = &models.Employee{
			Address:               address.Employee(company.Address, in.Wallet),
			Wallet:                in.Wallet,
			Company:               company.Address,
			EncryptedSalary:       append([]byte(nil), in.EncryptedSalary...),
			SalaryCommitment:      in.SalaryCommitment,
			PaymentFrequency:      in.PaymentFrequency,
			JoinDate:              now,
			LastPaymentDate:       now,
			TotalPaymentsReceived: 0,
			IsActive:              true,
		}
		if err := repo.CreateEmployee(ctx, employee); err != nil {
			if errors.Is(err, e.ErrAlreadyExists) {
				return e.ErrEmployeeAlreadyExists
			}
			return fmt.Errorf("failed to create employee: %w", err)
		}
		company.EmployeeCount = count
		if err := repo.UpdateCompany(ctx, company); err != nil {
			return fmt.Errorf("failed to update company: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Employee added",
		zap.String("company", company.Address.String()),
		zap.String("employee", employee.Address.String()),
		zap.String("wallet", employee.Wallet.String()),
		zap.Uint16("employee_count", company.EmployeeCount),
	)
	event := events.NewEvent(events.EmployeeAdded, now, company)
	event.Employee = employee
	s.producer.Produce(event)
	return employee, nil
}

// UpdateEmployeeSalary replaces the encrypted salary and its commitment.
func (s *PayrollService) UpdateEmployeeSalary(ctx context.Context, caller models.Pubkey, in *models.SalaryUpdate) (employee *models.Employee, err error) {
	defer s.observe("UpdateEmployeeSalary", time.Now(), &err)

	var company *models.Company
	err = s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		var err error
		company, employee, err = s.loadActive(ctx, repo, caller, in.EmployeeRef)
		if err != nil {
			return err
		}
		if err := validateEncryptedSalary(in.EncryptedSalary); err != nil {
			return err
		}
		employee.EncryptedSalary = append([]byte(nil), in.EncryptedSalary...)
		employee.SalaryCommitment = in.SalaryCommitment
		if err := repo.UpdateEmployee(ctx, employee); err != nil {
			return fmt.Errorf("failed to update employee: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Employee salary updated",
		zap.String("company", company.Address.String()),
		zap.String("employee", employee.Address.String()),
		zap.String("salary_commitment", employee.SalaryCommitment.String()),
	)
	event := events.NewEvent(events.EmployeeSalaryUpdated, s.now(), company)
	event.Employee = employee
	s.producer.Produce(event)
	return employee, nil
}

// RemoveEmployee deactivates an employee. The record is kept and its
// address stays taken.
func (s *PayrollService) RemoveEmployee(ctx context.Context, caller models.Pubkey, ref *models.EmployeeRef) (employee *models.Employee, err error) {
	defer s.observe("RemoveEmployee", time.Now(), &err)

	var company *models.Company
	err = s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		var err error
		company, err = s.loadCompany(ctx, repo, caller, ref.Company)
		if err != nil {
			return err
		}
		if !company.IsActive {
			return e.ErrCompanyInactive
		}
		employee, err = s.loadEmployee(ctx, repo, company, ref.Employee)
		if err != nil {
			return err
		}
		// A second removal would decrement the count for the same employee.
		if !employee.IsActive {
			return e.ErrEmployeeInactive
		}
		count, ok := checked.Sub(company.EmployeeCount, 1)
		if !ok {
			return e.ErrArithmeticUnderflow
		}

		employee.IsActive = false
		company.EmployeeCount = count
		if err := repo.UpdateEmployee(ctx, employee); err != nil {
			return fmt.Errorf("failed to update employee: %w", err)
		}
		if err := repo.UpdateCompany(ctx, company); err != nil {
			return fmt.Errorf("failed to update company: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Employee removed",
		zap.String("company", company.Address.String()),
		zap.String("employee", employee.Address.String()),
		zap.Uint16("employee_count", company.EmployeeCount),
	)
	event := events.NewEvent(events.EmployeeRemoved, s.now(), company)
	event.Employee = employee
	s.producer.Produce(event)
	return employee, nil
}

// ProcessPayment pays one employee from the company treasury and advances
// the payment counters of both records.
func (s *PayrollService) ProcessPayment(ctx context.Context, caller models.Pubkey, in *models.Payment) (employee *models.Employee, err error) {
	defer s.observe("ProcessPayment", time.Now(), &err)

	now := s.now()
	var company *models.Company
	err = s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		var err error
		company, employee, err = s.processPayment(ctx, repo, caller, in, now, s.settings.EnforceSchedule)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveTransfer(in.Amount)
	s.paymentProcessed(company, employee, in.AmountCommitment, now)
	return employee, nil
}

// ProcessPayroll pays up to MaxBatchSize employees of one company as a single
// unit. Any failing item rolls back the whole batch. With schedule
// enforcement the due date is checked once, against the company state
// before the batch.
func (s *PayrollService) ProcessPayroll(ctx context.Context, caller, companyAddr models.Pubkey, payments []models.Payment) (run *PayrollRun, err error) {
	defer s.observe("ProcessPayroll", time.Now(), &err)

	if len(payments) == 0 || len(payments) > s.settings.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d payments, limit %d", e.ErrBatchTooLarge, len(payments), s.settings.MaxBatchSize)
	}
	seen := make(map[models.Pubkey]struct{}, len(payments))
	for i := range payments {
		if payments[i].Company != companyAddr {
			return nil, fmt.Errorf("%w: payment %d names company %s", e.ErrInvalidInput, i, payments[i].Company)
		}
		if _, dup := seen[payments[i].Employee]; dup {
			return nil, fmt.Errorf("%w: employee %s paid twice in one batch", e.ErrInvalidInput, payments[i].Employee)
		}
		seen[payments[i].Employee] = struct{}{}
	}

	now := s.now()
	run = &PayrollRun{Employees: make([]*models.Employee, 0, len(payments))}
	// Each payment event carries the company as it stood after that item.
	var states []*models.Company
	err = s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		enforce := s.settings.EnforceSchedule
		run.Employees = run.Employees[:0]
		states = make([]*models.Company, 0, len(payments))
		for i := range payments {
			company, employee, err := s.processPayment(ctx, repo, caller, &payments[i], now, enforce)
			if err != nil {
				return fmt.Errorf("payment %d: %w", i, err)
			}
			enforce = false
			snapshot := *company
			states = append(states, &snapshot)
			run.Company = company
			run.Employees = append(run.Employees, employee)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, employee := range run.Employees {
		s.metrics.ObserveTransfer(payments[i].Amount)
		s.paymentProcessed(states[i], employee, payments[i].AmountCommitment, now)
	}
	s.logger.Info("Payroll batch processed",
		zap.String("company", companyAddr.String()),
		zap.Int("payments", len(run.Employees)),
		zap.Uint64("total_payments_made", run.Company.TotalPaymentsMade),
	)
	return run, nil
}

// RecordPaymentProof stores the audit record of payment id for an employee.
// A payment id can be recorded once per employee.
func (s *PayrollService) RecordPaymentProof(ctx context.Context, caller models.Pubkey, in *models.NewPaymentProof) (proof *models.PaymentProof, err error) {
	defer s.observe("RecordPaymentProof", time.Now(), &err)

	now := s.now()
	var company *models.Company
	err = s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		var err error
		company, err = s.loadCompany(ctx, repo, caller, in.Company)
		if err != nil {
			return err
		}
		if !company.IsActive {
			return e.ErrCompanyInactive
		}
		employee, err := s.loadEmployee(ctx, repo, company, in.Employee)
		if err != nil {
			return err
		}
		if len(in.ZKProof) > models.MaxZKProofSize {
			return fmt.Errorf("%w: zk proof is %d bytes, limit %d", e.ErrInvalidPaymentProof, len(in.ZKProof), models.MaxZKProofSize)
		}
		if len(in.TxSignature) > models.MaxTxSignatureLength {
			return fmt.Errorf("%w: tx signature is %d bytes, limit %d", e.ErrInvalidPaymentProof, len(in.TxSignature), models.MaxTxSignatureLength)
		}

		proof = &models.PaymentProof{
			Address:          address.PaymentProof(company.Address, employee.Wallet, in.PaymentID),
			PaymentID:        in.PaymentID,
			Employee:         employee.Wallet,
			Company:          company.Address,
			PaymentDate:      now,
			AmountCommitment: in.AmountCommitment,
			ZKProof:          append([]byte(nil), in.ZKProof...),
			TxSignature:      in.TxSignature,
			Status:           models.Completed,
		}
		if err := repo.CreatePaymentProof(ctx, proof); err != nil {
			if errors.Is(err, e.ErrAlreadyExists) {
				return fmt.Errorf("%w: payment id %d", e.ErrPaymentAlreadyProcessed, in.PaymentID)
			}
			return fmt.Errorf("failed to create payment proof: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment proof recorded",
		zap.String("company", company.Address.String()),
		zap.String("employee", proof.Employee.String()),
		zap.Uint64("payment_id", proof.PaymentID),
		zap.String("shadowwire_tx_signature", proof.TxSignature),
	)
	event := events.NewEvent(events.PaymentProofRecorded, now, company)
	event.PaymentProof = proof
	s.producer.Produce(event)
	return proof, nil
}

// processPayment runs inside the caller's transaction. It checks every
// precondition before the transfer and computes the new counters before
// writing anything.
func (s *PayrollService) processPayment(ctx context.Context, repo *db.Repository, caller models.Pubkey, in *models.Payment, now int64, enforceSchedule bool) (*models.Company, *models.Employee, error) {
	company, employee, err := s.loadActive(ctx, repo, caller, in.EmployeeRef)
	if err != nil {
		return nil, nil, err
	}
	if enforceSchedule && now < company.NextPaymentDue {
		return nil, nil, fmt.Errorf("%w: next payment due at %d", e.ErrPaymentNotDue, company.NextPaymentDue)
	}

	treasuryAddr := address.Treasury(company.Address)
	treasury, err := s.tokenAccount(ctx, repo, treasuryAddr)
	if err != nil {
		return nil, nil, err
	}
	if treasury.Mint != company.PaymentToken {
		return nil, nil, fmt.Errorf("%w: treasury holds %s", e.ErrInvalidTokenMint, treasury.Mint)
	}
	if in.RecipientAccount == treasuryAddr {
		return nil, nil, fmt.Errorf("%w: recipient is the company treasury", e.ErrInvalidInput)
	}
	if err := s.checkRecipient(ctx, repo, company, employee.Wallet, in.RecipientAccount); err != nil {
		return nil, nil, err
	}
	if in.Amount < s.settings.MinSalaryAmount {
		return nil, nil, fmt.Errorf("%w: %d is below %d", e.ErrInvalidSalaryAmount, in.Amount, s.settings.MinSalaryAmount)
	}
	if treasury.Amount < in.Amount {
		return nil, nil, e.ErrInsufficientCompanyBalance
	}

	received, ok := checked.Add(employee.TotalPaymentsReceived, 1)
	if !ok {
		return nil, nil, e.ErrArithmeticOverflow
	}
	made, ok := checked.Add(company.TotalPaymentsMade, 1)
	if !ok {
		return nil, nil, e.ErrArithmeticOverflow
	}
	nextDue, ok := checked.AddInt64(now, employee.PaymentFrequency.Interval())
	if !ok {
		return nil, nil, e.ErrArithmeticOverflow
	}

	err = s.ledger.Transfer(ctx, repo, ledger.TransferRequest{
		From:      treasuryAddr,
		To:        in.RecipientAccount,
		Authority: address.CompanySigner(company.Authority),
		Amount:    in.Amount,
	})
	if err != nil {
		return nil, nil, transferError(err)
	}

	employee.LastPaymentDate = now
	employee.TotalPaymentsReceived = received
	company.LastPaymentTimestamp = now
	company.NextPaymentDue = nextDue
	company.TotalPaymentsMade = made
	if err := repo.UpdateEmployee(ctx, employee); err != nil {
		return nil, nil, fmt.Errorf("failed to update employee: %w", err)
	}
	if err := repo.UpdateCompany(ctx, company); err != nil {
		return nil, nil, fmt.Errorf("failed to update company: %w", err)
	}
	return company, employee, nil
}

func (s *PayrollService) paymentProcessed(company *models.Company, employee *models.Employee, commitment models.Hash, now int64) {
	s.logger.Info("Payment processed",
		zap.String("company", company.Address.String()),
		zap.String("employee", employee.Wallet.String()),
		zap.String("amount_commitment", commitment.String()),
		zap.Uint64("payment_number", employee.TotalPaymentsReceived),
	)
	event := events.NewEvent(events.PaymentProcessed, now, company)
	event.Employee = employee
	event.AmountCommitment = &commitment
	s.producer.Produce(event)
}

// loadCompany loads the company at addr and checks that caller is its
// authority and that addr is the company address caller derives.
func (s *PayrollService) loadCompany(ctx context.Context, repo *db.Repository, caller, addr models.Pubkey) (*models.Company, error) {
	company, err := repo.GetCompany(ctx, addr)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", e.ErrCompanyNotFound, addr)
		}
		return nil, fmt.Errorf("failed to load company: %w", err)
	}
	if company.Authority != caller {
		return nil, e.ErrUnauthorizedAccess
	}
	if address.Company(caller) != addr {
		return nil, fmt.Errorf("%w: company %s", e.ErrAddressMismatch, addr)
	}
	return company, nil
}

// loadEmployee loads the employee at addr and checks it belongs to company.
// Records of other companies are reported as not found.
func (s *PayrollService) loadEmployee(ctx context.Context, repo *db.Repository, company *models.Company, addr models.Pubkey) (*models.Employee, error) {
	employee, err := repo.GetEmployee(ctx, addr)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", e.ErrEmployeeNotFound, addr)
		}
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}
	if employee.Company != company.Address || address.Employee(company.Address, employee.Wallet) != addr {
		return nil, fmt.Errorf("%w: %s", e.ErrEmployeeNotFound, addr)
	}
	return employee, nil
}

// loadActive loads an active employee of an active company for caller.
func (s *PayrollService) loadActive(ctx context.Context, repo *db.Repository, caller models.Pubkey, ref models.EmployeeRef) (*models.Company, *models.Employee, error) {
	company, err := s.loadCompany(ctx, repo, caller, ref.Company)
	if err != nil {
		return nil, nil, err
	}
	if !company.IsActive {
		return nil, nil, e.ErrCompanyInactive
	}
	employee, err := s.loadEmployee(ctx, repo, company, ref.Employee)
	if err != nil {
		return nil, nil, err
	}
	if !employee.IsActive {
		return nil, nil, e.ErrEmployeeInactive
	}
	return company, employee, nil
}

// checkRecipient checks that account is owned by wallet and holds the
// company payment token.
func (s *PayrollService) checkRecipient(ctx context.Context, repo *db.Repository, company *models.Company, wallet, account models.Pubkey) error {
	recipient, err := s.tokenAccount(ctx, repo, account)
	if err != nil {
		return err
	}
	if recipient.Owner != wallet {
		return fmt.Errorf("%w: %s is not owned by %s", e.ErrInvalidTokenMint, account, wallet)
	}
	if recipient.Mint != company.PaymentToken {
		return fmt.Errorf("%w: %s holds %s", e.ErrInvalidTokenMint, account, recipient.Mint)
	}
	return nil
}

func (s *PayrollService) tokenAccount(ctx context.Context, store ledger.Store, addr models.Pubkey) (*models.TokenAccount, error) {
	account, err := s.ledger.Account(ctx, store, addr)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: %s", e.ErrTokenAccountNotFound, addr)
		}
		return nil, fmt.Errorf("failed to load token account: %w", err)
	}
	return account, nil
}

func (s *PayrollService) observe(operation string, started time.Time, err *error) {
	result := ""
	if *err != nil {
		result = e.CodeOf(*err)
	}
	s.metrics.ObserveOperation(operation, result, started)
}

func validateEncryptedSalary(blob []byte) error {
	if len(blob) == 0 || len(blob) > models.MaxEncryptedSalarySize {
		return fmt.Errorf("%w: %d bytes", e.ErrInvalidEncryptedSalary, len(blob))
	}
	return nil
}

// validateWallet rejects wallets that cannot own a payroll recipient: the
// zero key and the company's own accounts.
func validateWallet(company, wallet models.Pubkey) error {
	switch {
	case wallet.IsZero():
		return fmt.Errorf("%w: wallet is required", e.ErrInvalidInput)
	case wallet == company, wallet == address.Treasury(company):
		return fmt.Errorf("%w: wallet %s is a company account", e.ErrInvalidInput, wallet)
	}
	return nil
}

func transferError(err error) error {
	switch {
	case errors.Is(err, e.ErrConcurrentUpdate):
		return err
	case errors.Is(err, ledger.ErrSelfTransfer):
		return fmt.Errorf("%w: %v", e.ErrInvalidInput, err)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return e.ErrInsufficientCompanyBalance
	case errors.Is(err, ledger.ErrMintMismatch):
		return e.ErrInvalidTokenMint
	case errors.Is(err, ledger.ErrBalanceOverflow):
		return fmt.Errorf("%w: recipient balance", e.ErrArithmeticOverflow)
	default:
		return fmt.Errorf("%w: %v", e.ErrTransferFailed, err)
	}
}
