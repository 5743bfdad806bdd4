package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gartstein/payroll/internal/payroll/address"
	"github.com/gartstein/payroll/internal/payroll/db"
	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/gartstein/payroll/internal/payroll/ledger"
	"github.com/gartstein/payroll/internal/payroll/models"
	"go.uber.org/zap"
)

// GetCompany returns the company stored at addr.
func (s *PayrollService) GetCompany(ctx context.Context, addr models.Pubkey) (*models.Company, error) {
	company, err := s.repo.GetCompany(ctx, addr)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", e.ErrCompanyNotFound, addr)
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return company, nil
}

// GetEmployee returns the employee stored at addr.
func (s *PayrollService) GetEmployee(ctx context.Context, addr models.Pubkey) (*models.Employee, error) {
	employee, err := s.repo.GetEmployee(ctx, addr)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", e.ErrEmployeeNotFound, addr)
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return employee, nil
}

// ListEmployees returns the roster of company, removed employees included.
func (s *PayrollService) ListEmployees(ctx context.Context, company models.Pubkey) ([]*models.Employee, error) {
	if _, err := s.GetCompany(ctx, company); err != nil {
		return nil, err
	}
	employees, err := s.repo.ListEmployees(ctx, company)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return employees, nil
}

func (s *PayrollService) GetPaymentProof(ctx context.Context, addr models.Pubkey) (*models.PaymentProof, error) {
	proof, err := s.repo.GetPaymentProof(ctx, addr)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, fmt.Errorf("%w: payment proof %s", e.ErrNotFound, addr)
		}
		return nil, fmt.Errorf("failed to get payment proof: %w", err)
	}
	return proof, nil
}

// ListPaymentProofs returns the proofs recorded for the employee at
// employeeAddr.
func (s *PayrollService) ListPaymentProofs(ctx context.Context, company, employeeAddr models.Pubkey) ([]*models.PaymentProof, error) {
	employee, err := s.GetEmployee(ctx, employeeAddr)
	if err != nil {
		return nil, err
	}
	if employee.Company != company {
		return nil, fmt.Errorf("%w: %s", e.ErrEmployeeNotFound, employeeAddr)
	}
	proofs, err := s.repo.ListPaymentProofs(ctx, company, employee.Wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment proofs: %w", err)
	}
	return proofs, nil
}

func (s *PayrollService) GetTokenAccount(ctx context.Context, addr models.Pubkey) (*models.TokenAccount, error) {
	account, err := s.repo.GetTokenAccount(ctx, addr)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", e.ErrTokenAccountNotFound, addr)
		}
		return nil, fmt.Errorf("failed to get token account: %w", err)
	}
	return account, nil
}

// GetTreasury returns the treasury token account of company.
func (s *PayrollService) GetTreasury(ctx context.Context, company models.Pubkey) (*models.TokenAccount, error) {
	return s.GetTokenAccount(ctx, address.Treasury(company))
}

// OpenTokenAccount opens the associated token account of owner for mint.
// Sandbox only.
func (s *PayrollService) OpenTokenAccount(ctx context.Context, owner, mint models.Pubkey) (account *models.TokenAccount, err error) {
	defer s.observe("OpenTokenAccount", time.Now(), &err)

	if !s.settings.Sandbox {
		return nil, e.ErrSandboxDisabled
	}
	if owner.IsZero() || mint.IsZero() {
		return nil, fmt.Errorf("%w: owner and mint are required", e.ErrInvalidInput)
	}
	err = s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		var err error
		account, err = s.ledger.OpenAssociatedAccount(ctx, repo, owner, mint)
		if errors.Is(err, ledger.ErrAccountExists) {
			return fmt.Errorf("%w: token account %s", e.ErrAlreadyExists, address.TokenAccount(owner, mint))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Deposit credits amount to a token account. Sandbox only.
func (s *PayrollService) Deposit(ctx context.Context, addr models.Pubkey, amount uint64) (account *models.TokenAccount, err error) {
	defer s.observe("Deposit", time.Now(), &err)

	if !s.settings.Sandbox {
		return nil, e.ErrSandboxDisabled
	}
	err = s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		var err error
		account, err = s.ledger.Deposit(ctx, repo, addr, amount)
		switch {
		case errors.Is(err, ledger.ErrAccountNotFound):
			return fmt.Errorf("%w: %s", e.ErrTokenAccountNotFound, addr)
		case errors.Is(err, ledger.ErrBalanceOverflow):
			return e.ErrArithmeticOverflow
		case errors.Is(err, ledger.ErrInvalidAmount):
			return fmt.Errorf("%w: deposit must be positive", e.ErrInvalidInput)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Sandbox deposit",
		zap.String("account", addr.String()),
		zap.Uint64("amount", amount),
	)
	return account, nil
}
