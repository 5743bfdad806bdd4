// Package ledger is the token-transfer subsystem used by payroll. It keeps
// token accounts in the same account store as the payroll records, so a
// transfer commits or rolls back together with the operation that invoked it.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gartstein/payroll/internal/payroll/address"
	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/gartstein/payroll/internal/pkg/checked"
	"go.uber.org/zap"
)

var (
	ErrAccountNotFound   = errors.New("ledger: token account not found")
	ErrAccountExists     = errors.New("ledger: token account already exists")
	ErrOwnerMismatch     = errors.New("ledger: signer does not own source account")
	ErrMintMismatch      = errors.New("ledger: accounts hold different mints")
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrBalanceOverflow   = errors.New("ledger: balance overflow")
	ErrInvalidAmount     = errors.New("ledger: amount must be positive")
	ErrSelfTransfer      = errors.New("ledger: source and destination are the same account")
)

// Store is the slice of the account store the ledger needs.
type Store interface {
	CreateTokenAccount(ctx context.Context, account *models.TokenAccount) error
	GetTokenAccount(ctx context.Context, addr models.Pubkey) (*models.TokenAccount, error)
	UpdateTokenAccount(ctx context.Context, account *models.TokenAccount) error
}

// TransferRequest moves Amount of the source mint from From to To.
type TransferRequest struct {
	From      models.Pubkey
	To        models.Pubkey
	Authority address.Signer
	Amount    uint64
}

type Ledger struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Ledger {
	return &Ledger{logger: logger.Named("ledger")}
}

// OpenAccount creates an empty token account at addr.
func (l *Ledger) OpenAccount(ctx context.Context, store Store, addr, owner, mint models.Pubkey) (*models.TokenAccount, error) {
	account := &models.TokenAccount{Address: addr, Owner: owner, Mint: mint}
	if err := store.CreateTokenAccount(ctx, account); err != nil {
		if errors.Is(err, e.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", ErrAccountExists, addr)
		}
		return nil, err
	}
	l.logger.Info("Token account opened",
		zap.String("account", addr.String()),
		zap.String("owner", owner.String()),
		zap.String("mint", mint.String()),
	)
	return account, nil
}

// OpenAssociatedAccount creates owner's associated account for mint.
func (l *Ledger) OpenAssociatedAccount(ctx context.Context, store Store, owner, mint models.Pubkey) (*models.TokenAccount, error) {
	return l.OpenAccount(ctx, store, address.TokenAccount(owner, mint), owner, mint)
}

// Account loads a token account.
func (l *Ledger) Account(ctx context.Context, store Store, addr models.Pubkey) (*models.TokenAccount, error) {
	account, err := store.GetTokenAccount(ctx, addr)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
		}
		return nil, err
	}
	return account, nil
}

// Deposit credits amount to addr. It stands in for funding from outside the
// payroll system and is only reachable when the sandbox is enabled.
func (l *Ledger) Deposit(ctx context.Context, store Store, addr models.Pubkey, amount uint64) (*models.TokenAccount, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	account, err := l.Account(ctx, store, addr)
	if err != nil {
		return nil, err
	}
	balance, ok := checked.Add(account.Amount, amount)
	if !ok {
		return nil, ErrBalanceOverflow
	}
	account.Amount = balance
	if err := store.UpdateTokenAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Transfer moves tokens between two accounts of the same mint. The signer
// must verify and must own the source account.
func (l *Ledger) Transfer(ctx context.Context, store Store, req TransferRequest) error {
	if req.Amount == 0 {
		return ErrInvalidAmount
	}
	if req.From == req.To {
		return ErrSelfTransfer
	}
	if err := req.Authority.Verify(); err != nil {
		return fmt.Errorf("%w: %v", ErrOwnerMismatch, err)
	}
	from, err := l.Account(ctx, store, req.From)
	if err != nil {
		return err
	}
	to, err := l.Account(ctx, store, req.To)
	if err != nil {
		return err
	}
	if from.Owner != req.Authority.Address() {
		return ErrOwnerMismatch
	}
	if from.Mint != to.Mint {
		return ErrMintMismatch
	}
	debited, ok := checked.Sub(from.Amount, req.Amount)
	if !ok {
		return ErrInsufficientFunds
	}
	credited, ok := checked.Add(to.Amount, req.Amount)
	if !ok {
		return ErrBalanceOverflow
	}
	from.Amount = debited
	to.Amount = credited

	if err := store.UpdateTokenAccount(ctx, from); err != nil {
		return fmt.Errorf("debit %s: %w", from.Address, err)
	}
	if err := store.UpdateTokenAccount(ctx, to); err != nil {
		return fmt.Errorf("credit %s: %w", to.Address, err)
	}
	return nil
}
