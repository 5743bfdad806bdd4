// Package errors defines the payroll error taxonomy. Every failure a caller
// can observe is one of the sentinel values below, optionally wrapped with
// detail via fmt.Errorf("%w: ...").
package errors

import (
	"errors"
	"fmt"
)

// Kind groups errors by what the caller should do about them.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthorization
	KindState
	KindValidation
	KindArithmetic
	KindFunds
	KindExternal
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindValidation:
		return "validation"
	case KindArithmetic:
		return "arithmetic"
	case KindFunds:
		return "funds"
	case KindExternal:
		return "external"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Retry classes returned by Kind.Retry.
const (
	RetryFixInput = "fix-input"
	RetryWait     = "wait"
	RetryNever    = "never"
	RetryNow      = "now"
)

// Retry tells a caller whether and how to retry after an error of this kind.
func (k Kind) Retry() string {
	switch k {
	case KindValidation, KindArithmetic:
		return RetryFixInput
	case KindFunds, KindExternal, KindInternal:
		return RetryWait
	case KindConflict:
		return RetryNow
	default:
		return RetryNever
	}
}

// Error is a payroll failure with a stable code.
type Error struct {
	Kind Kind
	Code string
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Storage and transport level errors.
var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrAlreadyExists = fmt.Errorf("already exists")
	ErrInvalidInput  = newError(KindValidation, "InvalidInput", "invalid input")
)

// ErrConcurrentUpdate is a serialization failure: another transaction wrote
// the same rows first and nothing was applied.
var ErrConcurrentUpdate = newError(KindConflict, "ConcurrentUpdate", "concurrent update conflict, retry the operation")

var (
	ErrUnauthorizedAccess = newError(KindAuthorization, "UnauthorizedAccess", "only company authority can perform this action")
	ErrAddressMismatch    = newError(KindAuthorization, "AddressMismatch", "account address does not match its derivation")
	ErrSandboxDisabled    = newError(KindAuthorization, "SandboxDisabled", "ledger sandbox operations are disabled")

	ErrCompanyAlreadyExists    = newError(KindState, "CompanyAlreadyExists", "company already exists for this authority")
	ErrCompanyNotFound         = newError(KindState, "CompanyNotFound", "company not found")
	ErrCompanyInactive         = newError(KindState, "CompanyInactive", "company is marked as inactive")
	ErrEmployeeAlreadyExists   = newError(KindState, "EmployeeAlreadyExists", "employee already exists in this company")
	ErrEmployeeNotFound        = newError(KindState, "EmployeeNotFound", "employee not found in this company")
	ErrEmployeeInactive        = newError(KindState, "EmployeeInactive", "employee is marked as inactive")
	ErrPaymentAlreadyProcessed = newError(KindState, "PaymentAlreadyProcessed", "payment already processed")
	ErrPaymentNotDue           = newError(KindState, "PaymentNotDue", "payment not yet due based on schedule")
	ErrTokenAccountNotFound    = newError(KindState, "TokenAccountNotFound", "token account not found")

	ErrCompanyNameTooLong      = newError(KindValidation, "CompanyNameTooLong", "company name must be 1 to 50 bytes")
	ErrInvalidEncryptedSalary  = newError(KindValidation, "InvalidEncryptedSalary", "invalid encrypted salary data")
	ErrInvalidSalaryAmount     = newError(KindValidation, "InvalidSalaryAmount", "salary amount must be greater than minimum")
	ErrInvalidPaymentFrequency = newError(KindValidation, "InvalidPaymentFrequency", "invalid payment frequency specified")
	ErrInvalidPaymentProof     = newError(KindValidation, "InvalidPaymentProof", "invalid payment proof provided")
	ErrInvalidTokenMint        = newError(KindValidation, "InvalidTokenMint", "invalid token mint address")
	ErrMaxEmployeesReached     = newError(KindValidation, "MaxEmployeesReached", "maximum employee limit reached")
	ErrBatchTooLarge           = newError(KindValidation, "BatchTooLarge", "payroll batch is empty or exceeds the maximum size")

	ErrArithmeticOverflow  = newError(KindArithmetic, "ArithmeticOverflow", "arithmetic overflow occurred")
	ErrArithmeticUnderflow = newError(KindArithmetic, "ArithmeticUnderflow", "arithmetic underflow occurred")

	ErrInsufficientCompanyBalance = newError(KindFunds, "InsufficientCompanyBalance", "company has insufficient balance for payroll")

	ErrTransferFailed = newError(KindExternal, "TransferFailed", "token transfer failed")
	ErrShadowWire     = newError(KindExternal, "ShadowWireError", "shadowwire integration failed")
)

// As returns the taxonomy error wrapped in err, if any.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for errors outside the taxonomy.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code of err, or "Internal".
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return "Internal"
}
