// Package models defines the core domain models for the payroll service:
// Company, Employee, PaymentProof and TokenAccount records, the
// PaymentFrequency and PaymentStatus enumerations, and the inputs of the
// payroll operations.
package models

import (
	"fmt"
	"strings"
)

const (
	// MaxEmployeesPerCompany bounds Company.EmployeeCount.
	MaxEmployeesPerCompany uint16 = 1000
	// MaxCompanyNameLength is the longest accepted company name, in bytes.
	MaxCompanyNameLength = 50
	// MinSalaryAmount is the smallest payment, in token base units (1 USDC at 6 decimals).
	MinSalaryAmount uint64 = 1_000_000
	// TokenDecimals is the precision of the payroll token.
	TokenDecimals uint8 = 6
	// PaymentProcessingFeeBps and RelayerFeeBps are published fee rates. No fee is charged.
	PaymentProcessingFeeBps uint16 = 30
	RelayerFeeBps           uint16 = 100
	// MaxBatchSize bounds the number of payments in one payroll run.
	MaxBatchSize = 10

	// MaxEncryptedSalarySize bounds Employee.EncryptedSalary.
	MaxEncryptedSalarySize = 256
	// MaxZKProofSize bounds PaymentProof.ZKProof.
	MaxZKProofSize = 512
	// MaxTxSignatureLength bounds PaymentProof.TxSignature.
	MaxTxSignatureLength = 88

	SecondsPerWeek   int64 = 604_800
	SecondsPerBiweek int64 = 1_209_600
	SecondsPerMonth  int64 = 2_592_000
)

// PaymentFrequency is the pay cadence of a company or an employee.
type PaymentFrequency uint8

const (
	Weekly PaymentFrequency = iota
	Biweekly
	Monthly
)

// Interval returns the number of seconds between two payments. Monthly is a
// fixed 30-day period.
func (f PaymentFrequency) Interval() int64 {
	switch f {
	case Weekly:
		return SecondsPerWeek
	case Biweekly:
		return SecondsPerBiweek
	case Monthly:
		return SecondsPerMonth
	default:
		return 0
	}
}

// Valid reports whether f is a known frequency.
func (f PaymentFrequency) Valid() bool {
	switch f {
	case Weekly, Biweekly, Monthly:
		return true
	default:
		return false
	}
}

func (f PaymentFrequency) String() string {
	switch f {
	case Weekly:
		return "WEEKLY"
	case Biweekly:
		return "BIWEEKLY"
	case Monthly:
		return "MONTHLY"
	default:
		return fmt.Sprintf("PaymentFrequency(%d)", uint8(f))
	}
}

// ParsePaymentFrequency accepts the names returned by String, case-insensitively.
func ParsePaymentFrequency(s string) (PaymentFrequency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WEEKLY":
		return Weekly, nil
	case "BIWEEKLY":
		return Biweekly, nil
	case "MONTHLY":
		return Monthly, nil
	default:
		return 0, fmt.Errorf("unknown payment frequency %q", s)
	}
}

func (f PaymentFrequency) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("unknown payment frequency %d", uint8(f))
	}
	return []byte(f.String()), nil
}

func (f *PaymentFrequency) UnmarshalText(text []byte) error {
	parsed, err := ParsePaymentFrequency(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// PaymentStatus is the state of a recorded payment proof. Proofs are
// currently written as Completed; the other states are reserved.
type PaymentStatus uint8

const (
	Pending PaymentStatus = iota
	Processing
	Completed
	Failed
)

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case Pending, Processing, Completed, Failed:
		return true
	default:
		return false
	}
}

func (s PaymentStatus) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Processing:
		return "PROCESSING"
	case Completed:
		return "COMPLETED"
	case Failed:
		return "FAILED"
	default:
		return fmt.Sprintf("PaymentStatus(%d)", uint8(s))
	}
}

func (s PaymentStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown payment status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *PaymentStatus) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "PENDING":
		*s = Pending
	case "PROCESSING":
		*s = Processing
	case "COMPLETED":
		*s = Completed
	case "FAILED":
		*s = Failed
	default:
		return fmt.Errorf("unknown payment status %q", text)
	}
	return nil
}

// Company defines the domain model for an employer.
type Company struct {
	// Address is the deterministic storage address derived from Authority.
	Address Pubkey `json:"address"`
	// Authority is the only key allowed to mutate the company and its employees.
	Authority Pubkey `json:"authority"`
	// Name is 1 to 50 bytes.
	Name string `json:"name"`
	// EmployeeCount is the number of active employees.
	EmployeeCount uint16 `json:"employee_count"`
	// BudgetCommitment pins the off-ledger budget amount.
	BudgetCommitment Hash `json:"budget_commitment"`
	// PaymentToken is the mint of the asset used for payroll.
	PaymentToken     Pubkey           `json:"payment_token"`
	PaymentFrequency PaymentFrequency `json:"payment_frequency"`
	// LastPaymentTimestamp and NextPaymentDue are Unix seconds.
	LastPaymentTimestamp int64  `json:"last_payment_timestamp"`
	NextPaymentDue       int64  `json:"next_payment_due"`
	TotalPaymentsMade    uint64 `json:"total_payments_made"`
	IsActive             bool   `json:"is_active"`
}

// Employee defines the domain model for a worker on a company roster.
type Employee struct {
	// Address is derived from Company and Wallet.
	Address Pubkey `json:"address"`
	// Wallet owns the account that receives payments.
	Wallet  Pubkey `json:"wallet"`
	Company Pubkey `json:"company"`
	// EncryptedSalary is client-side ciphertext, 1 to 256 bytes.
	EncryptedSalary  []byte           `json:"encrypted_salary"`
	SalaryCommitment Hash             `json:"salary_commitment"`
	PaymentFrequency PaymentFrequency `json:"payment_frequency"`
	JoinDate         int64            `json:"join_date"`
	LastPaymentDate  int64            `json:"last_payment_date"`
	// TotalPaymentsReceived only ever increases.
	TotalPaymentsReceived uint64 `json:"total_payments_received"`
	IsActive              bool   `json:"is_active"`
}

// PaymentProof is an append-only audit record of a private payment.
type PaymentProof struct {
	// Address is derived from Company, Employee and PaymentID.
	Address   Pubkey `json:"address"`
	PaymentID uint64 `json:"payment_id,string"`
	// Employee is the wallet of the paid employee.
	Employee         Pubkey `json:"employee"`
	Company          Pubkey `json:"company"`
	PaymentDate      int64  `json:"payment_date"`
	AmountCommitment Hash   `json:"amount_commitment"`
	// ZKProof is an opaque blob of at most 512 bytes. It is stored, not verified.
	ZKProof []byte `json:"zk_proof"`
	// TxSignature references the private relay's own ledger, at most 88 bytes.
	TxSignature string        `json:"shadowwire_tx_signature"`
	Status      PaymentStatus `json:"status"`
}

// TokenAccount holds a balance of one mint for one owner.
type TokenAccount struct {
	Address Pubkey `json:"address"`
	Mint    Pubkey `json:"mint"`
	Owner   Pubkey `json:"owner"`
	Amount  uint64 `json:"amount,string"`
}
