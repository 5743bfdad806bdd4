package models

// NewCompany carries the inputs of CreateCompany. The authority is the caller.
type NewCompany struct {
	Name             string
	BudgetCommitment Hash
	PaymentToken     Pubkey
	PaymentFrequency PaymentFrequency
}

// NewEmployee carries the inputs of AddEmployee.
type NewEmployee struct {
	// Company is the declared company address, checked against the caller.
	Company          Pubkey
	Wallet           Pubkey
	EncryptedSalary  []byte
	SalaryCommitment Hash
	PaymentFrequency PaymentFrequency
	// TokenAccount optionally names the account that will receive payments.
	// When set it must be owned by Wallet and hold the company payment token.
	TokenAccount Pubkey
}

// EmployeeRef names an employee record and the company it is declared to belong to.
type EmployeeRef struct {
	Company  Pubkey
	Employee Pubkey
}

// SalaryUpdate carries the inputs of UpdateEmployeeSalary.
type SalaryUpdate struct {
	EmployeeRef
	EncryptedSalary  []byte
	SalaryCommitment Hash
}

// Payment carries the inputs of ProcessPayment.
type Payment struct {
	EmployeeRef
	// RecipientAccount is the employee's token account. It must be owned by
	// the employee wallet and hold the company payment token.
	RecipientAccount Pubkey
	Amount           uint64
	AmountCommitment Hash
}

// NewPaymentProof carries the inputs of RecordPaymentProof.
type NewPaymentProof struct {
	EmployeeRef
	PaymentID        uint64
	AmountCommitment Hash
	ZKProof          []byte
	TxSignature      string
}
