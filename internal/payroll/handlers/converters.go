package handlers

import (
	"encoding/json"
	"fmt"

	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/gartstein/payroll/internal/payroll/models"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Request bodies shared by the gRPC and HTTP transports. Keys are base58,
// commitments are hex, blobs are base64 and 64-bit amounts are strings.
// payment_frequency is required where it appears; a missing value is not
// read as weekly.

type CreateCompanyRequest struct {
	Name             string                   `json:"name"`
	BudgetCommitment models.Hash              `json:"budget_commitment"`
	PaymentToken     models.Pubkey            `json:"payment_token"`
	PaymentFrequency *models.PaymentFrequency `json:"payment_frequency"`
}

type AddEmployeeRequest struct {
	Company          models.Pubkey            `json:"company"`
	Wallet           models.Pubkey            `json:"wallet"`
	EncryptedSalary  []byte                   `json:"encrypted_salary"`
	SalaryCommitment models.Hash              `json:"salary_commitment"`
	PaymentFrequency *models.PaymentFrequency `json:"payment_frequency"`
	// TokenAccount is optional; the recipient account is checked at payment.
	TokenAccount models.Pubkey `json:"token_account"`
}

type EmployeeRequest struct {
	Company  models.Pubkey `json:"company"`
	Employee models.Pubkey `json:"employee"`
}

type UpdateSalaryRequest struct {
	EmployeeRequest
	EncryptedSalary  []byte      `json:"encrypted_salary"`
	SalaryCommitment models.Hash `json:"salary_commitment"`
}

type PaymentRequest struct {
	EmployeeRequest
	RecipientAccount models.Pubkey `json:"recipient_account"`
	Amount           uint64        `json:"amount,string"`
	AmountCommitment models.Hash   `json:"amount_commitment"`
}

type PayrollRequest struct {
	Company  models.Pubkey    `json:"company"`
	Payments []PaymentRequest `json:"payments"`
}

type PaymentProofRequest struct {
	EmployeeRequest
	PaymentID        uint64      `json:"payment_id,string"`
	AmountCommitment models.Hash `json:"amount_commitment"`
	ZKProof          []byte      `json:"zk_proof"`
	TxSignature      string      `json:"shadowwire_tx_signature"`
}

type AddressRequest struct {
	Address models.Pubkey `json:"address"`
}

type OpenTokenAccountRequest struct {
	Owner models.Pubkey `json:"owner"`
	Mint  models.Pubkey `json:"mint"`
}

type DepositRequest struct {
	Account models.Pubkey `json:"account"`
	Amount  uint64        `json:"amount,string"`
}

// Response wrappers for list operations.

type EmployeesResponse struct {
	Employees []*models.Employee `json:"employees"`
}

type PaymentProofsResponse struct {
	PaymentProofs []*models.PaymentProof `json:"payment_proofs"`
}

func (r *CreateCompanyRequest) toModel() (*models.NewCompany, error) {
	if r.PaymentFrequency == nil {
		return nil, errFrequencyRequired
	}
	return &models.NewCompany{
		Name:             r.Name,
		BudgetCommitment: r.BudgetCommitment,
		PaymentToken:     r.PaymentToken,
		PaymentFrequency: *r.PaymentFrequency,
	}, nil
}

func (r *AddEmployeeRequest) toModel() (*models.NewEmployee, error) {
	if r.PaymentFrequency == nil {
		return nil, errFrequencyRequired
	}
	if r.Wallet.IsZero() {
		return nil, fmt.Errorf("%w: wallet is required", e.ErrInvalidInput)
	}
	return &models.NewEmployee{
		Company:          r.Company,
		Wallet:           r.Wallet,
		EncryptedSalary:  r.EncryptedSalary,
		SalaryCommitment: r.SalaryCommitment,
		PaymentFrequency: *r.PaymentFrequency,
		TokenAccount:     r.TokenAccount,
	}, nil
}

var errFrequencyRequired = fmt.Errorf("%w: payment_frequency is required", e.ErrInvalidInput)

func (r *EmployeeRequest) toModel() models.EmployeeRef {
	return models.EmployeeRef{Company: r.Company, Employee: r.Employee}
}

func (r *UpdateSalaryRequest) toModel() *models.SalaryUpdate {
	return &models.SalaryUpdate{
		EmployeeRef:      r.EmployeeRequest.toModel(),
		EncryptedSalary:  r.EncryptedSalary,
		SalaryCommitment: r.SalaryCommitment,
	}
}

func (r *PaymentRequest) toModel() *models.Payment {
	return &models.Payment{
		EmployeeRef:      r.EmployeeRequest.toModel(),
		RecipientAccount: r.RecipientAccount,
		Amount:           r.Amount,
		AmountCommitment: r.AmountCommitment,
	}
}

// toModel fills in the batch company on items that leave it out.
func (r *PayrollRequest) toModel() []models.Payment {
	payments := make([]models.Payment, 0, len(r.Payments))
	for i := range r.Payments {
		p := r.Payments[i].toModel()
		if p.Company.IsZero() {
			p.Company = r.Company
		}
		payments = append(payments, *p)
	}
	return payments
}

func (r *PaymentProofRequest) toModel() *models.NewPaymentProof {
	return &models.NewPaymentProof{
		EmployeeRef:      r.EmployeeRequest.toModel(),
		PaymentID:        r.PaymentID,
		AmountCommitment: r.AmountCommitment,
		ZKProof:          r.ZKProof,
		TxSignature:      r.TxSignature,
	}
}

// decodeStruct converts a protobuf Struct into one of the request types.
func decodeStruct(in *structpb.Struct, out interface{}) error {
	if in == nil {
		return fmt.Errorf("request body required")
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

// encodeStruct converts a model or response value into a protobuf Struct.
func encodeStruct(in interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}
