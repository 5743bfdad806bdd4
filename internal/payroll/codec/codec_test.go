package codec

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(b byte) (k models.Pubkey) {
	for i := range k {
		k[i] = b
	}
	return k
}

func TestCompanyLayout(t *testing.T) {
	company := &models.Company{
		Authority:            fill(1),
		Name:                 "Acme",
		EmployeeCount:        3,
		BudgetCommitment:     models.Hash(fill(2)),
		PaymentToken:         fill(3),
		PaymentFrequency:     models.Biweekly,
		LastPaymentTimestamp: 1_700_000_000,
		NextPaymentDue:       1_701_209_600,
		TotalPaymentsMade:    12,
		IsActive:             true,
	}

	data, err := EncodeCompany(company)
	require.NoError(t, err)
	assert.Len(t, data, CompanyLen)

	d := KindCompany.Discriminator()
	assert.Equal(t, d[:], data[:8], "record must start with its discriminator")
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(data[40:44]), "name is length-prefixed")
	assert.True(t, bytes.Equal(make([]byte, 64), data[CompanyLen-64:]), "padding stays zero")

	decoded, err := DecodeCompany(data)
	require.NoError(t, err)
	assert.Equal(t, company, decoded)
}

func TestEmployeeLayout(t *testing.T) {
	employee := &models.Employee{
		Wallet:                fill(4),
		Company:               fill(5),
		EncryptedSalary:       bytes.Repeat([]byte{0xAB}, models.MaxEncryptedSalarySize),
		SalaryCommitment:      models.Hash(fill(6)),
		PaymentFrequency:      models.Monthly,
		JoinDate:              1,
		LastPaymentDate:       2,
		TotalPaymentsReceived: 3,
		IsActive:              true,
	}

	data, err := EncodeEmployee(employee)
	require.NoError(t, err)
	assert.Len(t, data, EmployeeLen)

	decoded, err := DecodeEmployee(data)
	require.NoError(t, err)
	assert.Equal(t, employee, decoded)
}

func TestPaymentProofLayout(t *testing.T) {
	proof := &models.PaymentProof{
		PaymentID:        7,
		Employee:         fill(7),
		Company:          fill(8),
		PaymentDate:      1_700_000_000,
		AmountCommitment: models.Hash(fill(9)),
		ZKProof:          []byte{},
		TxSignature:      "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW",
		Status:           models.Completed,
	}

	data, err := EncodePaymentProof(proof)
	require.NoError(t, err)
	assert.Len(t, data, PaymentProofLen)

	decoded, err := DecodePaymentProof(data)
	require.NoError(t, err)
	assert.Equal(t, proof, decoded)
}

func TestTokenAccountLayout(t *testing.T) {
	account := &models.TokenAccount{Mint: fill(1), Owner: fill(2), Amount: 5_000_000}

	data, err := EncodeTokenAccount(account)
	require.NoError(t, err)
	assert.Len(t, data, TokenAccountLen)

	decoded, err := DecodeTokenAccount(data)
	require.NoError(t, err)
	assert.Equal(t, account, decoded)
}

func TestEncodeRejectsOversizeFields(t *testing.T) {
	_, err := EncodeCompany(&models.Company{Name: string(bytes.Repeat([]byte("x"), models.MaxCompanyNameLength+1))})
	assert.Error(t, err)

	_, err = EncodeEmployee(&models.Employee{EncryptedSalary: make([]byte, models.MaxEncryptedSalarySize+1)})
	assert.Error(t, err)

	_, err = EncodePaymentProof(&models.PaymentProof{ZKProof: make([]byte, models.MaxZKProofSize+1)})
	assert.Error(t, err)
}

func TestDecodeRejectsWrongKind(t *testing.T) {
	data, err := EncodeTokenAccount(&models.TokenAccount{})
	require.NoError(t, err)

	_, err = DecodeCompany(data)
	assert.Error(t, err)

	kind, err := KindOf(data)
	require.NoError(t, err)
	assert.Equal(t, KindTokenAccount, kind)
}

func TestDecodeRejectsCorruptLengthPrefix(t *testing.T) {
	data, err := EncodeCompany(&models.Company{Name: "Acme"})
	require.NoError(t, err)
	binary.LittleEndian.PutUint32(data[40:44], models.MaxCompanyNameLength+1)

	_, err = DecodeCompany(data)
	assert.Error(t, err)
}
