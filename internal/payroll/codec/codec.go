// Package codec encodes payroll records into their fixed-size persisted
// layout. Every record starts with an 8-byte discriminator naming its kind.
// Variable-length fields are stored with a 4-byte little-endian length
// prefix inside a reserved span of their maximum size, and every layout ends
// with zeroed padding reserved for future fields. A record's address is its
// storage key and is not part of the encoding.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/gartstein/payroll/internal/payroll/models"
	"lukechampine.com/blake3"
)

// Kind names a record type.
type Kind string

const (
	KindCompany      Kind = "Company"
	KindEmployee     Kind = "Employee"
	KindPaymentProof Kind = "PaymentProof"
	KindTokenAccount Kind = "TokenAccount"
)

// Discriminator returns the 8-byte prefix of records of kind k.
func (k Kind) Discriminator() [8]byte {
	sum := blake3.Sum256([]byte("account:" + string(k)))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

const discriminatorLen = 8

// Record sizes in bytes, discriminator included.
const (
	CompanyLen = discriminatorLen +
		32 + // authority
		4 + models.MaxCompanyNameLength + // name
		2 + // employee_count
		32 + // budget_commitment
		32 + // payment_token
		1 + // payment_frequency
		8 + // last_payment_timestamp
		8 + // next_payment_due
		8 + // total_payments_made
		1 + // is_active
		64 // padding

	EmployeeLen = discriminatorLen +
		32 + // wallet
		32 + // company
		4 + models.MaxEncryptedSalarySize + // encrypted_salary
		32 + // salary_commitment
		1 + // payment_frequency
		8 + // join_date
		8 + // last_payment_date
		8 + // total_payments_received
		1 + // is_active
		32 // padding

	PaymentProofLen = discriminatorLen +
		8 + // payment_id
		32 + // employee
		32 + // company
		8 + // payment_date
		32 + // amount_commitment
		4 + models.MaxZKProofSize + // zk_proof
		4 + models.MaxTxSignatureLength + // shadowwire_tx_signature
		1 + // status
		32 // padding

	TokenAccountLen = discriminatorLen +
		32 + // mint
		32 + // owner
		8 + // amount
		16 // padding
)

// KindOf reads the discriminator of an encoded record.
func KindOf(data []byte) (Kind, error) {
	if len(data) < discriminatorLen {
		return "", fmt.Errorf("record too short: %d bytes", len(data))
	}
	var d [8]byte
	copy(d[:], data[:discriminatorLen])
	for _, k := range []Kind{KindCompany, KindEmployee, KindPaymentProof, KindTokenAccount} {
		if k.Discriminator() == d {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown discriminator %x", d)
}

// EncodeCompany encodes c into CompanyLen bytes.
func EncodeCompany(c *models.Company) ([]byte, error) {
	w := newWriter(KindCompany, CompanyLen)
	w.key(c.Authority)
	if err := w.bounded([]byte(c.Name), models.MaxCompanyNameLength, "name"); err != nil {
		return nil, err
	}
	w.u16(c.EmployeeCount)
	w.raw(c.BudgetCommitment[:])
	w.key(c.PaymentToken)
	w.u8(uint8(c.PaymentFrequency))
	w.i64(c.LastPaymentTimestamp)
	w.i64(c.NextPaymentDue)
	w.u64(c.TotalPaymentsMade)
	w.boolean(c.IsActive)
	return w.buf, nil
}

// DecodeCompany decodes a Company record. The address is left for the caller.
func DecodeCompany(data []byte) (*models.Company, error) {
	r, err := newReader(KindCompany, CompanyLen, data)
	if err != nil {
		return nil, err
	}
	c := &models.Company{}
	c.Authority = r.key()
	c.Name = string(r.bounded(models.MaxCompanyNameLength))
	c.EmployeeCount = r.u16()
	copy(c.BudgetCommitment[:], r.raw(models.HashLength))
	c.PaymentToken = r.key()
	c.PaymentFrequency = models.PaymentFrequency(r.u8())
	c.LastPaymentTimestamp = r.i64()
	c.NextPaymentDue = r.i64()
	c.TotalPaymentsMade = r.u64()
	c.IsActive = r.boolean()
	if r.err != nil {
		return nil, r.err
	}
	if !c.PaymentFrequency.Valid() {
		return nil, fmt.Errorf("company: invalid payment frequency %d", c.PaymentFrequency)
	}
	return c, nil
}

// EncodeEmployee encodes e into EmployeeLen bytes.
func EncodeEmployee(e *models.Employee) ([]byte, error) {
	w := newWriter(KindEmployee, EmployeeLen)
	w.key(e.Wallet)
	w.key(e.Company)
	if err := w.bounded(e.EncryptedSalary, models.MaxEncryptedSalarySize, "encrypted_salary"); err != nil {
		return nil, err
	}
	w.raw(e.SalaryCommitment[:])
	w.u8(uint8(e.PaymentFrequency))
	w.i64(e.JoinDate)
	w.i64(e.LastPaymentDate)
	w.u64(e.TotalPaymentsReceived)
	w.boolean(e.IsActive)
	return w.buf, nil
}

// DecodeEmployee decodes an Employee record.
func DecodeEmployee(data []byte) (*models.Employee, error) {
	r, err := newReader(KindEmployee, EmployeeLen, data)
	if err != nil {
		return nil, err
	}
	e := &models.Employee{}
	e.Wallet = r.key()
	e.Company = r.key()
	e.EncryptedSalary = r.bounded(models.MaxEncryptedSalarySize)
	copy(e.SalaryCommitment[:], r.raw(models.HashLength))
	e.PaymentFrequency = models.PaymentFrequency(r.u8())
	e.JoinDate = r.i64()
	e.LastPaymentDate = r.i64()
	e.TotalPaymentsReceived = r.u64()
	e.IsActive = r.boolean()
	if r.err != nil {
		return nil, r.err
	}
	if !e.PaymentFrequency.Valid() {
		return nil, fmt.Errorf("employee: invalid payment frequency %d", e.PaymentFrequency)
	}
	return e, nil
}

// EncodePaymentProof encodes p into PaymentProofLen bytes.
func EncodePaymentProof(p *models.PaymentProof) ([]byte, error) {
	w := newWriter(KindPaymentProof, PaymentProofLen)
	w.u64(p.PaymentID)
	w.key(p.Employee)
	w.key(p.Company)
	w.i64(p.PaymentDate)
	w.raw(p.AmountCommitment[:])
	if err := w.bounded(p.ZKProof, models.MaxZKProofSize, "zk_proof"); err != nil {
		return nil, err
	}
	if err := w.bounded([]byte(p.TxSignature), models.MaxTxSignatureLength, "shadowwire_tx_signature"); err != nil {
		return nil, err
	}
	w.u8(uint8(p.Status))
	return w.buf, nil
}

// DecodePaymentProof decodes a PaymentProof record.
func DecodePaymentProof(data []byte) (*models.PaymentProof, error) {
	r, err := newReader(KindPaymentProof, PaymentProofLen, data)
	if err != nil {
		return nil, err
	}
	p := &models.PaymentProof{}
	p.PaymentID = r.u64()
	p.Employee = r.key()
	p.Company = r.key()
	p.PaymentDate = r.i64()
	copy(p.AmountCommitment[:], r.raw(models.HashLength))
	p.ZKProof = r.bounded(models.MaxZKProofSize)
	p.TxSignature = string(r.bounded(models.MaxTxSignatureLength))
	p.Status = models.PaymentStatus(r.u8())
	if r.err != nil {
		return nil, r.err
	}
	if !p.Status.Valid() {
		return nil, fmt.Errorf("payment proof: invalid status %d", p.Status)
	}
	return p, nil
}

// EncodeTokenAccount encodes a into TokenAccountLen bytes.
func EncodeTokenAccount(a *models.TokenAccount) ([]byte, error) {
	w := newWriter(KindTokenAccount, TokenAccountLen)
	w.key(a.Mint)
	w.key(a.Owner)
	w.u64(a.Amount)
	return w.buf, nil
}

// DecodeTokenAccount decodes a TokenAccount record.
func DecodeTokenAccount(data []byte) (*models.TokenAccount, error) {
	r, err := newReader(KindTokenAccount, TokenAccountLen, data)
	if err != nil {
		return nil, err
	}
	a := &models.TokenAccount{}
	a.Mint = r.key()
	a.Owner = r.key()
	a.Amount = r.u64()
	if r.err != nil {
		return nil, r.err
	}
	return a, nil
}

type writer struct {
	buf []byte
	off int
}

func newWriter(kind Kind, size int) *writer {
	w := &writer{buf: make([]byte, size)}
	d := kind.Discriminator()
	w.raw(d[:])
	return w
}

func (w *writer) raw(b []byte) {
	w.off += copy(w.buf[w.off:], b)
}

func (w *writer) key(k models.Pubkey) { w.raw(k[:]) }

func (w *writer) u8(v uint8) {
	w.buf[w.off] = v
	w.off++
}

func (w *writer) boolean(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *writer) u16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[w.off:], v)
	w.off += 2
}

func (w *writer) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[w.off:], v)
	w.off += 8
}

func (w *writer) i64(v int64) { w.u64(uint64(v)) }

// bounded writes a length prefix and b, then skips the rest of the reserved span.
func (w *writer) bounded(b []byte, limit int, field string) error {
	if len(b) > limit {
		return fmt.Errorf("%s: %d bytes exceeds reserved %d", field, len(b), limit)
	}
	binary.LittleEndian.PutUint32(w.buf[w.off:], uint32(len(b)))
	w.off += 4
	copy(w.buf[w.off:], b)
	w.off += limit
	return nil
}

type reader struct {
	buf []byte
	off int
	err error
}

func newReader(kind Kind, size int, data []byte) (*reader, error) {
	if len(data) != size {
		return nil, fmt.Errorf("%s: want %d bytes, got %d", kind, size, len(data))
	}
	got, err := KindOf(data)
	if err != nil {
		return nil, err
	}
	if got != kind {
		return nil, fmt.Errorf("want %s record, got %s", kind, got)
	}
	return &reader{buf: data, off: discriminatorLen}, nil
}

func (r *reader) raw(n int) []byte {
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) key() models.Pubkey {
	var k models.Pubkey
	copy(k[:], r.raw(models.PubkeyLength))
	return k
}

func (r *reader) u8() uint8 {
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *reader) boolean() bool {
	v := r.u8()
	if v > 1 && r.err == nil {
		r.err = fmt.Errorf("invalid bool byte %d at offset %d", v, r.off-1)
	}
	return v == 1
}

func (r *reader) u16() uint16 {
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

func (r *reader) u64() uint64 {
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

func (r *reader) i64() int64 { return int64(r.u64()) }

func (r *reader) bounded(limit int) []byte {
	n := int(binary.LittleEndian.Uint32(r.buf[r.off:]))
	r.off += 4
	span := r.raw(limit)
	if n > limit {
		if r.err == nil {
			r.err = fmt.Errorf("length prefix %d exceeds reserved %d", n, limit)
		}
		return nil
	}
	out := make([]byte, n)
	copy(out, span[:n])
	return out
}
