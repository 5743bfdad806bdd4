// Package address derives the deterministic storage addresses of payroll
// records. An address is a blake3 digest of a fixed tag and the identifying
// fields of the record, so the same inputs always name the same slot.
package address

import (
	"encoding/binary"
	"fmt"

	"github.com/gartstein/payroll/internal/payroll/models"
	"lukechampine.com/blake3"
)

// Seed tags.
var (
	CompanySeed      = []byte("company")
	EmployeeSeed     = []byte("employee")
	PaymentProofSeed = []byte("payment_proof")
	TreasurySeed     = []byte("treasury")
	TokenAccountSeed = []byte("token_account")
)

const domain = "ghost-payroll/v1"

// Derive hashes the seeds into an address. Each seed is length-prefixed so
// that distinct seed tuples never share an encoding.
func Derive(seeds ...[]byte) models.Pubkey {
	h := blake3.New(models.PubkeyLength, nil)
	_, _ = h.Write([]byte(domain))
	var prefix [2]byte
	for _, seed := range seeds {
		binary.LittleEndian.PutUint16(prefix[:], uint16(len(seed)))
		_, _ = h.Write(prefix[:])
		_, _ = h.Write(seed)
	}
	var out models.Pubkey
	copy(out[:], h.Sum(nil))
	return out
}

// Company returns the address of the company owned by authority.
func Company(authority models.Pubkey) models.Pubkey {
	return Derive(CompanySeed, authority[:])
}

// Employee returns the address of wallet's employee record in company.
func Employee(company, wallet models.Pubkey) models.Pubkey {
	return Derive(EmployeeSeed, company[:], wallet[:])
}

// PaymentProof returns the address of the proof for paymentID. The id is
// encoded little-endian.
func PaymentProof(company, wallet models.Pubkey, paymentID uint64) models.Pubkey {
	var id [8]byte
	binary.LittleEndian.PutUint64(id[:], paymentID)
	return Derive(PaymentProofSeed, company[:], wallet[:], id[:])
}

// Treasury returns the address of the company treasury token account.
func Treasury(company models.Pubkey) models.Pubkey {
	return Derive(TreasurySeed, company[:])
}

// TokenAccount returns the associated token account of owner for mint.
func TokenAccount(owner, mint models.Pubkey) models.Pubkey {
	return Derive(TokenAccountSeed, owner[:], mint[:])
}

// Signer is the capability of a derived address to authorize transfers out
// of accounts it owns. It is built from the same seeds as the address, so it
// can only be minted by code that knows them.
type Signer struct {
	seeds   [][]byte
	address models.Pubkey
}

// CompanySigner returns the signing capability of the company owned by authority.
func CompanySigner(authority models.Pubkey) Signer {
	seeds := [][]byte{CompanySeed, authority.Bytes()}
	return Signer{seeds: seeds, address: Derive(seeds...)}
}

// WalletSigner wraps a wallet key whose possession the host has verified.
func WalletSigner(wallet models.Pubkey) Signer {
	return Signer{address: wallet}
}

// Address returns the key this signer acts for.
func (s Signer) Address() models.Pubkey {
	return s.address
}

// Verify re-derives a seeded signer and checks it still names its address.
func (s Signer) Verify() error {
	if s.address.IsZero() {
		return fmt.Errorf("empty signer")
	}
	if len(s.seeds) == 0 {
		return nil
	}
	if Derive(s.seeds...) != s.address {
		return fmt.Errorf("signer seeds do not derive %s", s.address)
	}
	return nil
}
