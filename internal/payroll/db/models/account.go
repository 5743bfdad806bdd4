// Package models contains the storage models for the payroll account store,
// configured to work using GORM as the ORM.
package models

import (
	"time"
)

// Account is one record of the content-addressed store. The primary key is
// the deterministic address of the record, so a second insert for the same
// identifying tuple collides.
type Account struct {
	// Address is the base58 derived address.
	Address string `gorm:"size:44;primaryKey"`
	// Kind is the record discriminator name (Company, Employee, ...).
	Kind string `gorm:"size:16;index;not null"`
	// Owner is the authority, wallet or token owner, for lookups.
	Owner string `gorm:"size:44;index"`
	// Parent is the company address for employees and proofs.
	Parent string `gorm:"size:44;index"`
	// Data is the fixed-layout encoded record.
	Data      []byte `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
