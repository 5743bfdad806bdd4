package models

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// PubkeyLength is the size in bytes of a key or derived address.
const PubkeyLength = 32

// Pubkey identifies a wallet key or a derived storage address. Its text form is base58.
type Pubkey [PubkeyLength]byte

// ParsePubkey decodes a base58 string into a Pubkey.
func ParsePubkey(s string) (Pubkey, error) {
	var key Pubkey
	if s == "" {
		return key, fmt.Errorf("empty key")
	}
	raw := base58.Decode(s)
	if len(raw) != PubkeyLength {
		return key, fmt.Errorf("invalid key %q: want %d bytes, got %d", s, PubkeyLength, len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

// MustPubkey is ParsePubkey for constants and tests.
func MustPubkey(s string) Pubkey {
	key, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return key
}

func (k Pubkey) String() string {
	return base58.Encode(k[:])
}

// IsZero reports whether the key is unset.
func (k Pubkey) IsZero() bool {
	return k == Pubkey{}
}

// Bytes returns a copy of the key bytes.
func (k Pubkey) Bytes() []byte {
	out := make([]byte, PubkeyLength)
	copy(out, k[:])
	return out
}

func (k Pubkey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// HashLength is the size in bytes of a commitment.
const HashLength = 32

// Hash is an opaque 32-byte commitment. Its text form is lowercase hex.
type Hash [HashLength]byte

// ParseHash decodes a hex string, with or without 0x prefix, into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid hash: %w", err)
	}
	if len(raw) != HashLength {
		return h, fmt.Errorf("invalid hash: want %d bytes, got %d", HashLength, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
