package auth

import (
	"time"

	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/golang-jwt/jwt/v5"
)

// GenerateToken issues an HS256 token for wallet, valid for ttl.
func GenerateToken(wallet models.Pubkey, secret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": wallet.String(),
		"exp": time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
