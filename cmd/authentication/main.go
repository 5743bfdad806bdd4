// This is a **mock authentication service**, designed to provide JWT tokens
// for the payroll service, simulating wallet sign-in.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/gartstein/payroll/internal/payroll/auth"
	"github.com/gartstein/payroll/internal/payroll/models"
	"go.uber.org/zap"
)

const (
	defaultPort   = "8081"       // Default port for the authentication service
	defaultSecret = "jwt_secret" // Secret for signing JWT
	tokenTTL      = 24 * time.Hour
)

// TokenResponse represents the response structure
type TokenResponse struct {
	Token  string `json:"token"`
	Wallet string `json:"wallet"`
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// tokenHandler issues a JWT whose subject is the ?wallet= key.
func tokenHandler(secret string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wallet, err := models.ParsePubkey(r.URL.Query().Get("wallet"))
		if err != nil || wallet.IsZero() {
			http.Error(w, "wallet query parameter must be a base58 public key", http.StatusBadRequest)
			return
		}

		token, err := auth.GenerateToken(wallet, secret, tokenTTL)
		if err != nil {
			logger.Error("Failed to generate token", zap.Error(err))
			http.Error(w, "Failed to generate token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(TokenResponse{Token: token, Wallet: wallet.String()}); err != nil {
			logger.Warn("Failed to encode token", zap.Error(err))
		}
	}
}

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	port := envOr("AUTH_PORT", defaultPort)
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler(envOr("JWT_SECRET", defaultSecret), logger))

	logger.Info("Authentication service running", zap.String("port", port))
	server := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("Authentication service stopped", zap.Error(err))
	}
}
