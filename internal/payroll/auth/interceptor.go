// Package auth provides a gRPC unary interceptor, an HTTP middleware and JWT
// token validation to secure the mutating payroll operations. The token
// subject is the base58 wallet key of the caller.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service the interceptor guards.
const ServiceName = "payroll.v1.PayrollService"

// Interceptor holds the JWT secret and a map of protected methods.
type Interceptor struct {
	jwtSecret        string
	protectedMethods map[string]bool
}

type contextKey string

const (
	userContextKey   contextKey = "user"
	callerContextKey contextKey = "caller"
)

// ProtectedMethods lists the operations that need a verified caller.
var ProtectedMethods = []string{
	"CreateCompany",
	"AddEmployee",
	"UpdateEmployeeSalary",
	"RemoveEmployee",
	"ProcessPayment",
	"ProcessPayroll",
	"RecordPaymentProof",
	"OpenTokenAccount",
	"Deposit",
}

// NewAuthInterceptor creates a new Interceptor with the given secret and
// default protected methods.
func NewAuthInterceptor(jwtSecret string) *Interceptor {
	protected := make(map[string]bool, len(ProtectedMethods))
	for _, method := range ProtectedMethods {
		protected["/"+ServiceName+"/"+method] = true
	}

	return &Interceptor{
		jwtSecret:        jwtSecret,
		protectedMethods: protected,
	}
}

// Unary returns a gRPC unary interceptor for token validation on protected methods.
func (i *Interceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if i.protectedMethods[info.FullMethod] {
			md, ok := metadata.FromIncomingContext(ctx)
			if !ok {
				return nil, status.Error(codes.Unauthenticated, "metadata missing")
			}

			tokenString, err := extractTokenFromMetadata(md)
			if err != nil {
				return nil, err
			}

			claims, err := validateToken(tokenString, i.jwtSecret)
			if err != nil {
				return nil, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
			}

			ctx, err = withCaller(ctx, claims)
			if err != nil {
				return nil, status.Error(codes.Unauthenticated, err.Error())
			}
		}

		return handler(ctx, req)
	}
}

// CallerFromContext returns the wallet key verified by the interceptor or
// the middleware.
func CallerFromContext(ctx context.Context) (models.Pubkey, bool) {
	caller, ok := ctx.Value(callerContextKey).(models.Pubkey)
	return caller, ok
}

// ContextWithCaller stores caller as the verified wallet key. Transports
// call it after their own authentication; tests use it directly.
func ContextWithCaller(ctx context.Context, caller models.Pubkey) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

func withCaller(ctx context.Context, claims jwt.MapClaims) (context.Context, error) {
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return ctx, fmt.Errorf("token subject missing")
	}
	caller, err := models.ParsePubkey(subject)
	if err != nil {
		return ctx, fmt.Errorf("token subject is not a wallet key: %w", err)
	}
	ctx = context.WithValue(ctx, userContextKey, claims)
	return ContextWithCaller(ctx, caller), nil
}

// extractTokenFromMetadata retrieves a Bearer token from gRPC metadata.
func extractTokenFromMetadata(md metadata.MD) (string, error) {
	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		return "", status.Error(codes.Unauthenticated, "authorization header missing")
	}

	headerValue := authHeaders[0]
	if !strings.HasPrefix(headerValue, "Bearer ") {
		return "", status.Error(codes.Unauthenticated, "invalid authorization format: missing Bearer prefix")
	}

	tokenString := strings.TrimPrefix(headerValue, "Bearer ")
	if tokenString == "" {
		return "", status.Error(codes.Unauthenticated, "invalid authorization format: empty token")
	}

	return tokenString, nil
}

// validateToken checks the token signature and returns parsed claims if valid.
func validateToken(tokenString, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token claims")
}
