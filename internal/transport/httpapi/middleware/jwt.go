package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/pkg/logger"
)

// ContextKey is the type for context keys
type ContextKey string

// ScopeKey is the context key for the caller's ledger.Scope
const ScopeKey ContextKey = "scope"

// tokenIssuer is checked on every token
const tokenIssuer = "grandlivre"

// Claims represents the JWT claims; a token acts on one company
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	CompanyID uuid.UUID `json:"company_id"`
	jwt.RegisteredClaims
}

// JWTService handles JWT token generation and validation
type JWTService struct {
	secret []byte
	ttl    time.Duration
}

// NewJWTService creates a new JWT service
func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		ttl:    24 * time.Hour,
	}
}

// GenerateToken signs a token for a user acting on a company
func (s *JWTService) GenerateToken(userID, companyID uuid.UUID) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    userID,
		CompanyID: companyID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.CompanyID == uuid.Nil {
		return nil, fmt.Errorf("token has no company")
	}
	return claims, nil
}

// JWTMiddleware validates the bearer token and stores the caller's scope
func JWTMiddleware(jwtService *JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w, "invalid authorization header format")
				return
			}

			claims, err := jwtService.ValidateToken(parts[1])
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			scope := ledger.Scope{CompanyID: claims.CompanyID, UserID: claims.UserID}
			ctx := WithScope(r.Context(), scope)
			ctx = context.WithValue(ctx, logger.UserIDKey, claims.UserID.String())
			ctx = context.WithValue(ctx, logger.CompanyIDKey, claims.CompanyID.String())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithScope returns a context carrying scope
func WithScope(ctx context.Context, scope ledger.Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}

// ScopeFromContext extracts the caller's scope from the request context
func ScopeFromContext(ctx context.Context) (ledger.Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(ledger.Scope)
	return scope, ok
}
