package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/internal/transport/httpapi/middleware"
)

const testSecret = "a-test-secret-that-is-long-enough-for-hs256"

func scopeEcho(got *ledger.Scope) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, ok := middleware.ScopeFromContext(r.Context())
		if ok {
			*got = scope
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestJWTMiddleware_SetsScope(t *testing.T) {
	svc := middleware.NewJWTService(testSecret)
	userID, companyID := uuid.New(), uuid.New()
	token, err := svc.GenerateToken(userID, companyID)
	require.NoError(t, err)

	var got ledger.Scope
	h := middleware.JWTMiddleware(svc)(scopeEcho(&got))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entries/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, ledger.Scope{CompanyID: companyID, UserID: userID}, got)
}

func TestJWTMiddleware_Rejects(t *testing.T) {
	svc := middleware.NewJWTService(testSecret)
	other := middleware.NewJWTService("another-secret-that-is-long-enough-for-hs256")
	foreign, err := other.GenerateToken(uuid.New(), uuid.New())
	require.NoError(t, err)
	noCompany, err := svc.GenerateToken(uuid.New(), uuid.Nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Token abc"},
		{"garbage", "Bearer abc.def.ghi"},
		{"wrong secret", "Bearer " + foreign},
		{"no company", "Bearer " + noCompany},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ledger.Scope
			h := middleware.JWTMiddleware(svc)(scopeEcho(&got))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/entries/x", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
			assert.Equal(t, ledger.Scope{}, got)
		})
	}
}

func TestValidateToken_RejectsNoneAlgorithm(t *testing.T) {
	svc := middleware.NewJWTService(testSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, &middleware.Claims{
		UserID:           uuid.New(),
		CompanyID:        uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "grandlivre"},
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	assert.Error(t, err)
}
