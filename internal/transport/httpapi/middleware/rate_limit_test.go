package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/internal/transport/httpapi/middleware"
)

func ok() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	h := middleware.RateLimit(0.001, 2)(ok())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_SeparateClients(t *testing.T) {
	h := middleware.RateLimit(0.001, 1)(ok())

	for _, addr := range []string{"10.0.0.1:5000", "10.0.0.2:5000"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, addr)
	}
}

func TestRateLimit_KeyedByCompany(t *testing.T) {
	h := middleware.RateLimit(0.001, 1)(ok())
	scope := ledger.Scope{CompanyID: uuid.New(), UserID: uuid.New()}

	// same company from two addresses shares one bucket
	codes := make([]int, 0, 2)
	for _, addr := range []string{"10.0.0.1:5000", "10.0.0.2:5000"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		req = req.WithContext(middleware.WithScope(req.Context(), scope))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_IgnoresForwardedFor(t *testing.T) {
	h := middleware.RateLimit(0.001, 1)(ok())

	// rotating the header from one peer does not mint fresh buckets
	codes := make([]int, 0, 3)
	for _, spoofed := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		req.Header.Set("X-Forwarded-For", spoofed)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_SweepsIdleClientsPeriodically(t *testing.T) {
	rl := middleware.NewRateLimiter(rate.Limit(0.001), 1)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.SetClock(func() time.Time { return now })
	h := rl.Middleware(ok())

	hit := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2:5000"))
	assert.Equal(t, 2, rl.Visitors())

	// within the sweep interval nothing is collected
	now = now.Add(30 * time.Second)
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1:5000"))
	assert.Equal(t, 2, rl.Visitors())

	// past the TTL the sweep drops both idle clients, then the caller is re-added
	now = now.Add(4 * time.Minute)
	assert.Equal(t, http.StatusOK, hit("10.0.0.3:5000"))
	assert.Equal(t, 1, rl.Visitors())
	assert.Equal(t, http.StatusOK, hit("10.0.0.1:5000"))
}
