package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	apperrors "github.com/kislikjeka/grandlivre/internal/shared/errors"
	"github.com/kislikjeka/grandlivre/internal/transport/httpapi/middleware"
	"github.com/kislikjeka/grandlivre/pkg/logger"
	"github.com/kislikjeka/grandlivre/pkg/money"
)

// dateLayout is the wire format of accounting dates
const dateLayout = "2006-01-02"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, apperrors.ErrCodeInternal, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithError sends an error response
func respondWithError(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// StatusFor maps an error to its HTTP status: validation and precondition
// failures are 422, missing records 404, broken invariants 409
func StatusFor(err error) int {
	appErr := apperrors.GetAppError(err)
	if appErr == nil {
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case apperrors.ErrCodeValidation, apperrors.ErrCodeUser:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConsistency:
		return http.StatusConflict
	case apperrors.ErrCodeBadRequest:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes a service failure; internal errors keep their
// details in the log only
func respondServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.WithContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		respondWithError(w, status, apperrors.ErrCodeInternal, "internal server error")
		return
	}
	appErr := apperrors.GetAppError(err)
	respondWithError(w, status, appErr.Code, clientMessage(err, appErr))
}

// clientMessage keeps the AppError message and any detail appended after it
// with "%w: detail", dropping context added by outer wrappers
func clientMessage(err error, appErr *apperrors.AppError) string {
	full, inner := err.Error(), appErr.Error()
	i := strings.Index(full, inner)
	if i < 0 {
		return appErr.Message
	}
	if detail := full[i+len(inner):]; strings.HasPrefix(detail, ": ") {
		return appErr.Message + detail
	}
	return appErr.Message
}

// badRequest answers a malformed request
func badRequest(w http.ResponseWriter, message string) {
	respondWithError(w, http.StatusBadRequest, apperrors.ErrCodeBadRequest, message)
}

// scopeOf returns the caller's scope set by the JWT middleware
func scopeOf(w http.ResponseWriter, r *http.Request) (ledger.Scope, bool) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, apperrors.ErrCodeUnauthorized, "unauthorized")
	}
	return scope, ok
}

// decode reads a JSON body, rejecting unknown fields
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		badRequest(w, "invalid request body")
		return false
	}
	return true
}

// pathID parses a UUID path parameter
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		badRequest(w, fmt.Sprintf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

// parseAmount reads an optional amount field; empty is zero
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return money.Parse(s)
}

// parseDate reads an optional YYYY-MM-DD field; empty is the zero time
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// parseOptionalDate is parseDate returning nil for an empty field
func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func formatOptionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}
