package middleware

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/kislikjeka/grandlivre/internal/shared/errors"
)

// errorBody mirrors handler.ErrorResponse; middleware cannot import handler
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError sends a JSON error in the same shape as the handlers
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message, Code: code})
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, apperrors.ErrCodeUnauthorized, message)
}
