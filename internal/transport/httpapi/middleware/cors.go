package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// CORSOptions builds the policy for the given origins. A "*" entry opens
// the API to any origin but then disables credentials.
func CORSOptions(allowedOrigins []string) cors.Options {
	wildcard := slices.Contains(allowedOrigins, "*")
	return cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After", "X-Request-ID"},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	}
}

// CORS allows the configured front-end origins to call the API
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(CORSOptions(allowedOrigins))
}
