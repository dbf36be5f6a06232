package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kislikjeka/grandlivre/pkg/logger"
)

// errCapture keeps the body of error responses for the access log
type errCapture struct {
	chimiddleware.WrapResponseWriter
	buf bytes.Buffer
}

func (e *errCapture) Write(b []byte) (int, error) {
	if e.Status() >= 400 && e.buf.Len() < 4096 {
		e.buf.Write(b)
	}
	return e.WrapResponseWriter.Write(b)
}

// errorFields reads the code and message of a JSON error body
func errorFields(body []byte) []any {
	var obj errorBody
	if json.Unmarshal(body, &obj) != nil || obj.Error == "" {
		return nil
	}
	fields := []any{"error", obj.Error}
	if obj.Code != "" {
		fields = append(fields, "error_code", obj.Code)
	}
	return fields
}

// levelFor picks the access log level; probes stay at debug
func levelFor(status int, path string) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case strings.HasPrefix(path, "/health"):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Logger writes one access log line per request. The chi route pattern is
// logged next to the raw path so entries of the same endpoint group
// together. The request id is echoed in X-Request-ID.
func Logger(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ec := &errCapture{WrapResponseWriter: chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)}

			if reqID := chimiddleware.GetReqID(r.Context()); reqID != "" {
				ec.Header().Set("X-Request-ID", reqID)
				r = r.WithContext(context.WithValue(r.Context(), logger.RequestIDKey, reqID))
			}

			defer func() {
				status := ec.Status()
				if status == 0 {
					status = http.StatusOK
				}
				attrs := []any{
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ec.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"remote_addr", r.RemoteAddr,
				}
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					if pattern := rctx.RoutePattern(); pattern != "" {
						attrs = append(attrs, "route", pattern)
					}
				}
				if status >= 400 {
					attrs = append(attrs, errorFields(ec.buf.Bytes())...)
				}
				log.WithContext(r.Context()).Log(r.Context(), levelFor(status, r.URL.Path), "HTTP request", attrs...)
			}()

			next.ServeHTTP(ec, r)
		})
	}
}
