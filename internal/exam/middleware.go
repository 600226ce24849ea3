package exam

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// CorrelationHeader carries the request correlation id in both directions.
const CorrelationHeader = "X-Correlation-Id"

type ctxKey int

const corrIDKey ctxKey = iota

// Correlation adopts the caller's correlation id or mints one, stores it in
// the request context and echoes it on the response.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corrID := r.Header.Get(CorrelationHeader)
		if corrID == "" {
			corrID = uuid.NewString()
		}
		w.Header().Set(CorrelationHeader, corrID)
		next.ServeHTTP(w, r.WithContext(WithCorrelationID(r.Context(), corrID)))
	})
}

func WithCorrelationID(ctx context.Context, corrID string) context.Context {
	return context.WithValue(ctx, corrIDKey, corrID)
}

// CorrelationID returns the id stored by Correlation, or "".
func CorrelationID(ctx context.Context) string {
	v, _ := ctx.Value(corrIDKey).(string)
	return v
}

func CorrelationLogger(logger *slog.Logger, corrID string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if corrID == "" {
		return logger
	}
	return logger.With("corrId", corrID)
}

// RequestLogger logs one line per request after it completes.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			CorrelationLogger(logger, CorrelationID(r.Context())).Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
