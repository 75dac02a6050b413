package rest

import (
	"net/http"
	"time"

	"listing-aggregator-service/internal/contextkeys"
	"listing-aggregator-service/internal/core/port"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const traceHeader = "X-Trace-ID"

// LoggerMiddleware связывает запрос с trace_id: берет его из заголовка или выдает новый,
// кладет логгер в контекст и возвращает trace_id клиенту
func LoggerMiddleware(logger port.LoggerPort) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(traceHeader)
			if traceID == "" {
				traceID = uuid.NewString()
			}
			reqLogger := logger.WithFields(port.Fields{"trace_id": traceID})

			ctx := contextkeys.ContextWithTraceID(r.Context(), traceID)
			ctx = contextkeys.ContextWithLogger(ctx, reqLogger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Header().Set(traceHeader, traceID)

			started := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			fields := port.Fields{
				"http_method": r.Method,
				"http_path":   r.URL.Path,
				"status_code": ww.Status(),
				"duration_ms": time.Since(started).Milliseconds(),
			}
			if ww.Status() >= http.StatusInternalServerError {
				reqLogger.Warn("Request failed", fields)
				return
			}
			reqLogger.Info("Request handled", fields)
		}
		return http.HandlerFunc(fn)
	}
}
