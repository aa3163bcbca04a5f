package middleware

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ComUnity/signup-risk-gate/internal/telemetry"
	"github.com/ComUnity/signup-risk-gate/internal/util/logger"
)

// auditRecord collects values set by middleware further down the chain,
// which only see child request contexts.
type auditRecord struct {
	caller *Caller
}

func recordCaller(ctx context.Context, c Caller) {
	if rec, ok := ctx.Value(ctxAuditKey).(*auditRecord); ok {
		rec.caller = &c
	}
}

// RequestAudit logs one structured line per request. The caller IP is logged
// only as a network bucket.
func RequestAudit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &auditRecord{}
		r = r.WithContext(context.WithValue(r.Context(), ctxAuditKey, rec))
		ww := &wrapWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		fields := []interface{}{
			"request_id", chimw.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"latency_ms", time.Since(start).Milliseconds(),
		}
		if nc, ok := NetworkFromContext(r.Context()); ok {
			fields = append(fields, "ip_bucket", telemetry.IPBucket(nc.IP))
		}
		if rec.caller != nil {
			fields = append(fields, "caller", rec.caller.Subject)
		}
		logger.Infow("request_audit", fields...)
	})
}

type wrapWriter struct {
	http.ResponseWriter
	status int
}

func (w *wrapWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
