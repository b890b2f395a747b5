package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger logs each request once it completes and attaches a request-scoped
// logger to the context for handlers (zerolog.Ctx).
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := record(w)

			lctx := log.With().Str("request_id", GetRequestID(r.Context()))
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				lctx = lctx.Str("trace_id", sc.TraceID().String())
			}
			reqLog := lctx.Logger()

			next.ServeHTTP(rec, r.WithContext(reqLog.WithContext(r.Context())))

			var ev *zerolog.Event
			switch {
			case rec.status >= 500:
				ev = reqLog.Error()
			case rec.status >= 400:
				ev = reqLog.Warn()
			default:
				ev = reqLog.Info()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Int64("bytes", rec.written).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Msg("request completed")
		})
	}
}
