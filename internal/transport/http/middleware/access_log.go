package middleware

import (
	"net/http"
	"time"

	"github.com/baechuer/meeting-machine/internal/logger"
)

// AccessLog writes one line per request. Bodies and headers are never logged.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		lg := logger.WithCtx(r.Context())
		evt := lg.Info()
		if rec.status >= http.StatusInternalServerError {
			evt = lg.Error()
		}
		evt.
			Str("method", r.Method).
			Str("route", routePattern(r)).
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	})
}
