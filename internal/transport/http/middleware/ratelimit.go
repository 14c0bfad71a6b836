package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/baechuer/meeting-machine/internal/domain"
	"github.com/baechuer/meeting-machine/internal/infrastructure/redis"
	"github.com/baechuer/meeting-machine/internal/logger"
)

type RateLimiter interface {
	Allow(ctx context.Context, identity string) (redis.Decision, error)
}

// RateLimitByIP applies limiter per client IP as derived by ip. Limiter
// errors let the request through.
func RateLimitByIP(limiter RateLimiter, ip func(*http.Request) string, scope string, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			dec, err := limiter.Allow(r.Context(), ip(r))
			if err != nil {
				logger.WithCtx(r.Context()).Warn().Err(err).Str("scope", scope).Msg("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			if dec.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
			}
			if !dec.Allowed {
				if dec.RetryAfter > 0 {
					secs := int(dec.RetryAfter.Seconds())
					if secs < 1 {
						secs = 1
					}
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				SignupsTotal.WithLabelValues("rate_limited").Inc()
				writeErr(w, r, domain.ErrRateLimited(scope))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitInProcess is the single-instance fallback used when Redis is
// unavailable. Counters live in this process only.
func RateLimitInProcess(limit int, window time.Duration, ip func(*http.Request) string, scope string, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	if limit <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return ip(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			SignupsTotal.WithLabelValues("rate_limited").Inc()
			writeErr(w, r, domain.ErrRateLimited(scope))
		}),
	)
}

// ClientIP picks how a request's address is derived. Forwarding headers
// are client-writable, so they count only behind a trusted proxy, and then
// only the hop that proxy appended.
func ClientIP(trustedProxy bool) func(*http.Request) string {
	if trustedProxy {
		return forwardedIP
	}
	return peerIP
}

func peerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// forwardedIP takes the last X-Forwarded-For hop.
func forwardedIP(r *http.Request) string {
	xff := r.Header.Values("X-Forwarded-For")
	if len(xff) == 0 {
		return peerIP(r)
	}
	last := xff[len(xff)-1]
	if i := strings.LastIndexByte(last, ','); i >= 0 {
		last = last[i+1:]
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(last))
	if err != nil {
		return peerIP(r)
	}
	return addr.Unmap().String()
}
