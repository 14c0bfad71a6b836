// Package audit writes one structured line per signup business event.
package audit

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	appCtx "github.com/baechuer/meeting-machine/internal/pkg/context"
)

// Logger tags every entry with audit=true so shippers can route them apart
// from request logs. Emails are masked.
type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{log: log.With().Bool("audit", true).Logger()}
}

func (l *Logger) entry(ctx context.Context, ev *zerolog.Event, action, email string) *zerolog.Event {
	return ev.
		Str("action", action).
		Str("email", maskEmail(email)).
		Str("request_id", appCtx.GetRequestID(ctx))
}

// SignupSucceeded records a created account and its CRM status.
func (l *Logger) SignupSucceeded(ctx context.Context, userID, email, crmStatus string) {
	l.entry(ctx, l.log.Info(), "signup_succeeded", email).
		Str("user_id", userID).
		Str("crm_status", crmStatus).
		Msg("user signed up")
}

// SignupRejected records a signup refused before an account existed.
func (l *Logger) SignupRejected(ctx context.Context, email, reason string) {
	l.entry(ctx, l.log.Warn(), "signup_rejected", email).
		Str("reason", reason).
		Msg("signup rejected")
}

// CRMSyncFailed records an account whose contact never reached the CRM.
func (l *Logger) CRMSyncFailed(ctx context.Context, userID, email, status, reason string) {
	l.entry(ctx, l.log.Warn(), "crm_sync_failed", email).
		Str("user_id", userID).
		Str("crm_status", status).
		Str("reason", reason).
		Msg("crm contact sync failed")
}

// maskEmail keeps at most two leading characters of the local part plus
// the domain. Anything without a usable local part becomes "***".
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || len(email) < 5 {
		return "***"
	}
	return local[:min(2, len(local))] + "***@" + domain
}
