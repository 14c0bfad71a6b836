// Package logger owns the process-wide zerolog logger.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	appCtx "github.com/baechuer/meeting-machine/internal/pkg/context"
)

const serviceName = "signup"

// Logger is replaced by Init; the zero-config value writes JSON to stdout so
// packages logging before Init still produce something useful.
var Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init configures Logger from LOG_LEVEL and LOG_FORMAT and writes to stdout.
func Init() { InitWithWriter(os.Stdout) }

// InitWithWriter is Init with an explicit sink. LOG_FORMAT=json gives one
// JSON object per line; anything else gives zerolog's console format. An
// unknown LOG_LEVEL means info.
func InitWithWriter(w io.Writer) {
	level, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if !strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	Logger = zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
	zlog.Logger = Logger
}

// WithCtx returns Logger tagged with the request id carried by ctx, if any.
func WithCtx(ctx context.Context) *zerolog.Logger {
	l := Logger
	if rid := appCtx.GetRequestID(ctx); rid != "" {
		l = l.With().Str("request_id", rid).Logger()
	}
	return &l
}
