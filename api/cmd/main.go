// Command api serves the signup endpoint and its diagnostics.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/baechuer/meeting-machine/internal/bootstrap"
	"github.com/baechuer/meeting-machine/internal/logger"
)

// drainTimeout bounds how long in-flight signups, each possibly still
// waiting on the CRM, get to finish after a stop signal.
const drainTimeout = 15 * time.Second

// listener is the slice of *http.Server the process lifecycle needs.
type listener interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
	Close() error
}

type buildFunc func() (srv *http.Server, cleanup func(), err error)

type process struct {
	build func() (listener, string, func(), error)
	log   zerolog.Logger
	drain time.Duration
}

func newProcess(build buildFunc, lg zerolog.Logger) process {
	return process{
		build: func() (listener, string, func(), error) {
			srv, cleanup, err := build()
			if err != nil {
				return nil, "", nil, err
			}
			return srv, srv.Addr, cleanup, nil
		},
		log:   lg,
		drain: drainTimeout,
	}
}

// run serves until ctx is cancelled or the listener dies and returns the
// exit code.
func (p process) run(ctx context.Context) int {
	srv, addr, cleanup, err := p.build()
	if err != nil {
		p.log.Error().Err(err).Msg("bootstrap failed")
		return 1
	}
	defer cleanup()

	served := make(chan error, 1)
	go func() {
		p.log.Info().Str("addr", addr).Msg("listening")
		served <- srv.ListenAndServe()
	}()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return 0
		}
		p.log.Error().Err(err).Msg("listener failed")
		return 1
	case <-ctx.Done():
		p.log.Info().Msg("stop requested, draining")
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), p.drain)
	defer cancel()

	if err := srv.Shutdown(drainCtx); err != nil {
		p.log.Warn().Err(err).Msg("drain incomplete, forcing close")
		_ = srv.Close()
	}

	p.log.Info().Msg("stopped")
	return 0
}

func main() {
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := newProcess(bootstrap.NewServer, zlog.Logger).run(ctx)
	stop()

	os.Exit(code)
}
