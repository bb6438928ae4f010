// Package supervisor provides the process lifecycle shared by every
// long-running binary in this module (the API server and the two queue
// workers): listen for SIGINT/SIGTERM, run a set of background loops,
// and drain in-flight work before the process exits.
package supervisor

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Runnable is one background loop the Supervisor drives. It must return
// promptly once ctx is cancelled.
type Runnable func(ctx context.Context)

// Closer is a resource that needs an orderly shutdown after every Runnable
// has returned (a DB pool, a Redis client, an HTTP server).
type Closer func(ctx context.Context) error

// Supervisor runs a set of Runnables under a shared cancellable context,
// waits for SIGINT/SIGTERM, cancels that context, and then runs Closers in
// registration order within a shutdown deadline.
type Supervisor struct {
	logger           zerolog.Logger
	shutdownDeadline time.Duration

	wg      sync.WaitGroup
	closers []namedCloser
}

type namedCloser struct {
	name string
	fn   Closer
}

// New builds a Supervisor. shutdownDeadline bounds how long Closers are
// given to finish once a shutdown signal arrives; zero defaults to 30s.
func New(logger zerolog.Logger, shutdownDeadline time.Duration) *Supervisor {
	if shutdownDeadline == 0 {
		shutdownDeadline = 30 * time.Second
	}
	return &Supervisor{
		logger:           logger.With().Str("component", "supervisor").Logger(),
		shutdownDeadline: shutdownDeadline,
	}
}

// Go starts fn in its own goroutine, tracked so Wait waits for it to return
// before proceeding past shutdown.
func (sv *Supervisor) Go(ctx context.Context, name string, fn Runnable) {
	sv.wg.Add(1)
	go func() {
		defer sv.wg.Done()
		sv.logger.Info().Str("loop", name).Msg("starting background loop")
		fn(ctx)
		sv.logger.Info().Str("loop", name).Msg("background loop exited")
	}()
}

// RegisterCloser queues fn to run during shutdown, in registration order,
// after every Runnable started via Go has returned.
func (sv *Supervisor) RegisterCloser(name string, fn Closer) {
	sv.closers = append(sv.closers, namedCloser{name: name, fn: fn})
}

// Wait blocks until SIGINT or SIGTERM arrives, cancels the context passed
// to every Go call sharing it, waits for those loops to drain, then runs
// the registered Closers. Intended to be called from main() as the last
// step before os.Exit.
func (sv *Supervisor) Wait(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	sv.logger.Info().Str("signal", sig.String()).Msg("received shutdown signal, draining in-flight work")

	cancel()
	sv.wg.Wait()
	sv.logger.Info().Msg("all background loops drained")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), sv.shutdownDeadline)
	defer shutdownCancel()

	for _, c := range sv.closers {
		if err := c.fn(shutdownCtx); err != nil {
			sv.logger.Error().Err(err).Str("closer", c.name).Msg("error during shutdown")
			continue
		}
		sv.logger.Info().Str("closer", c.name).Msg("closed")
	}

	sv.logger.Info().Msg("shutdown complete")
}
