package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 10 * time.Second

// Hook releases a resource once the server has stopped accepting requests.
type Hook func(ctx context.Context) error

// Run serves srv until ctx ends or SIGINT/SIGTERM arrives, then shuts down and runs hooks in order.
// All hooks share the shutdown deadline; their errors are logged, not returned.
func Run(ctx context.Context, srv *http.Server, logger *slog.Logger, hooks ...Hook) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down", "cause", context.Cause(ctx))
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if serveErr == nil {
		serveErr = srv.Shutdown(shutdownCtx)
	}
	for _, hook := range hooks {
		if err := hook(shutdownCtx); err != nil {
			logger.Error("shutdown hook failed", "error", err)
		}
	}
	return serveErr
}
