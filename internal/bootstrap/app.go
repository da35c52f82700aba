package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// App encapsulates the HTTP server lifecycle.
type App struct {
	rt     *Runtime
	logger *slog.Logger
	server *http.Server
}

// NewApp is used by Wire to build the runnable app.
func NewApp(rt *Runtime, server *http.Server) *App {
	return &App{rt: rt, logger: rt.Logger.With("component", "bootstrap"), server: server}
}

// Run starts the HTTP server and blocks until shutdown. While it runs the access token is
// refreshed ahead of expiry.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server starting", "address", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	keepCtx, stopKeep := context.WithCancel(ctx)
	keepDone := make(chan struct{})
	go func() {
		defer close(keepDone)
		a.keepSessionFresh(keepCtx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Info("shutdown signal received")
		runErr = a.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	stopKeep()
	<-keepDone
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.rt.Close(closeCtx); err != nil {
		a.logger.Warn("runtime close failed", "error", err)
	}
	return runErr
}

func (a *App) keepSessionFresh(ctx context.Context) {
	window := a.rt.Config.Session.RefreshWindow
	if window <= 0 {
		return
	}
	ticker := time.NewTicker(window / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.rt.Session.RefreshIfExpiring(ctx, window); err != nil {
				a.logger.Warn("proactive refresh failed", "error", err)
			}
		}
	}
}
