package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/abca4/fafpipe/internal/ctxlog"
)

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// startHealthcheckServer serves /health and /metrics in the background
// for the duration of the run.
func (a *App) startHealthcheckServer(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.Handle("/metrics", a.metrics.Handler())

	addr := fmt.Sprintf(":%d", a.cfg.HealthcheckPort)
	a.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("Health check server starting.", "address", fmt.Sprintf("http://localhost%s/health", addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health check server failed unexpectedly.", "error", err)
		}
	}()
}

func (a *App) closeHealthcheckServer(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	if a.httpServer == nil {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Health check server shutdown failed.", "error", err)
		return
	}
	logger.Debug("Health check server shut down gracefully.")
}
