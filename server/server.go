// Package server exposes the HTTP control surface: the operator actions, health
// and status probes, metrics, and the observer WebSocket mounted at "/". It
// injects correlation IDs into request contexts for consistent logging.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/keyword-catcher/config"
	"github.com/onnwee/keyword-catcher/control"
)

// NewMux returns the HTTP handler with all routes. observer serves the push
// channel upgrade on the root path.
func NewMux(cfg *config.Config, ctrl *control.Controller, observer http.Handler) http.Handler {
	handlers := NewHandlers(ctrl)

	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.HandleFunc("/status", handlers.HandleStatus)

	// Operator actions
	mux.HandleFunc("/start", handlers.HandleStart)
	mux.HandleFunc("/keyword", handlers.HandleKeyword)
	mux.HandleFunc("/clearKeyword", handlers.HandleClearKeyword)
	mux.HandleFunc("/disconnect", handlers.HandleDisconnect)
	mux.HandleFunc("/shutdown", handlers.HandleShutdown)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		observer.ServeHTTP(w, r)
	})

	return withCORSConfig(withTelemetry(mux), corsFromConfig(cfg))
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
// writeTimeout must outlast the longest /start wait; zero means 30s.
func Start(ctx context.Context, addr string, handler http.Handler, writeTimeout, shutdownTimeout time.Duration) error {
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	// Shutdown goroutine
	go func() {
		<-ctx.Done()
		// Use WithoutCancel to inherit context values but allow shutdown to complete
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	slog.Info("http server listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	slog.Info("http server closed")
	return nil
}
