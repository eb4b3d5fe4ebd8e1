// Command keyword-catcher watches live chat on TikTok and Twitch for a keyword
// and pushes every first-time matching viewer to a connected control panel.
// It:
//   - Loads configuration and initializes structured logging.
//   - Serves the operator actions, /health, /healthz, /status and /metrics.
//   - Accepts one observer WebSocket at "/" and keeps it alive with pings.
//
// Shutdown is graceful on SIGINT/SIGTERM and on POST /shutdown.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/keyword-catcher/chat"
	"github.com/onnwee/keyword-catcher/config"
	"github.com/onnwee/keyword-catcher/control"
	"github.com/onnwee/keyword-catcher/observer"
	"github.com/onnwee/keyword-catcher/server"
	"github.com/onnwee/keyword-catcher/session"
	"github.com/onnwee/keyword-catcher/telemetry"
)

var version = "dev"

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:          "keyword-catcher [port]",
		Short:        "Catch viewers typing a keyword in TikTok and Twitch chat",
		Args:         cobra.MaximumNArgs(1),
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			if len(args) == 1 {
				cfg.HTTPAddr = config.AddrForPort(args[0])
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			setupLogging(cfg.LogLevel, cfg.LogFormat)
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides HTTP_ADDR")
	return cmd
}

// setupLogging installs the default logger. Defaults: level=info, format=text.
func setupLogging(level, format string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", level))
	}
	format = strings.ToLower(format) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		format = "text"
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))
}

func run(ctx context.Context, cfg *config.Config) error {
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdownTracing, err := telemetry.InitTracing(cfg.OTLPEndpoint, "keyword-catcher", version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdownTracing()

	link := observer.New(
		observer.WithPingInterval(cfg.ObserverPingInterval),
		observer.WithWriteTimeout(cfg.ObserverWriteTimeout),
		observer.WithSendBuffer(cfg.ObserverSendBuffer),
	)
	sess := session.New(link)
	tiktok := chat.NewSupervisor(chat.TikTok, chat.TikTokDialer(cfg.TikTokRelayURL), sess, link,
		chat.WithConnectTimeout(cfg.TikTokConnectTimeout),
		chat.WithConfirmTimeout(cfg.ConfirmTimeout))
	twitch := chat.NewSupervisor(chat.Twitch, chat.TwitchDialer(), sess, link,
		chat.WithConnectTimeout(cfg.TwitchConnectTimeout))
	ctrl := control.New(sess, link, tiktok, twitch)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The server outlives the signal context so /shutdown can still answer.
	srvCtx, cancelSrv := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSrv()

	g, gctx := errgroup.WithContext(srvCtx)
	g.Go(func() error {
		return server.Start(gctx, cfg.HTTPAddr, server.NewMux(cfg, ctrl, link), cfg.HTTPWriteTimeout(), cfg.ShutdownTimeout)
	})
	g.Go(func() error {
		select {
		case <-sigCtx.Done():
			slog.Info("signal received")
		case <-ctrl.Done():
		case <-gctx.Done():
		}
		ctrl.Shutdown(context.Background())
		cancelSrv()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}
