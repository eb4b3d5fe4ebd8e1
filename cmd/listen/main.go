// Command listen is a terminal observer: it attaches to the keyword-catcher
// push channel and prints the caught viewers as they arrive.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/onnwee/keyword-catcher/roster"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	if err := newListenCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newListenCmd() *cobra.Command {
	var (
		url     string
		display string
		save    string
	)

	cmd := &cobra.Command{
		Use:          "listen",
		Short:        "Print viewers caught by a running keyword-catcher",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, err := roster.ParseMode(display)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r := roster.New()
			err = listen(ctx, url, r, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s\n", r.Len(), r.Render(mode))
			})
			if save != "" {
				if serr := r.Save(save, mode); serr != nil {
					return serr
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "saved %d viewers to %s\n", r.Len(), save)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/", "push channel address")
	cmd.Flags().StringVar(&display, "display", "raw", "display mode: raw, sanitized or first-word")
	cmd.Flags().StringVar(&save, "save", "", "write the list to this file on exit")
	return cmd
}

// listen reads the push channel until ctx ends or the server goes away,
// calling changed after every roster update.
func listen(ctx context.Context, url string, r *roster.Roster, changed func()) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("connect %s: %w", url, err)
	}
	defer conn.Close()
	slog.Warn("connected", slog.String("url", url))

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return fmt.Errorf("server closed the channel: %w", err)
			}
			return fmt.Errorf("read: %w", err)
		}
		ok, err := r.Apply(msg)
		if err != nil {
			slog.Debug("skipping message", slog.Any("err", err))
			continue
		}
		if ok {
			changed()
		}
	}
}
