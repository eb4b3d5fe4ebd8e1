package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

// TwitchSource reads one Twitch channel's chat over IRC with an anonymous,
// read-only login.
type TwitchSource struct {
	channel string

	mu     sync.Mutex
	client *twitch.Client
	closed bool
}

// NewTwitchSource returns a source for the chat of channel.
func NewTwitchSource(channel string) *TwitchSource {
	return &TwitchSource{channel: normalizeChannel(channel)}
}

// TwitchDialer returns a Dialer producing TwitchSources.
func TwitchDialer() Dialer {
	return func(channel string) Source { return NewTwitchSource(channel) }
}

// Connect joins the channel and returns once the IRC session is up.
func (s *TwitchSource) Connect(ctx context.Context, h Handler) error {
	client := twitch.NewAnonymousClient()

	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		h.OnChatMessage(twitchViewer(msg.User), msg.Message)
	})

	connected := make(chan struct{})
	var once sync.Once
	client.OnConnect(func() { once.Do(func() { close(connected) }) })
	client.Join(s.channel)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errSourceClosed
	}
	s.client = client
	s.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- client.Connect() }()

	select {
	case <-connected:
		if s.isClosed() {
			_ = client.Disconnect()
			return errSourceClosed
		}
		go func() {
			if err := <-errc; err != nil && !errors.Is(err, twitch.ErrClientDisconnected) {
				slog.Warn("twitch chat connection ended", slog.String("channel", s.channel), slog.Any("err", err), slog.String("component", "chat"))
			}
		}()
		return nil
	case err := <-errc:
		if err == nil {
			err = twitch.ErrClientDisconnected
		}
		return err
	case <-ctx.Done():
		_ = client.Disconnect()
		return ctx.Err()
	}
}

// Disconnect leaves the channel and closes the IRC session.
func (s *TwitchSource) Disconnect() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	client := s.client
	s.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Disconnect()
}

// twitchViewer prefers the display name over the login.
func twitchViewer(u twitch.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}

func normalizeChannel(channel string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(channel), "#"))
}

func (s *TwitchSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
