package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Relay event names, mirroring the webcast push connection.
const (
	relayEventChat      = "chat"
	relayEventRoomUser  = "roomUser"
	relayEventStreamEnd = "streamEnd"
)

var errSourceClosed = errors.New("source already disconnected")

// relayFrame is one message from the webcast relay.
type relayFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type relayChat struct {
	Nickname string `json:"nickname"`
	UniqueID string `json:"uniqueId"`
	Comment  string `json:"comment"`
}

// viewer prefers the display nickname over the unique handle.
func (c relayChat) viewer() string {
	switch {
	case c.Nickname != "":
		return c.Nickname
	case c.UniqueID != "":
		return c.UniqueID
	default:
		return "Unknown"
	}
}

type relayRoomUser struct {
	ViewerCount int `json:"viewerCount"`
}

// TikTokSource follows one TikTok LIVE room through a webcast relay that
// pushes the room's events as JSON frames over a WebSocket. The relay is
// dialed at <relayURL>?uniqueId=<username> and sends frames such as
//
//	{"event":"chat","data":{"nickname":"Ann","uniqueId":"ann","comment":"hi"}}
//	{"event":"roomUser","data":{"viewerCount":12}}
//	{"event":"streamEnd"}
//
// A failed dial or a dropped relay connection ends the stream.
type TikTokSource struct {
	relayURL string
	username string
	dialer   *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewTikTokSource returns a source for username behind the relay at relayURL.
func NewTikTokSource(relayURL, username string) *TikTokSource {
	return &TikTokSource{
		relayURL: relayURL,
		username: username,
		dialer:   websocket.DefaultDialer,
	}
}

// TikTokDialer returns a Dialer producing TikTokSources for relayURL.
func TikTokDialer(relayURL string) Dialer {
	return func(username string) Source { return NewTikTokSource(relayURL, username) }
}

func (s *TikTokSource) roomURL() (string, error) {
	u, err := url.Parse(s.relayURL)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("uniqueId", s.username)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the relay and starts reading room events.
func (s *TikTokSource) Connect(ctx context.Context, h Handler) error {
	target, err := s.roomURL()
	if err != nil {
		return err
	}
	conn, resp, err := s.dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial tiktok relay: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return errSourceClosed
	}
	s.conn = conn
	s.mu.Unlock()

	go s.readLoop(conn, h)
	return nil
}

func (s *TikTokSource) readLoop(conn *websocket.Conn, h Handler) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !s.isClosed() {
				slog.Info("tiktok relay connection lost", slog.String("username", s.username), slog.Any("err", err), slog.String("component", "chat"))
				h.OnStreamEnd()
			}
			return
		}
		var f relayFrame
		if err := json.Unmarshal(data, &f); err != nil {
			slog.Debug("tiktok relay: bad frame", slog.Any("err", err), slog.String("component", "chat"))
			continue
		}
		switch f.Event {
		case relayEventChat:
			var c relayChat
			if err := json.Unmarshal(f.Data, &c); err != nil {
				continue
			}
			h.OnChatMessage(c.viewer(), c.Comment)
		case relayEventRoomUser:
			var ru relayRoomUser
			if len(f.Data) > 0 {
				_ = json.Unmarshal(f.Data, &ru)
			}
			h.OnViewerCount(ru.ViewerCount)
		case relayEventStreamEnd:
			h.OnStreamEnd()
			return
		}
	}
}

func (s *TikTokSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Disconnect closes the relay connection.
func (s *TikTokSource) Disconnect() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}
