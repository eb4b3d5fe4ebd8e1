package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// RelayServer is a fake webcast relay. Each dialed room gets a RelayRoom the
// test can push frames into.
type RelayServer struct {
	*httptest.Server

	upgrader websocket.Upgrader
	rooms    chan *RelayRoom
	// Reject, when set, refuses the handshake for the given uniqueId.
	Reject func(uniqueID string) bool

	mu   sync.Mutex
	seen []string
}

// RelayRoom is one accepted relay connection.
type RelayRoom struct {
	UniqueID string
	conn     *websocket.Conn
	closed   chan struct{}
}

// NewRelayServer starts a fake relay closed with the test.
func NewRelayServer(t *testing.T) *RelayServer {
	t.Helper()
	rs := &RelayServer{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		rooms:    make(chan *RelayRoom, 8),
	}
	rs.Server = httptest.NewServer(http.HandlerFunc(rs.serve))
	t.Cleanup(rs.Close)
	return rs
}

// URL returns the ws:// address of the relay endpoint.
func (rs *RelayServer) URL() string {
	return "ws" + strings.TrimPrefix(rs.Server.URL, "http") + "/webcast"
}

// Rooms delivers every accepted connection.
func (rs *RelayServer) Rooms() <-chan *RelayRoom { return rs.rooms }

// Seen returns the uniqueIds dialed so far, rejected ones included.
func (rs *RelayServer) Seen() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]string(nil), rs.seen...)
}

func (rs *RelayServer) serve(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("uniqueId")
	rs.mu.Lock()
	rs.seen = append(rs.seen, id)
	rs.mu.Unlock()

	if rs.Reject != nil && rs.Reject(id) {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	conn, err := rs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	room := &RelayRoom{UniqueID: id, conn: conn, closed: make(chan struct{})}
	go func() {
		defer close(room.closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	rs.rooms <- room
}

// Chat pushes a chat frame.
func (r *RelayRoom) Chat(nickname, uniqueID, comment string) error {
	return r.Send(map[string]any{
		"event": "chat",
		"data":  map[string]string{"nickname": nickname, "uniqueId": uniqueID, "comment": comment},
	})
}

// RoomUser pushes a viewer-count frame.
func (r *RelayRoom) RoomUser(viewers int) error {
	return r.Send(map[string]any{"event": "roomUser", "data": map[string]int{"viewerCount": viewers}})
}

// StreamEnd pushes a stream-ended frame.
func (r *RelayRoom) StreamEnd() error {
	return r.Send(map[string]any{"event": "streamEnd"})
}

// Send pushes an arbitrary JSON frame.
func (r *RelayRoom) Send(v any) error { return r.conn.WriteJSON(v) }

// SendRaw pushes a raw text frame.
func (r *RelayRoom) SendRaw(s string) error {
	return r.conn.WriteMessage(websocket.TextMessage, []byte(s))
}

// Drop closes the connection from the relay side.
func (r *RelayRoom) Drop() error { return r.conn.Close() }

// Closed is closed once the client side has gone away.
func (r *RelayRoom) Closed() <-chan struct{} { return r.closed }
