// Package observer holds the single push channel to the control surface. At
// most one WebSocket client is attached at a time; a new client replaces the
// previous one and events sent while nobody is attached are dropped.
package observer

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/onnwee/keyword-catcher/events"
	"github.com/onnwee/keyword-catcher/telemetry"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultWriteTimeout = 5 * time.Second
	defaultSendBuffer   = 64
)

// Link is the process-wide observer link. It implements events.Sink.
type Link struct {
	clock        clockwork.Clock
	pingInterval time.Duration
	writeTimeout time.Duration
	sendBuffer   int
	upgrader     websocket.Upgrader

	mu      sync.Mutex
	current *client
	closed  bool
}

// Option configures a Link.
type Option func(*Link)

// WithClock replaces the clock driving the heartbeat ticker.
func WithClock(c clockwork.Clock) Option { return func(l *Link) { l.clock = c } }

// WithPingInterval sets how often the client is probed.
func WithPingInterval(d time.Duration) Option {
	return func(l *Link) {
		if d > 0 {
			l.pingInterval = d
		}
	}
}

// WithWriteTimeout bounds every socket write.
func WithWriteTimeout(d time.Duration) Option {
	return func(l *Link) {
		if d > 0 {
			l.writeTimeout = d
		}
	}
}

// WithSendBuffer sets how many events may queue for a slow client.
func WithSendBuffer(n int) Option {
	return func(l *Link) {
		if n > 0 {
			l.sendBuffer = n
		}
	}
}

// New returns a Link with no client attached.
func New(opts ...Option) *Link {
	l := &Link{
		clock:        clockwork.NewRealClock(),
		pingInterval: defaultPingInterval,
		writeTimeout: defaultWriteTimeout,
		sendBuffer:   defaultSendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ServeHTTP upgrades the request and makes the new client the current one.
func (l *Link) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Warn("observer upgrade failed", slog.Any("err", err), slog.String("component", "observer"))
		return
	}
	c := l.attach(conn)
	if c == nil {
		return
	}
	c.log.Info("observer connected", slog.String("remote_addr", r.RemoteAddr))
	go l.readLoop(c)
}

func (l *Link) attach(conn *websocket.Conn) *client {
	c := &client{
		id:    uuid.NewString(),
		conn:  conn,
		send:  make(chan []byte, l.sendBuffer),
		done:  make(chan struct{}),
		write: l.writeTimeout,
	}
	c.log = slog.Default().With(slog.String("component", "observer"), slog.String("client", c.id))
	c.alive.Store(true)
	conn.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return nil
	})

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	prev := l.current
	l.current = c
	l.mu.Unlock()

	telemetry.SetObserverConnected(true)
	c.wg.Add(1)
	go c.run(l.clock.NewTicker(l.pingInterval))

	if prev != nil {
		prev.log.Info("observer replaced")
		prev.stop("replaced")
	}
	return c
}

// readLoop drains inbound frames so pongs and close frames are processed.
// Observer messages carry no meaning and are discarded.
func (l *Link) readLoop(c *client) {
	defer l.release(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("observer read ended", slog.Any("err", err))
			}
			return
		}
	}
}

// release detaches c. A client that has already been replaced leaves the
// newer one in place.
func (l *Link) release(c *client) {
	l.mu.Lock()
	current := l.current == c
	if current {
		l.current = nil
	}
	l.mu.Unlock()

	c.stop("")
	if current {
		telemetry.SetObserverConnected(false)
		c.log.Info("observer disconnected")
	}
}

// Send queues ev for the current client. It never blocks; the event is
// dropped when no client is attached or its queue is full.
func (l *Link) Send(ev events.Event) {
	l.mu.Lock()
	c := l.current
	l.mu.Unlock()
	if c == nil {
		telemetry.CountEvent(ev.EventType(), false)
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		c.log.Error("encode event", slog.String("type", ev.EventType()), slog.Any("err", err))
		telemetry.CountEvent(ev.EventType(), false)
		return
	}

	select {
	case <-c.done:
		telemetry.CountEvent(ev.EventType(), false)
	case c.send <- data:
		telemetry.CountEvent(ev.EventType(), true)
	default:
		c.log.Warn("observer send buffer full, dropping event", slog.String("type", ev.EventType()))
		telemetry.CountEvent(ev.EventType(), false)
	}
}

// Connected reports whether a client is attached.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current != nil
}

// Close detaches the current client with a close frame and refuses new ones.
func (l *Link) Close() {
	l.mu.Lock()
	l.closed = true
	c := l.current
	l.current = nil
	l.mu.Unlock()

	if c == nil {
		return
	}
	c.stop("server shutting down")
	telemetry.SetObserverConnected(false)
	c.log.Info("observer closed")
}

// client is one attached WebSocket connection. Only run writes to conn until
// stop has waited for it.
type client struct {
	id    string
	conn  *websocket.Conn
	send  chan []byte
	done  chan struct{}
	write time.Duration
	log   *slog.Logger
	alive atomic.Bool

	stopOnce sync.Once
	wg       sync.WaitGroup
}

func (c *client) run(ticker clockwork.Ticker) {
	defer c.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.write))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("observer write failed", slog.Any("err", err))
				_ = c.conn.Close()
				return
			}
		case <-ticker.Chan():
			if !c.alive.Swap(false) {
				c.log.Warn("terminating unresponsive observer")
				_ = c.conn.Close()
				return
			}
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.write)); err != nil {
				c.log.Debug("observer ping failed", slog.Any("err", err))
				_ = c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// stop ends the writer and closes the connection, sending a close frame
// with reason when one is given.
func (c *client) stop(reason string) {
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
		if reason != "" {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.write))
		}
		_ = c.conn.Close()
	})
}
