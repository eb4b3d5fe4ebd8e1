package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/onnwee/keyword-catcher/events"
	"github.com/onnwee/keyword-catcher/telemetry"
)

const (
	defaultConfirmTimeout = 5 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

// State is the lifecycle position of a platform connection.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConfirmed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConfirmed:
		return "confirmed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Recorder decides whether a chat message is a first-time keyword match and,
// if so, delivers match to the observer.
type Recorder interface {
	Record(viewer, text string, match events.Event) bool
}

// Status is a snapshot of a Supervisor's current connection.
type Status struct {
	State    State
	Username string
}

// Supervisor owns the single upstream connection of one platform.
type Supervisor struct {
	platform Platform
	dial     Dialer
	recorder Recorder
	sink     events.Sink
	clock    clockwork.Clock

	confirmTimeout time.Duration
	connectTimeout time.Duration

	mu   sync.Mutex
	conn *connection
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithClock replaces the clock driving the confirmation timer.
func WithClock(c clockwork.Clock) Option { return func(s *Supervisor) { s.clock = c } }

// WithConfirmTimeout sets how long a connection may wait for its first viewer count.
func WithConfirmTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.confirmTimeout = d
		}
	}
}

// WithConnectTimeout bounds the upstream connect call.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.connectTimeout = d
		}
	}
}

// NewSupervisor returns an idle Supervisor for platform p.
func NewSupervisor(p Platform, dial Dialer, rec Recorder, sink events.Sink, opts ...Option) *Supervisor {
	if sink == nil {
		sink = events.Discard
	}
	s := &Supervisor{
		platform:       p,
		dial:           dial,
		recorder:       rec,
		sink:           sink,
		clock:          clockwork.NewRealClock(),
		confirmTimeout: defaultConfirmTimeout,
		connectTimeout: defaultConnectTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Platform returns the platform this Supervisor serves.
func (s *Supervisor) Platform() Platform { return s.platform }

// Start connects to username, replacing any existing connection, and blocks
// until the connection is confirmed or has failed. Failures match ErrNotLive.
func (s *Supervisor) Start(ctx context.Context, username string) error {
	c := &connection{
		sup:      s,
		id:       uuid.NewString(),
		username: username,
		state:    StateConnecting,
		done:     make(chan struct{}),
	}
	c.source = s.dial(username)

	s.mu.Lock()
	prev := s.conn
	s.conn = c
	s.mu.Unlock()
	if prev != nil {
		s.teardown(prev, errReplaced)
	}

	log := c.logger()
	log.Info("connecting")

	connectCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	err := c.source.Connect(connectCtx, c)
	cancel()
	if err != nil {
		log.Warn("connect failed", slog.Any("err", err))
		if c.resolve(s.failure(err)) {
			s.drop(c)
		}
		return s.finish(c)
	}

	if s.platform.ConfirmOnConnect {
		c.resolve(nil)
	} else {
		c.armTimer(s.clock, s.confirmTimeout, func() {
			if c.resolve(s.failure(errConfirmTimeout)) {
				log.Info("no viewer data received, assuming user is not live")
				s.drop(c)
			}
		})
	}

	select {
	case <-c.done:
	case <-ctx.Done():
		if c.resolve(s.failure(ctx.Err())) {
			s.drop(c)
		}
	}
	return s.finish(c)
}

// Stop disconnects the current connection, if any.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	c := s.conn
	s.conn = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	s.teardown(c, errStopped)
	telemetry.SetPlatformConnected(s.platform.Name, false)
}

// Status reports the current connection.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()
	if c == nil {
		return Status{State: StateIdle}
	}
	return Status{State: c.State(), Username: c.username}
}

// Connected reports whether a confirmed connection is held.
func (s *Supervisor) Connected() bool {
	return s.Status().State == StateConfirmed
}

func (s *Supervisor) finish(c *connection) error {
	<-c.done
	err := c.err
	if err != nil {
		telemetry.CountStart(s.platform.Name, "failed")
		return err
	}
	telemetry.CountStart(s.platform.Name, "ok")
	s.mu.Lock()
	current := s.conn == c
	s.mu.Unlock()
	telemetry.SetPlatformConnected(s.platform.Name, current)
	c.logger().Info("connected")
	return nil
}

func (s *Supervisor) failure(cause error) error {
	return &StartError{Platform: s.platform.Name, Reason: s.platform.FailureReason, Err: cause}
}

// drop closes c and forgets it if it is still the current connection.
func (s *Supervisor) drop(c *connection) {
	s.mu.Lock()
	current := s.conn == c
	if current {
		s.conn = nil
	}
	s.mu.Unlock()
	c.close()
	if current {
		telemetry.SetPlatformConnected(s.platform.Name, false)
	}
}

// teardown answers a pending start with cause and closes c.
func (s *Supervisor) teardown(c *connection, cause error) {
	c.resolve(s.failure(cause))
	c.close()
}

func (s *Supervisor) handleChat(c *connection, viewer, text string) {
	telemetry.CountChat(s.platform.Name)
	c.logger().Debug("chat", slog.String("viewer", viewer), slog.String("text", text))

	if s.recorder == nil {
		return
	}
	if s.recorder.Record(viewer, text, events.NewChat(viewer, text, s.platform.Name, s.platform.Color)) {
		telemetry.CountMatch(s.platform.Name)
	}
}

// connection is one attempt to reach an upstream target. It is the Handler
// its Source delivers to.
type connection struct {
	sup      *Supervisor
	id       string
	username string
	source   Source

	mu       sync.Mutex
	state    State
	timer    clockwork.Timer
	resolved bool
	err      error
	done     chan struct{}
}

func (c *connection) logger() *slog.Logger {
	return slog.Default().With(
		slog.String("component", "chat"),
		slog.String("platform", c.sup.platform.Name),
		slog.String("username", c.username),
		slog.String("conn", c.id),
	)
}

func (c *connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// resolve answers the start request. Only the first call has any effect and
// reports true.
func (c *connection) resolve(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		return false
	}
	c.resolved = true
	c.err = err
	if c.timer != nil {
		c.timer.Stop()
	}
	if err == nil && c.state == StateConnecting {
		c.state = StateConfirmed
	}
	close(c.done)
	return true
}

func (c *connection) armTimer(clock clockwork.Clock, d time.Duration, fire func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		return
	}
	c.timer = clock.AfterFunc(d, fire)
}

// close disconnects the upstream once.
func (c *connection) close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()

	if err := c.source.Disconnect(); err != nil {
		c.logger().Debug("disconnect", slog.Any("err", err))
	}
	c.logger().Info("disconnected")
}

func (c *connection) OnChatMessage(viewer, text string) {
	if c.State() != StateConfirmed {
		return
	}
	c.sup.handleChat(c, viewer, text)
}

func (c *connection) OnViewerCount(count int) {
	if c.State() == StateClosed {
		return
	}
	c.sup.sink.Send(events.NewViewerCount(c.sup.platform.Name, count))
	if count < 0 {
		if c.resolve(c.sup.failure(errNegativeCount)) {
			c.sup.drop(c)
		}
		return
	}
	c.resolve(nil)
}

func (c *connection) OnStreamEnd() {
	c.logger().Info("stream ended")
	c.resolve(c.sup.failure(errStreamEnded))
	c.sup.drop(c)
}
