// Package control is the process-wide session controller. It owns the dedup
// session, one supervisor per platform and the observer link, and carries out
// operator actions against them.
package control

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/onnwee/keyword-catcher/chat"
	"github.com/onnwee/keyword-catcher/session"
	"github.com/onnwee/keyword-catcher/telemetry"
)

// PlatformAll selects every platform in Disconnect.
const PlatformAll = "all"

var (
	// ErrMissingField rejects a start without username or platform.
	ErrMissingField = errors.New("missing username or platform")
	// ErrUnsupportedPlatform rejects an unknown platform tag.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// Supervisor is the part of chat.Supervisor the controller drives.
type Supervisor interface {
	Platform() chat.Platform
	Start(ctx context.Context, username string) error
	Stop()
	Status() chat.Status
}

// Observer is the push channel to the control surface.
type Observer interface {
	Connected() bool
	Close()
}

// PlatformStatus describes one platform connection.
type PlatformStatus struct {
	State    string `json:"state"`
	Username string `json:"username,omitempty"`
}

// Status is a snapshot of the whole session.
type Status struct {
	Keyword           string                    `json:"keyword"`
	Viewers           int                       `json:"viewers"`
	ObserverConnected bool                      `json:"observerConnected"`
	Platforms         map[string]PlatformStatus `json:"platforms"`
	Tracing           bool                      `json:"tracing"`
}

// Controller is safe for concurrent use.
type Controller struct {
	session   *session.Session
	observer  Observer
	platforms map[string]Supervisor

	shutdownOnce sync.Once
	done         chan struct{}
}

// New wires a controller. Supervisors are addressed by their platform name.
func New(sess *session.Session, obs Observer, sups ...Supervisor) *Controller {
	c := &Controller{
		session:   sess,
		observer:  obs,
		platforms: make(map[string]Supervisor, len(sups)),
		done:      make(chan struct{}),
	}
	for _, s := range sups {
		c.platforms[s.Platform().Name] = s
	}
	return c
}

func logger(ctx context.Context) *slog.Logger {
	return telemetry.LoggerWithCorr(ctx).With(slog.String("component", "control"))
}

// SetKeyword activates keyword, resetting the counted viewers.
func (c *Controller) SetKeyword(ctx context.Context, keyword string) error {
	if err := c.session.Activate(keyword); err != nil {
		logger(ctx).Warn("set keyword failed", slog.String("keyword", keyword), slog.Any("err", err))
		return err
	}
	return nil
}

// ClearKeyword disables matching.
func (c *Controller) ClearKeyword(ctx context.Context) {
	c.session.Reset()
	logger(ctx).Info("keyword cleared")
}

// Start connects platform to username and waits for the connection to be
// confirmed. A failed start matches chat.ErrNotLive.
func (c *Controller) Start(ctx context.Context, username, platform string) error {
	username = strings.TrimSpace(username)
	platform = strings.TrimSpace(platform)
	if username == "" || platform == "" {
		return ErrMissingField
	}
	sup, ok := c.platforms[platform]
	if !ok {
		logger(ctx).Warn("start rejected", slog.String("platform", platform))
		return ErrUnsupportedPlatform
	}

	ctx, span := telemetry.StartSpan(ctx, "control", "platform.start", telemetry.PlatformAttr(platform))
	defer span.End()

	if err := sup.Start(ctx, username); err != nil {
		telemetry.RecordError(span, err)
		logger(ctx).Warn("start failed", slog.String("platform", platform), slog.String("username", username), slog.Any("err", err))
		return err
	}
	telemetry.SetSpanSuccess(span)
	logger(ctx).Info("platform connected", slog.String("platform", platform), slog.String("username", username))
	return nil
}

// Disconnect stops one platform, or every platform for PlatformAll. Only the
// PlatformAll path also clears the keyword and counted viewers. A blank
// platform is ErrMissingField.
func (c *Controller) Disconnect(ctx context.Context, platform string) error {
	platform = strings.TrimSpace(platform)
	if platform == "" {
		return ErrMissingField
	}
	if platform == PlatformAll {
		for _, name := range c.names() {
			c.platforms[name].Stop()
		}
		c.session.Reset()
		logger(ctx).Info("disconnected all platforms")
		return nil
	}
	sup, ok := c.platforms[platform]
	if !ok {
		return ErrUnsupportedPlatform
	}
	sup.Stop()
	logger(ctx).Info("disconnected", slog.String("platform", platform))
	return nil
}

// Shutdown stops every platform and closes the observer link. Later calls
// do nothing. Done is closed once teardown has finished.
func (c *Controller) Shutdown(ctx context.Context) {
	c.shutdownOnce.Do(func() {
		logger(ctx).Info("shutting down")
		for _, name := range c.names() {
			c.platforms[name].Stop()
		}
		if c.observer != nil {
			c.observer.Close()
		}
		close(c.done)
	})
}

// Done is closed after Shutdown.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Status reports the keyword, counted viewers and each platform's connection.
func (c *Controller) Status() Status {
	st := Status{
		Keyword:   c.session.Keyword(),
		Viewers:   c.session.Seen(),
		Platforms: make(map[string]PlatformStatus, len(c.platforms)),
		Tracing:   telemetry.IsTracingEnabled(),
	}
	if c.observer != nil {
		st.ObserverConnected = c.observer.Connected()
	}
	for name, sup := range c.platforms {
		s := sup.Status()
		st.Platforms[name] = PlatformStatus{State: s.State.String(), Username: s.Username}
	}
	return st
}

func (c *Controller) names() []string {
	names := make([]string, 0, len(c.platforms))
	for name := range c.platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
