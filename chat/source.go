package chat

import (
	"context"
	"errors"
)

// Handler receives the normalized events of one upstream connection. Calls
// for a given connection arrive in upstream order from a single goroutine.
type Handler interface {
	OnChatMessage(viewer, text string)
	OnViewerCount(count int)
	OnStreamEnd()
}

// Source is a single upstream connection.
type Source interface {
	// Connect establishes the connection and starts delivering events to h.
	// It returns once the upstream accepted the connection.
	Connect(ctx context.Context, h Handler) error
	// Disconnect closes the connection. Calling it more than once is allowed.
	Disconnect() error
}

// Dialer creates an unconnected Source for a platform username or channel.
type Dialer func(username string) Source

// Platform describes one class of upstream.
type Platform struct {
	Name  string
	Color string
	// ConfirmOnConnect marks upstreams where a successful connect already
	// proves the target is reachable. Otherwise the first viewer-count event
	// confirms the connection.
	ConfirmOnConnect bool
	// FailureReason is reported to the operator when a start fails.
	FailureReason string
}

var (
	TikTok = Platform{
		Name:          "tiktok",
		Color:         "#00b400",
		FailureReason: "User is not live",
	}
	Twitch = Platform{
		Name:             "twitch",
		Color:            "#9146ff",
		ConfirmOnConnect: true,
		FailureReason:    "Failed to connect to Twitch",
	}
)

// ErrNotLive is matched by every failed start, whatever the upstream cause.
var ErrNotLive = errors.New("target not live or unreachable")

var (
	errConfirmTimeout = errors.New("no viewer data before confirmation timeout")
	errStreamEnded    = errors.New("stream ended")
	errNegativeCount  = errors.New("negative viewer count")
	errStopped        = errors.New("connection stopped")
	errReplaced       = errors.New("connection replaced")
)

// StartError reports a failed start. Its message is the operator-facing
// reason; the upstream cause is kept for logs and errors.Is.
type StartError struct {
	Platform string
	Reason   string
	Err      error
}

func (e *StartError) Error() string { return e.Reason }

func (e *StartError) Unwrap() error { return e.Err }

// Is makes every StartError match ErrNotLive.
func (e *StartError) Is(target error) bool { return target == ErrNotLive }
