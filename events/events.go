// Package events defines the payloads pushed to the observer and the Sink
// that carries them.
package events

// Event types as they appear in the "type" field on the wire.
const (
	TypeChat        = "chat"
	TypeViewerCount = "viewerCount"
	TypeControl     = "control"
)

// ActionClearViewers tells the observer to drop its displayed viewer list.
const ActionClearViewers = "clearViewers"

// Event is any payload that can be pushed to the observer.
type Event interface {
	EventType() string
}

// Sink accepts events for the observer. Send is best effort: it must not
// block and silently drops the event when nobody is listening.
type Sink interface {
	Send(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

// Send calls f(ev).
func (f SinkFunc) Send(ev Event) { f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Chat is a first-time keyword match by a viewer.
type Chat struct {
	Type       string `json:"type"`
	ViewerName string `json:"viewerName"`
	Message    string `json:"message"`
	Platform   string `json:"platform"`
	Color      string `json:"color"`
}

// NewChat returns a chat-match event.
func NewChat(viewer, message, platform, color string) Chat {
	return Chat{Type: TypeChat, ViewerName: viewer, Message: message, Platform: platform, Color: color}
}

func (Chat) EventType() string { return TypeChat }

// ViewerCount reports the live audience size of a platform connection.
type ViewerCount struct {
	Type     string `json:"type"`
	Platform string `json:"platform"`
	Count    int    `json:"count"`
}

// NewViewerCount returns a viewer-count event.
func NewViewerCount(platform string, count int) ViewerCount {
	return ViewerCount{Type: TypeViewerCount, Platform: platform, Count: count}
}

func (ViewerCount) EventType() string { return TypeViewerCount }

// Control instructs the observer to change its own state.
type Control struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

// ClearViewers returns the control event that empties the observer's list.
func ClearViewers() Control {
	return Control{Type: TypeControl, Action: ActionClearViewers}
}

func (Control) EventType() string { return TypeControl }
