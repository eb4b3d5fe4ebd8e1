package testutil

import (
	"sync"

	"github.com/onnwee/keyword-catcher/events"
)

// RecordingSink is an events.Sink that keeps everything it is sent.
type RecordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

// Send implements events.Sink.
func (r *RecordingSink) Send(ev events.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events in arrival order.
func (r *RecordingSink) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

// Count returns how many events of the given type were recorded.
func (r *RecordingSink) Count(eventType string) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.EventType() == eventType {
			n++
		}
	}
	return n
}

// Chats returns the recorded chat-match events.
func (r *RecordingSink) Chats() []events.Chat {
	var out []events.Chat
	for _, ev := range r.Events() {
		if c, ok := ev.(events.Chat); ok {
			out = append(out, c)
		}
	}
	return out
}

// ViewerCounts returns the recorded viewer-count events.
func (r *RecordingSink) ViewerCounts() []events.ViewerCount {
	var out []events.ViewerCount
	for _, ev := range r.Events() {
		if c, ok := ev.(events.ViewerCount); ok {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets all recorded events.
func (r *RecordingSink) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
