// Package session holds the per-keyword dedup state: the active matcher and
// the viewers already counted for it.
//
// Viewer identities are plain display names shared across platforms, so the
// same name seen on two platforms counts once.
package session

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/onnwee/keyword-catcher/events"
	"github.com/onnwee/keyword-catcher/matcher"
)

// Session is safe for concurrent use. Viewers are keyed by name alone, so the
// same name on two platforms is counted once.
type Session struct {
	sink events.Sink

	mu      sync.Mutex
	keyword string
	matcher *matcher.Matcher
	seen    map[string]struct{}
}

// New returns a Session with matching disabled. Keyword changes are announced
// to sink with a clear-viewers control event. Sends happen under the session
// lock, so sink must not block.
func New(sink events.Sink) *Session {
	if sink == nil {
		sink = events.Discard
	}
	return &Session{sink: sink, seen: make(map[string]struct{})}
}

// Activate makes keyword the active keyword, forgets every counted viewer and
// tells the observer to clear its list. An empty or whitespace-only keyword
// disables matching.
func (s *Session) Activate(keyword string) error {
	keyword = strings.TrimSpace(keyword)

	var m *matcher.Matcher
	if keyword != "" {
		var err error
		m, err = matcher.Compile(keyword)
		switch {
		case errors.Is(err, matcher.ErrEmptyKeyword):
			keyword, m = "", nil
		case err != nil:
			return err
		}
	}

	s.mu.Lock()
	s.keyword = keyword
	s.matcher = m
	clear(s.seen)
	s.sink.Send(events.ClearViewers())
	s.mu.Unlock()

	slog.Info("keyword set", slog.String("keyword", keyword), slog.Bool("matching", m != nil), slog.String("component", "session"))
	return nil
}

// Reset disables matching. It is Activate("").
func (s *Session) Reset() {
	_ = s.Activate("")
}

// TestAndRecord reports whether text matches the active keyword and viewer
// has not been counted yet, recording viewer when it does.
func (s *Session) TestAndRecord(viewer, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.testAndRecord(viewer, text)
}

// Record is TestAndRecord that also sends match to the sink on success. The
// send is ordered with the clear event of every Activate, so the observer
// never receives a match for one keyword after the clear of the next.
func (s *Session) Record(viewer, text string, match events.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.testAndRecord(viewer, text) {
		return false
	}
	s.sink.Send(match)
	return true
}

func (s *Session) testAndRecord(viewer, text string) bool {
	if s.matcher == nil {
		return false
	}
	if _, ok := s.seen[viewer]; ok {
		return false
	}
	if !s.matcher.Match(text) {
		return false
	}
	s.seen[viewer] = struct{}{}
	return true
}

// Active reports whether a keyword is set.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matcher != nil
}

// Keyword returns the active keyword, or "" when matching is disabled.
func (s *Session) Keyword() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyword
}

// Seen returns the number of viewers counted for the active keyword.
func (s *Session) Seen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
