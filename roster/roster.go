// Package roster keeps the observer-side list of caught viewers and renders
// it for display.
package roster

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/onnwee/keyword-catcher/events"
)

// Mode selects how names are rendered.
type Mode int

const (
	// Raw shows names exactly as received.
	Raw Mode = iota
	// Sanitized keeps only letters and spaces and capitalizes the result.
	Sanitized
	// FirstWord shows the capitalized first sanitized word, once.
	FirstWord
)

func (m Mode) String() string {
	switch m {
	case Raw:
		return "raw"
	case Sanitized:
		return "sanitized"
	case FirstWord:
		return "first-word"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts the names printed by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raw", "":
		return Raw, nil
	case "sanitized":
		return Sanitized, nil
	case "first-word", "firstword":
		return FirstWord, nil
	default:
		return Raw, fmt.Errorf("unknown display mode %q", s)
	}
}

// Entry is one caught viewer.
type Entry struct {
	Name     string
	Platform string
}

// Roster is safe for concurrent use.
type Roster struct {
	mu      sync.Mutex
	entries []Entry
	seen    map[string]struct{}
}

// New returns an empty roster.
func New() *Roster {
	return &Roster{seen: make(map[string]struct{})}
}

// Add records name unless it is blank or already present.
func (r *Roster) Add(name, platform string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[name]; ok {
		return false
	}
	r.seen[name] = struct{}{}
	r.entries = append(r.entries, Entry{Name: name, Platform: platform})
	return true
}

// Clear forgets every viewer.
func (r *Roster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
	clear(r.seen)
}

// Entries returns the viewers in arrival order.
func (r *Roster) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Len returns the number of viewers.
func (r *Roster) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Apply updates the roster from one push-channel message. It reports whether
// the roster changed. Both the structured control event and the legacy bare
// "clearViewers" text clear the list.
func (r *Roster) Apply(msg []byte) (bool, error) {
	text := strings.TrimSpace(string(msg))
	if text == events.ActionClearViewers {
		r.Clear()
		return true, nil
	}

	var frame struct {
		Type       string `json:"type"`
		Action     string `json:"action"`
		ViewerName string `json:"viewerName"`
		Platform   string `json:"platform"`
	}
	if err := json.Unmarshal(msg, &frame); err != nil {
		return false, fmt.Errorf("decode message: %w", err)
	}
	switch frame.Type {
	case events.TypeChat:
		return r.Add(frame.ViewerName, frame.Platform), nil
	case events.TypeControl:
		if frame.Action == events.ActionClearViewers {
			r.Clear()
			return true, nil
		}
	}
	return false, nil
}

// Render joins the names with ", " in the given mode.
func (r *Roster) Render(mode Mode) string {
	entries := r.Entries()
	out := make([]string, 0, len(entries))
	shown := make(map[string]struct{})

	for _, e := range entries {
		var name string
		switch mode {
		case Sanitized:
			name = Capitalize(Sanitize(e.Name))
		case FirstWord:
			if words := strings.Fields(Sanitize(e.Name)); len(words) > 0 {
				name = Capitalize(words[0])
			}
			if _, dup := shown[name]; dup {
				continue
			}
		default:
			name = e.Name
		}
		if name == "" {
			continue
		}
		shown[name] = struct{}{}
		out = append(out, name)
	}
	return strings.Join(out, ", ")
}

// Save writes the rendered list to path. An empty list writes nothing.
func (r *Roster) Save(path string, mode Mode) error {
	content := r.Render(mode)
	if content == "" {
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("save roster: %w", err)
	}
	return nil
}

// Sanitize applies NFKC, replaces everything but letters and whitespace with
// spaces and collapses the spacing.
func Sanitize(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, norm.NFKC.String(name))
	return strings.Join(strings.Fields(cleaned), " ")
}

// Capitalize upper-cases the first letter and lower-cases the rest.
func Capitalize(s string) string {
	if s == "" {
		return ""
	}
	_, size := utf8.DecodeRuneInString(s)
	return cases.Upper(language.Und).String(s[:size]) + cases.Lower(language.Und).String(s[size:])
}
