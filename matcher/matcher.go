// Package matcher compiles an operator-entered keyword or short phrase into a
// predicate over chat text.
//
// The compiled pattern is forgiving in the ways live chat is noisy:
//   - letters may repeat ("hi" accepts "hiiii", "soo" accepts "sooooo")
//   - trailing "!", "." and "?" runs are ignored, as is one trailing emoji run
//   - apostrophes and spaces between the words of a phrase are optional
//   - case and accents do not matter ("CAFÉ" accepts "cafe")
//
// A keyword made only of emoji is the exception: it accepts repetitions of that
// exact emoji sequence and nothing else.
package matcher

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrEmptyKeyword is returned by Compile for keywords that are empty after trimming.
var ErrEmptyKeyword = errors.New("matcher: empty keyword")

const (
	emojiClass    = `[\x{1F300}-\x{1F9FF}]`
	trailer       = `[!.?]*(?:` + emojiClass + `+)?$`
	wordSeparator = `[\s\p{Z}']*`
	innerQuote    = `'*`
)

var (
	emojiOnly = regexp.MustCompile(`^` + emojiClass + `+$`)
	quotes    = strings.NewReplacer("‘", "'", "’", "'", "ʼ", "'", "`", "'")
)

// Matcher is an immutable compiled keyword. It is safe for concurrent use.
type Matcher struct {
	keyword string
	re      *regexp.Regexp
}

// Compile builds a Matcher for keyword. The same keyword always yields an
// equivalent Matcher.
func Compile(keyword string) (*Matcher, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, ErrEmptyKeyword
	}

	var pattern string
	if emojiOnly.MatchString(keyword) {
		pattern = `^(?:` + regexp.QuoteMeta(keyword) + `)+$`
	} else {
		words := strings.Fields(normalize(keyword))
		if strings.Trim(strings.Join(words, ""), "'") == "" {
			return nil, ErrEmptyKeyword
		}
		if len(words) > 1 {
			parts := make([]string, 0, len(words))
			for _, w := range words {
				parts = append(parts, wordPattern(w, false))
			}
			pattern = `(?i)^` + strings.Join(parts, wordSeparator) + trailer
		} else {
			pattern = `(?i)^` + wordPattern(words[0], true) + trailer
		}
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("matcher: compile %q: %w", keyword, err)
	}
	return &Matcher{keyword: keyword, re: re}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(keyword string) *Matcher {
	m, err := Compile(keyword)
	if err != nil {
		panic(err)
	}
	return m
}

// Match reports whether text is accepted by the keyword.
func (m *Matcher) Match(text string) bool {
	return m.re.MatchString(prepare(text))
}

// Keyword returns the keyword the matcher was compiled from.
func (m *Matcher) Keyword() string { return m.keyword }

// String returns the underlying pattern.
func (m *Matcher) String() string { return m.re.String() }

// wordPattern escapes a single word with its apostrophes removed. Apostrophes
// are accepted again between any two letters so "dont" still matches "don't".
// With repeat set every letter may occur one or more times in a row.
func wordPattern(word string, repeat bool) string {
	base := strings.ReplaceAll(word, "'", "")
	letters := make([]string, 0, len(base))
	for _, r := range base {
		q := regexp.QuoteMeta(string(r))
		if repeat {
			q += "+"
		}
		letters = append(letters, q)
	}
	return strings.Join(letters, innerQuote)
}

func normalize(s string) string {
	s = strings.ToLower(fold(s))
	s = quotes.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// prepare brings candidate text into the same form the pattern was built from,
// leaving case to the (?i) flag.
func prepare(text string) string {
	return strings.TrimSpace(quotes.Replace(fold(text)))
}

// fold strips combining marks so accented letters compare equal to their base.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
