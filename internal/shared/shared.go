// package shared defines shared helpers
package shared

import (
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// NormalizeTrackKey builds the normalized "artist - title" identity used for
// matching catalog rows against filenames and remote records.
//
// The key is lowercased, NFKD-folded with combining marks stripped, and has
// runs of whitespace collapsed, so "Röyksopp  - Eple " and "royksopp - eple"
// produce the same key.
func NormalizeTrackKey(artist, title string) string {
	return NormalizeText(artist) + " - " + NormalizeText(title)
}

// NormalizeText lowercases text, strips diacritics and collapses whitespace.
// It is the single normalization every fuzzy comparison in the system uses.
func NormalizeText(text string) string {
	text = norm.NFKD.String(text)

	var b strings.Builder
	for _, r := range text {
		if unicode.IsMark(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// ParseTrackFilename splits a filename shaped like "Artist - Title.ext" into
// its artist and title parts. The extension is dropped and only the first
// " - " separator is honored since titles may themselves contain dashes.
//
// Returns ok=false when the name does not follow the convention.
func ParseTrackFilename(name string) (artist, title string, ok bool) {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}

	parts := strings.SplitN(name, " - ", 2)
	if len(parts) != 2 {
		return "", "", false
	}

	artist = strings.TrimSpace(parts[0])
	title = strings.TrimSpace(parts[1])
	if artist == "" || title == "" {
		return "", "", false
	}

	return artist, title, true
}
