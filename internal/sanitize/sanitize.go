// Package sanitize provides the validation and normalization layer applied
// to every goal and schedule field of unknown provenance (model output or
// user form input) before it reaches persistence.
//
// Every function degrades malformed input to a safe default instead of
// returning an error; nothing in this package aborts the pipeline. Length
// limits and ranges mirror the domain model invariants:
//
//   - titles        ≤ 100 runes
//   - descriptions  ≤ 500 runes
//   - notes         ≤ 500 runes
//   - emoji         ≤ 20 runes (fallback glyph on miss)
//   - percent       string-encoded integer clamped to [10, 100]
//
// Over-long strings are truncated to limit-3 runes plus a trailing "..."
// marker, so the stored value is exactly the field limit.
package sanitize

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Field limits, in runes.
const (
	TitleMaxLen       = 100
	DescriptionMaxLen = 500
	NotesMaxLen       = 500
	EmojiMaxLen       = 20
)

// FallbackEmoji is applied when input carries no usable emoji tag.
const FallbackEmoji = "📌"

// Percent bounds. The lower bound is 10 rather than 0 so a completed step
// never renders as visually "unstarted".
const (
	PercentMin     = 10
	PercentMax     = 100
	PercentDefault = "10"
)

// defaultStartHour is the wall-clock hour used when a start time cannot be
// parsed ("today at 09:00").
const defaultStartHour = 9

// defaultSpan is added to a start time when an end time cannot be parsed.
const defaultSpan = 3 * time.Hour

// timeLayouts are tried in order when parsing timestamps from model output.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Clip truncates s to at most limit runes. Inputs over the limit keep the
// first limit-3 runes and gain a trailing "..." so the result is exactly
// limit runes long. Inputs at or under the limit pass through unchanged.
func Clip(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 3 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit-3]) + "..."
}

// Title normalizes a goal or schedule title.
func Title(s string) string { return Clip(s, TitleMaxLen) }

// Description normalizes a goal or schedule description.
func Description(s string) string { return Clip(s, DescriptionMaxLen) }

// Notes normalizes schedule notes.
func Notes(s string) string { return Clip(s, NotesMaxLen) }

// Emoji returns a usable emoji tag. Blank input or input longer than
// EmojiMaxLen runes falls back to FallbackEmoji.
func Emoji(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > EmojiMaxLen {
		return FallbackEmoji
	}
	return s
}

// Percent normalizes a string-encoded completion percentage. Absent or
// non-numeric input defaults to PercentDefault; numeric input is clamped to
// [PercentMin, PercentMax] and re-encoded.
func Percent(s string) string {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return PercentDefault
	}
	if n < PercentMin {
		n = PercentMin
	}
	if n > PercentMax {
		n = PercentMax
	}
	return strconv.Itoa(n)
}

// TimeOrDefault parses raw as a timestamp using the known layouts. On
// failure it returns "today at 09:00" relative to now. Parsing is
// independent of any sibling field.
func TimeOrDefault(raw string, now time.Time) time.Time {
	if t, ok := parseTime(raw, now.Location()); ok {
		return t
	}
	return time.Date(now.Year(), now.Month(), now.Day(), defaultStartHour, 0, 0, 0, now.Location())
}

// EndTimeOrDefault parses raw as a timestamp. On failure it returns
// started + 3 hours, so a bad end time never invalidates a good start time.
func EndTimeOrDefault(raw string, started time.Time) time.Time {
	if t, ok := parseTime(raw, started.Location()); ok {
		return t
	}
	return started.Add(defaultSpan)
}

// parseTime tries each known layout in order; date-only layouts produce
// midnight in loc.
func parseTime(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
