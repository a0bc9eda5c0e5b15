// Package dateparse extracts date and duration hints from free-form
// Indonesian goal text ("mulai 15 september", "3 minggu", "besok") and turns
// them into concrete calendar dates.
//
// Extraction is best-effort: every field of the result is independently
// nullable and a miss is never an error. Range validation, by contrast,
// fails closed with distinct human-readable messages — it is the one place
// in the pipeline where bad dates abort instead of defaulting.
package dateparse

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Duration units recognized in goal text.
const (
	UnitDays   = "days"
	UnitWeeks  = "weeks"
	UnitMonths = "months"
)

// Range validation errors, surfaced verbatim to the user.
var (
	// ErrStartTooEarly: goals must start no earlier than tomorrow.
	ErrStartTooEarly = errors.New("tanggal mulai minimal besok")
	// ErrEndBeforeStart: the end date must come after the start date.
	ErrEndBeforeStart = errors.New("tanggal selesai harus setelah tanggal mulai")
	// ErrSpanTooLong: a goal may span at most 4 calendar months.
	ErrSpanTooLong = errors.New("durasi goal maksimal 4 bulan")
)

// maxSpanMonths bounds the goal span enforced by ValidateRange.
const maxSpanMonths = 4

// Duration is a parsed duration phrase such as "3 minggu".
type Duration struct {
	Value int
	Unit  string
}

// Info is the best-effort extraction result. Each field is nil when the text
// carried no usable hint for it.
type Info struct {
	StartDate *time.Time
	EndDate   *time.Time
	Duration  *Duration
}

// monthLexicon maps Indonesian month names and common abbreviations to
// month numbers.
var monthLexicon = map[string]time.Month{
	"januari": time.January, "jan": time.January,
	"februari": time.February, "feb": time.February,
	"maret": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"mei":  time.May,
	"juni": time.June, "jun": time.June,
	"juli": time.July, "jul": time.July,
	"agustus": time.August, "agu": time.August, "ags": time.August, "agt": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"oktober": time.October, "okt": time.October,
	"november": time.November, "nov": time.November,
	"desember": time.December, "des": time.December,
}

// durationPatterns are tried in declaration order; only the first match is
// honored, so "2 minggu 3 hari" yields 3 days, not 2 weeks.
var durationPatterns = []struct {
	re   *regexp.Regexp
	unit string
}{
	{regexp.MustCompile(`(\d+)\s*hari`), UnitDays},
	{regexp.MustCompile(`(\d+)\s*minggu`), UnitWeeks},
	{regexp.MustCompile(`(\d+)\s*bulan`), UnitMonths},
}

var (
	// "mulai 15 september" / "mulai 15 september 2026"
	startDateRE = regexp.MustCompile(`mulai\s+(\d{1,2})\s+([a-z]+)(?:\s+(\d{4}))?`)
	// "sampai 20 oktober" / "hingga 20 oktober 2026"
	endDateRE = regexp.MustCompile(`(?:sampai|hingga)\s+(\d{1,2})\s+([a-z]+)(?:\s+(\d{4}))?`)
)

// Extract parses free-form text against a reference instant and returns the
// recognized {start, end, duration} triple. Relative markers are resolved
// against now's calendar date; absolute dates without a year pick the next
// occurrence of that day/month.
func Extract(text string, now time.Time) Info {
	lower := strings.ToLower(text)
	today := midnight(now)
	var info Info

	// Relative start markers. "hari ini" is checked before bare "hari" can
	// be misread as a duration by callers; duration matching below already
	// requires a leading number.
	switch {
	case strings.Contains(lower, "hari ini"):
		info.StartDate = &today
	case strings.Contains(lower, "lusa"):
		d := today.AddDate(0, 0, 2)
		info.StartDate = &d
	case strings.Contains(lower, "besok"):
		d := today.AddDate(0, 0, 1)
		info.StartDate = &d
	}

	// Absolute "mulai <day> <month> [<year>]" overrides a relative marker.
	if m := startDateRE.FindStringSubmatch(lower); m != nil {
		if d, ok := resolveAbsolute(m[1], m[2], m[3], today); ok {
			info.StartDate = &d
		}
	}
	if m := endDateRE.FindStringSubmatch(lower); m != nil {
		if d, ok := resolveAbsolute(m[1], m[2], m[3], today); ok {
			info.EndDate = &d
		}
	}

	// First matching duration pattern wins; pattern order is the priority,
	// not magnitude.
	for _, p := range durationPatterns {
		if m := p.re.FindStringSubmatch(lower); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
				info.Duration = &Duration{Value: v, Unit: p.unit}
			}
			break
		}
	}

	// Derive the end date from the duration when the text gave a start but
	// no explicit end.
	if info.EndDate == nil && info.StartDate != nil && info.Duration != nil {
		d := CalculateEndDate(*info.StartDate, *info.Duration)
		info.EndDate = &d
	}

	return info
}

// CalculateEndDate computes the last included day of a span starting at
// start. The span convention is inclusive: one week starting Monday ends the
// following Sunday, not the next Monday.
//
//   - days:   start + (N-1) days
//   - weeks:  start + (7N-1) days
//   - months: start + N calendar months, then -1 day
func CalculateEndDate(start time.Time, d Duration) time.Time {
	switch d.Unit {
	case UnitWeeks:
		return start.AddDate(0, 0, 7*d.Value-1)
	case UnitMonths:
		return start.AddDate(0, d.Value, 0).AddDate(0, 0, -1)
	default:
		return start.AddDate(0, 0, d.Value-1)
	}
}

// ValidateRange enforces the creation-time window rules: the start must be
// no earlier than tomorrow (relative to now), the end must come after the
// start, and the whole span may not exceed 4 calendar months. Each violation
// yields its own sentinel error; callers abort the pipeline on any of them.
func ValidateRange(start, end, now time.Time) error {
	tomorrow := midnight(now).AddDate(0, 0, 1)
	if midnight(start).Before(tomorrow) {
		return ErrStartTooEarly
	}
	if !midnight(end).After(midnight(start)) {
		return ErrEndBeforeStart
	}
	if midnight(end).After(midnight(start).AddDate(0, maxSpanMonths, 0)) {
		return ErrSpanTooLong
	}
	return nil
}

// resolveAbsolute turns (day, month-word, optional year) into a date. When
// no year is given and the date has already passed this year, the next year
// is used.
func resolveAbsolute(dayStr, monthWord, yearStr string, today time.Time) (time.Time, bool) {
	day, err := strconv.Atoi(dayStr)
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	month, ok := monthLexicon[monthWord]
	if !ok {
		return time.Time{}, false
	}
	year := today.Year()
	explicit := false
	if yearStr != "" {
		if y, err := strconv.Atoi(yearStr); err == nil {
			year, explicit = y, true
		}
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, today.Location())
	if !explicit && d.Before(today) {
		d = d.AddDate(1, 0, 0)
	}
	return d, true
}

// midnight truncates t to its calendar date.
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
