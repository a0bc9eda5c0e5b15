package dateparse

import (
	"errors"
	"testing"
	"time"
)

var ref = time.Date(2025, 8, 11, 14, 30, 0, 0, time.UTC) // a Monday afternoon

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExtract_RelativeMarkers(t *testing.T) {
	cases := map[string]time.Time{
		"mau mulai olahraga hari ini": date(2025, 8, 11),
		"belajar gitar besok":         date(2025, 8, 12),
		"mulai diet lusa":             date(2025, 8, 13),
	}
	for text, want := range cases {
		info := Extract(text, ref)
		if info.StartDate == nil || !info.StartDate.Equal(want) {
			t.Errorf("Extract(%q).StartDate = %v; want %v", text, info.StartDate, want)
		}
	}
}

func TestExtract_AbsoluteStartDate(t *testing.T) {
	info := Extract("mulai 15 september belajar bahasa jepang", ref)
	if info.StartDate == nil || !info.StartDate.Equal(date(2025, 9, 15)) {
		t.Fatalf("StartDate = %v; want 2025-09-15", info.StartDate)
	}

	// A passed date without a year rolls over to the next occurrence.
	info = Extract("mulai 1 januari lari pagi", ref)
	if info.StartDate == nil || !info.StartDate.Equal(date(2026, 1, 1)) {
		t.Fatalf("StartDate = %v; want 2026-01-01", info.StartDate)
	}

	// Abbreviated month names resolve through the lexicon.
	info = Extract("mulai 3 okt nulis jurnal", ref)
	if info.StartDate == nil || !info.StartDate.Equal(date(2025, 10, 3)) {
		t.Fatalf("StartDate = %v; want 2025-10-03", info.StartDate)
	}
}

func TestExtract_ExplicitEndDate(t *testing.T) {
	info := Extract("mulai 1 september sampai 20 oktober", ref)
	if info.EndDate == nil || !info.EndDate.Equal(date(2025, 10, 20)) {
		t.Fatalf("EndDate = %v; want 2025-10-20", info.EndDate)
	}
}

func TestExtract_DurationPriorityIsPatternOrder(t *testing.T) {
	// Both units present: "hari" wins because its pattern is tried first.
	info := Extract("latihan 2 minggu 3 hari", ref)
	if info.Duration == nil || info.Duration.Unit != UnitDays || info.Duration.Value != 3 {
		t.Fatalf("Duration = %+v; want 3 days", info.Duration)
	}

	info = Extract("program 6 minggu", ref)
	if info.Duration == nil || info.Duration.Unit != UnitWeeks || info.Duration.Value != 6 {
		t.Fatalf("Duration = %+v; want 6 weeks", info.Duration)
	}

	info = Extract("target 2 bulan", ref)
	if info.Duration == nil || info.Duration.Unit != UnitMonths || info.Duration.Value != 2 {
		t.Fatalf("Duration = %+v; want 2 months", info.Duration)
	}
}

func TestExtract_DurationDerivesEndDate(t *testing.T) {
	info := Extract("mulai olahraga besok selama 1 minggu", ref)
	if info.StartDate == nil || info.EndDate == nil {
		t.Fatalf("expected both dates, got %+v", info)
	}
	// besok = 2025-08-12; 1 week inclusive ends 2025-08-18.
	if !info.EndDate.Equal(date(2025, 8, 18)) {
		t.Fatalf("EndDate = %v; want 2025-08-18", info.EndDate)
	}
}

func TestExtract_NoHints(t *testing.T) {
	info := Extract("jadi lebih produktif", ref)
	if info.StartDate != nil || info.EndDate != nil || info.Duration != nil {
		t.Fatalf("expected empty Info, got %+v", info)
	}
}

func TestCalculateEndDate_InclusiveSpans(t *testing.T) {
	start := date(2025, 8, 11)
	cases := []struct {
		d    Duration
		want time.Time
	}{
		{Duration{Value: 1, Unit: UnitDays}, date(2025, 8, 11)},
		{Duration{Value: 10, Unit: UnitDays}, date(2025, 8, 20)},
		{Duration{Value: 1, Unit: UnitWeeks}, date(2025, 8, 17)}, // 7 days inclusive
		{Duration{Value: 2, Unit: UnitWeeks}, date(2025, 8, 24)},
		{Duration{Value: 1, Unit: UnitMonths}, date(2025, 9, 10)},
		{Duration{Value: 3, Unit: UnitMonths}, date(2025, 11, 10)},
	}
	for _, c := range cases {
		if got := CalculateEndDate(start, c.d); !got.Equal(c.want) {
			t.Errorf("CalculateEndDate(%v, %+v) = %v; want %v", start, c.d, got, c.want)
		}
	}
}

func TestValidateRange(t *testing.T) {
	tomorrow := date(2025, 8, 12)

	if err := ValidateRange(tomorrow, tomorrow.AddDate(0, 0, 6), ref); err != nil {
		t.Fatalf("valid range rejected: %v", err)
	}

	// Exactly four months out is still valid; one more day is not.
	if err := ValidateRange(tomorrow, tomorrow.AddDate(0, 4, 0), ref); err != nil {
		t.Fatalf("4-month boundary rejected: %v", err)
	}
	if err := ValidateRange(tomorrow, tomorrow.AddDate(0, 4, 1), ref); !errors.Is(err, ErrSpanTooLong) {
		t.Fatalf("expected ErrSpanTooLong, got %v", err)
	}

	if err := ValidateRange(date(2025, 8, 11), tomorrow, ref); !errors.Is(err, ErrStartTooEarly) {
		t.Fatalf("expected ErrStartTooEarly, got %v", err)
	}
	if err := ValidateRange(tomorrow, tomorrow, ref); !errors.Is(err, ErrEndBeforeStart) {
		t.Fatalf("expected ErrEndBeforeStart, got %v", err)
	}
}
