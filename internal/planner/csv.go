// CSV step codec.
//
// For long plans the service is asked for CSV rows instead of JSON to keep
// responses small:
//
//	day,date,startTime,endTime,title,description,emoji,percent
//
// Parsing tolerates quoted fields with embedded commas/quotes (standard
// doubled-quote escaping), blank lines, leading-# comment lines, and a
// literal header line. Validation runs after parsing and checks every row
// independently, returning all violations together rather than stopping at
// the first.
package planner

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// stepFieldCount is the number of columns in a step row.
const stepFieldCount = 8

// StepRow is one parsed CSV schedule step. Date/time fields stay as raw
// strings so the validator can report exactly what the model produced.
type StepRow struct {
	Day         int    // 1-based day index; -1 when non-numeric
	Date        string // YYYY-MM-DD
	StartTime   string // HH:MM, 24-hour
	EndTime     string // HH:MM, 24-hour
	Title       string
	Description string
	Emoji       string
	Percent     int // cumulative percent; -1 when non-numeric
}

// ParseStepsCSV decodes the CSV payload into step rows. Blank lines,
// comment lines, and a header line are skipped. A malformed CSV structure
// (bad quoting, wrong column count) is a hard error; field-level problems
// are left for ValidateStepRows.
func ParseStepsCSV(text string) ([]StepRow, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comment = '#'
	r.FieldsPerRecord = -1 // column count checked per record below
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv tidak valid: %w", err)
	}

	rows := make([]StepRow, 0, len(records))
	for i, rec := range records {
		if isHeaderRecord(rec) {
			continue
		}
		if len(rec) != stepFieldCount {
			return nil, fmt.Errorf("baris %d: jumlah kolom %d, harus %d", i+1, len(rec), stepFieldCount)
		}
		rows = append(rows, StepRow{
			Day:         atoiOrNeg(rec[0]),
			Date:        strings.TrimSpace(rec[1]),
			StartTime:   strings.TrimSpace(rec[2]),
			EndTime:     strings.TrimSpace(rec[3]),
			Title:       strings.TrimSpace(rec[4]),
			Description: strings.TrimSpace(rec[5]),
			Emoji:       strings.TrimSpace(rec[6]),
			Percent:     atoiOrNeg(rec[7]),
		})
	}
	return rows, nil
}

// ValidateStepRows checks every row independently and returns the complete
// list of distinct violations. An empty slice means the rows are fit for
// persistence. Checked rules:
//
//   - dates must be unique across rows
//   - date must parse as YYYY-MM-DD
//   - start/end time must parse as HH:MM (24-hour)
//   - percent must be numeric and non-decreasing in row order
//   - title, description, and emoji must be present
//   - the final row's percent must be exactly 100
func ValidateStepRows(rows []StepRow) []string {
	return ValidateStepRowsTo(rows, 100)
}

// ValidateStepRowsTo is ValidateStepRows with a caller-chosen final percent.
// Batched generation uses it: an intermediate date window ends at the
// window's cumulative target rather than at 100.
func ValidateStepRowsTo(rows []StepRow, finalPercent int) []string {
	var errs []string
	if len(rows) == 0 {
		return []string{"tidak ada baris jadwal"}
	}

	seenDates := make(map[string]int, len(rows))
	prevPercent := -1
	for i, row := range rows {
		line := i + 1

		if _, err := time.Parse("2006-01-02", row.Date); err != nil {
			errs = append(errs, fmt.Sprintf("baris %d: tanggal tidak valid: %q", line, row.Date))
		} else if first, dup := seenDates[row.Date]; dup {
			errs = append(errs, fmt.Sprintf("baris %d: tanggal duplikat %s (sama dengan baris %d)", line, row.Date, first))
		} else {
			seenDates[row.Date] = line
		}

		if !validClock(row.StartTime) {
			errs = append(errs, fmt.Sprintf("baris %d: waktu mulai tidak valid: %q", line, row.StartTime))
		}
		if !validClock(row.EndTime) {
			errs = append(errs, fmt.Sprintf("baris %d: waktu selesai tidak valid: %q", line, row.EndTime))
		}

		if row.Title == "" {
			errs = append(errs, fmt.Sprintf("baris %d: judul kosong", line))
		}
		if row.Description == "" {
			errs = append(errs, fmt.Sprintf("baris %d: deskripsi kosong", line))
		}
		if row.Emoji == "" {
			errs = append(errs, fmt.Sprintf("baris %d: emoji kosong", line))
		}

		switch {
		case row.Percent < 0 || row.Percent > 100:
			errs = append(errs, fmt.Sprintf("baris %d: persen tidak valid", line))
		case row.Percent < prevPercent:
			errs = append(errs, fmt.Sprintf("baris %d: persen menurun (%d setelah %d)", line, row.Percent, prevPercent))
		default:
			prevPercent = row.Percent
		}
	}

	if last := rows[len(rows)-1]; last.Percent != finalPercent && last.Percent >= 0 {
		errs = append(errs, fmt.Sprintf("baris terakhir: persen harus %d", finalPercent))
	}
	return errs
}

// EncodeStepsCSV renders rows back to the wire format, quoting fields as
// needed. Used by tests and the mock service harness.
func EncodeStepsCSV(rows []StepRow) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	for _, row := range rows {
		_ = w.Write([]string{
			strconv.Itoa(row.Day),
			row.Date,
			row.StartTime,
			row.EndTime,
			row.Title,
			row.Description,
			row.Emoji,
			strconv.Itoa(row.Percent),
		})
	}
	w.Flush()
	return sb.String()
}

// isHeaderRecord reports whether rec is the literal CSV header line.
func isHeaderRecord(rec []string) bool {
	return len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "day")
}

// validClock reports whether s is an HH:MM 24-hour clock value.
func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

// atoiOrNeg parses a trimmed integer, mapping failures to -1.
func atoiOrNeg(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return -1
	}
	return n
}
