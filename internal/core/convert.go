package core

// convert.go turns the messy text of exported appointment books into typed
// values:
//   - Dates in ISO, US and European order, including the Croatian "5.3.2024."
//     trailing dot and spreadsheet serial numbers
//   - Times with colon or dot separators and 12-hour clocks
//   - Service lists joined by commas, semicolons, pipes or plus signs
//   - Emails and phone numbers in comparable form
//
// Parse functions report ok=false for empty or unparseable input.

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "2.1.06", "02.01.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"2.1.2006", "02.01.2006",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006",
		"Jan 2, 2006", "2 Jan 2006", "January 2, 2006", "2 January 2006",
		"20060102",
	}
	timeLayouts = []string{
		"15:04", "15:04:05", "15.04", "15.04.05",
		"3:04 PM", "3:04PM", "3:04:05 PM", "3 PM", "3PM",
	}
)

// excelSerialRange bounds numbers read as spreadsheet date serials
// (1927-05-18 to 2173-10-14).
const (
	minExcelSerial = 10000
	maxExcelSerial = 100000
)

// ParseDate parses a calendar date. Time-of-day parts are not accepted.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	// "5. 3. 2024." is how Croatian and Serbian write dates
	compact := strings.TrimSuffix(strings.ReplaceAll(s, ". ", "."), ".")

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, compact); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, compact); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= minExcelSerial && serial < maxExcelSerial {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}

	return time.Time{}, false
}

// ParseTimeOfDay parses a wall-clock time and returns the offset from midnight.
func ParseTimeOfDay(s string) (time.Duration, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	s = strings.NewReplacer("A.M.", "AM", "P.M.", "PM").Replace(s)

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, true
		}
	}
	return 0, false
}

// ParseDurationMinutes parses a positive whole number of minutes.
func ParseDurationMinutes(s string) (int, bool) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// SplitServices splits a cell naming one or more services. Duplicate names
// within the cell are dropped.
func SplitServices(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ',', ';', '|', '+', '\n', '\r':
			return true
		}
		return false
	})

	var tokens []string
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		key := NormalizeName(p)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		tokens = append(tokens, p)
	}
	return tokens
}

// NormalizeEmail lower-cases an address. Values without an @ are dropped.
func NormalizeEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "mailto:")
	if !strings.Contains(s, "@") || strings.ContainsAny(s, " \t") {
		return ""
	}
	return s
}

// NormalizePhone reduces a number to its digits with an optional leading +.
// A 00 international prefix becomes +. Numbers outside 6-15 digits are dropped.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var b strings.Builder
	plus := strings.HasPrefix(s, "+")
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if !plus && strings.HasPrefix(digits, "00") {
		plus = true
		digits = digits[2:]
	}

	if len(digits) < 6 || len(digits) > 15 {
		return ""
	}
	if plus {
		return "+" + digits
	}
	return digits
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}
