package core

// convert.go turns untyped cell values into the strings, dates, and integers
// the validation engine checks. Cell values arrive as strings (CSV, XLSX),
// json.Number, bool, nil, or []any (JSON).

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultDateFormat is the date pattern used when none is configured.
const DefaultDateFormat = "YYYY-MM-DD"

// TwoDigitYearPivot defines how 2-digit years are interpreted: years more
// than this far in the future are moved back a century.
var TwoDigitYearPivot = 20

// Alternate layouts are accepted with a warning when a value does not match
// the configured date format.
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "01-02-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006",
		"2006-01-02T15:04:05Z07:00", "2006-01-02 15:04:05",
		"20060102",
	}
)

var datePatternReplacer = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MMMM", "January",
	"MMM", "Jan",
	"MM", "01",
	"DD", "02",
	"M", "1",
	"D", "2",
)

// DateLayout converts a pattern such as "YYYY-MM-DD" or "MM/DD/YYYY" to a Go
// time layout.
func DateLayout(pattern string) string {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		pattern = DefaultDateFormat
	}
	return datePatternReplacer.Replace(pattern)
}

// parseDate parses s with layout first, then with the alternate layouts.
// exact reports whether layout itself matched.
func parseDate(s, layout string) (t time.Time, exact bool, ok bool) {
	if s == "" {
		return time.Time{}, false, false
	}

	if t, err := time.Parse(layout, s); err == nil {
		return t, true, true
	}

	for _, alt := range fourDigitYearLayouts {
		if t, err := time.Parse(alt, s); err == nil {
			return t, false, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, alt := range twoDigitYearLayouts {
		if t, err := time.Parse(alt, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, false, true
		}
	}

	return time.Time{}, false, false
}

// parseInteger accepts whole numbers, including "3.0" style spreadsheet output.
func parseInteger(v any) (int, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		f, err := n.Float64()
		if err != nil || f != float64(int64(f)) {
			return 0, fmt.Errorf("not a whole number")
		}
		return int(f), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("not a whole number")
		}
		return int(n), nil
	case int:
		return n, nil
	}

	s := cellString(v)
	if i, err := strconv.Atoi(s); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, fmt.Errorf("not a whole number")
	}
	return int(f), nil
}

// cellString renders a cell value as text.
func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := strings.TrimSpace(cellString(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}

// isBlank reports whether a cell carries no usable value.
func isBlank(v any) bool {
	if list, ok := v.([]any); ok {
		return len(list) == 0
	}
	return strings.TrimSpace(cellString(v)) == ""
}

// splitList splits a list cell on commas or semicolons.
func splitList(v any) []string {
	if list, ok := v.([]any); ok {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s := strings.TrimSpace(cellString(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	fields := strings.FieldsFunc(cellString(v), func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if s := strings.TrimSpace(f); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// trimValue trims surrounding whitespace from strings, including list items.
func trimValue(v any) any {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = trimValue(item)
		}
		return out
	default:
		return v
	}
}
