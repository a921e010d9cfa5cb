// Package dateparser coerces the loosely formatted date text found in
// patient and session records into calendar dates.
package dateparser

import (
	"fmt"
	"strings"
	"time"
)

// DateParseErrorType represents the type of date parsing error.
type DateParseErrorType string

const (
	Empty         DateParseErrorType = "EMPTY"
	InvalidFormat DateParseErrorType = "INVALID_FORMAT"
)

// DateParseError represents an error that occurred during date parsing.
type DateParseError struct {
	Type  DateParseErrorType
	Input string
}

func (e *DateParseError) Error() string {
	switch e.Type {
	case Empty:
		return "empty date"
	case InvalidFormat:
		return fmt.Sprintf("invalid date: %q does not match any known layout", e.Input)
	default:
		return fmt.Sprintf("date parse error: %q", e.Input)
	}
}

// dayLayouts are tried, in order, against the date portion of the input.
// Single-digit layout elements also accept zero-padded values.
var dayLayouts = []string{
	"2006-1-2",
	"2/1/2006",
	"2-1-2006",
	"2006/1/2",
}

// isoLayouts are tried against the full input, after a trailing "Z" has
// been rewritten to an explicit offset.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Parse converts text to a date at midnight UTC.
//
// Accepted inputs are the common day layouts (YYYY-MM-DD, DD/MM/YYYY,
// DD-MM-YYYY, YYYY/MM/DD) optionally followed by a time, and ISO-8601
// timestamps with an optional time and zone suffix.
func Parse(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, &DateParseError{Type: Empty}
	}

	head := text
	if idx := strings.IndexAny(text, " T"); idx > 0 {
		head = text[:idx]
	}
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, head); err == nil {
			return dateOf(t), nil
		}
	}

	iso := text
	if strings.HasSuffix(iso, "Z") || strings.HasSuffix(iso, "z") {
		iso = iso[:len(iso)-1] + "+00:00"
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, iso); err == nil {
			return dateOf(t), nil
		}
	}

	return time.Time{}, &DateParseError{Type: InvalidFormat, Input: text}
}

// ParseValue accepts the raw values a collaborator row may carry: strings,
// byte slices and time.Time. ok is false for anything unparseable.
func ParseValue(v any) (time.Time, bool) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if val.IsZero() {
			return time.Time{}, false
		}
		return dateOf(val), true
	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return ParseValue(*val)
	case []byte:
		return ParseValue(string(val))
	case string:
		t, err := Parse(val)
		return t, err == nil
	default:
		t, err := Parse(fmt.Sprint(val))
		return t, err == nil
	}
}

// FormatBR renders a date value as DD/MM/YYYY. Unparseable input is
// returned trimmed and otherwise untouched.
func FormatBR(v any) string {
	if t, ok := ParseValue(v); ok {
		return t.Format("02/01/2006")
	}
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// FormatISO renders a date value as YYYY-MM-DD, or "" when unparseable.
func FormatISO(v any) string {
	if t, ok := ParseValue(v); ok {
		return t.Format("2006-01-02")
	}
	return ""
}

// Age returns the age in whole years on the day of now. ok is false when
// the birth date is unparseable or the result falls outside 0..130.
func Age(birth any, now time.Time) (int, bool) {
	born, ok := ParseValue(birth)
	if !ok {
		return 0, false
	}
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	if age < 0 || age > 130 {
		return 0, false
	}
	return age, true
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
