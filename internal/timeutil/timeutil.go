package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var defaultLocation = time.UTC

// DateLayout is the canonical calendar-date format.
const DateLayout = "2006-01-02"

// ResolveLocation returns the named location with UTC fallback.
// The second return value reports whether the fallback was used.
func ResolveLocation(timezone string) (*time.Location, bool) {
	if timezone == "" {
		return defaultLocation, true
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return defaultLocation, true
	}
	return loc, false
}

// ParseDateTime parses a datetime in either RFC3339 (with explicit offset) or local layouts in loc.
func ParseDateTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("time value is required")
	}

	// If timezone/offset exists, preserve it.
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}

	if loc == nil {
		loc = defaultLocation
	}

	layouts := []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time: %s", value)
}

// ParseDateWithDefaultTime parses a date-only string in loc at a default clock time.
func ParseDateWithDefaultTime(value string, loc *time.Location, defaultHour, defaultMinute int) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("date value is required")
	}
	if loc == nil {
		loc = defaultLocation
	}

	d, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse date: %s", value)
	}

	return time.Date(d.Year(), d.Month(), d.Day(), defaultHour, defaultMinute, 0, 0, loc), nil
}

// Matches "14:30", "9:00", "9h", "9h30", "14h00", "2pm", "2:30 pm", "10am".
var clockPattern = regexp.MustCompile(`^(\d{1,2})(?:[:h](\d{2})?)?\s*(am|pm)?$`)

// ParseClock parses a wall-clock time of day and returns hour and minute.
func ParseClock(value string) (int, int, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.TrimPrefix(v, "às ")
	v = strings.TrimPrefix(v, "as ")
	v = strings.TrimPrefix(v, "at ")
	v = strings.TrimSuffix(v, "hs")
	v = strings.TrimSpace(v)

	m := clockPattern.FindStringSubmatch(v)
	if m == nil {
		return 0, 0, fmt.Errorf("unable to parse clock time: %s", value)
	}

	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}

	switch m[3] {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}

	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("clock time out of range: %s", value)
	}
	return hour, minute, nil
}

// CombineDateAndClock resolves a free-text date expression relative to now and
// places the given wall-clock time on it in loc.
func CombineDateAndClock(dateExpr, clock string, now time.Time, loc *time.Location) (time.Time, Resolution, error) {
	if loc == nil {
		loc = defaultLocation
	}

	res := ResolveDate(dateExpr, now.In(loc))
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, res, err
	}

	d := res.Date
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc), res, nil
}
