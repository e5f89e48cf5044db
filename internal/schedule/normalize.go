package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CanonicalTime is the normalized form of a time expression.
// Value is a bare date (2006-01-02) when AllDay is true, otherwise a
// timezone-naive local datetime (2006-01-02T15:04:05).
type CanonicalTime struct {
	Value  string
	AllDay bool
}

// Resolve parses the canonical value into a concrete instant in the named
// timezone. Free-text values that passed through Normalize unrecognized fail
// here, which is where callers apply their own format validation.
func (ct CanonicalTime) Resolve(timezone string) (time.Time, error) {
	loc := time.UTC
	if timezone != "" {
		if l, err := time.LoadLocation(timezone); err == nil {
			loc = l
		}
	}
	t, _, err := parseCanonical(ct.Value, loc)
	return t, err
}

var (
	relativeDaysRe = regexp.MustCompile(`^(?:in\s+)?(\d+)\s+days?\b`)
	isoDateTimeRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[Tt]\d{2}:\d{2}(?::\d{2})?(?:\.\d+)?(?:[Zz]|[+-]\d{2}:?\d{2})?$`)

	// H(:MM)? with an optional am/pm marker, periods tolerated ("8 p.m.").
	timeOfDayRe = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*([ap])\.?m\.?\b|\b(\d{1,2})(?::(\d{2}))?\b`)
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Normalize converts a time expression (ISO-8601 or natural language) into a
// canonical local timestamp. The timezone name is used only to resolve the
// current date for relative phrases; it defaults to UTC when empty or invalid.
//
// Normalize never fails: input that matches no recognized pattern is returned
// unchanged, with the all-day flag set unless the value has an ISO datetime
// shape. This keeps already-canonical values stable, so normalization is
// idempotent.
func Normalize(input, timezone string) CanonicalTime {
	return NormalizeAt(input, timezone, time.Now())
}

// NormalizeAt is Normalize with an explicit reference instant, which relative
// phrases ("today", "friday") are resolved against.
func NormalizeAt(input, timezone string, now time.Time) CanonicalTime {
	trimmed := strings.TrimSpace(input)
	lower := strings.ToLower(trimmed)

	loc := time.UTC
	if timezone != "" {
		if l, err := time.LoadLocation(timezone); err == nil {
			loc = l
		}
	}
	today := now.In(loc)

	var anchor time.Time
	var rest string
	matched := true

	switch {
	case strings.HasPrefix(lower, "today"):
		anchor = today
		rest = lower[len("today"):]
	case strings.HasPrefix(lower, "tomorrow"):
		anchor = today.AddDate(0, 0, 1)
		rest = lower[len("tomorrow"):]
	case strings.HasPrefix(lower, "yesterday"):
		anchor = today.AddDate(0, 0, -1)
		rest = lower[len("yesterday"):]
	default:
		if m := relativeDaysRe.FindStringSubmatch(lower); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil && n >= 0 {
				anchor = today.AddDate(0, 0, n)
				rest = lower[len(m[0]):]
			} else {
				matched = false
			}
		} else if day, restAfter, ok := matchWeekday(lower); ok {
			anchor = nextWeekday(today, day)
			rest = restAfter
		} else {
			matched = false
		}
	}

	if !matched {
		// ISO shapes and unrecognized free text both pass through unchanged.
		return CanonicalTime{
			Value:  trimmed,
			AllDay: !isoDateTimeRe.MatchString(trimmed),
		}
	}

	date := anchor.Format("2006-01-02")
	if hour, minute, ok := extractTimeOfDay(rest); ok {
		return CanonicalTime{
			Value:  fmt.Sprintf("%sT%02d:%02d:00", date, hour, minute),
			AllDay: false,
		}
	}
	return CanonicalTime{Value: date, AllDay: true}
}

// matchWeekday matches a leading weekday name and returns the remainder.
func matchWeekday(lower string) (time.Weekday, string, bool) {
	for name, day := range weekdayNames {
		if strings.HasPrefix(lower, name) {
			rest := lower[len(name):]
			if rest == "" || rest[0] == ' ' || rest[0] == ',' {
				return day, rest, true
			}
		}
	}
	return time.Sunday, "", false
}

// nextWeekday returns the next occurrence of day strictly after today.
// When today already is the named weekday, the occurrence seven days out is
// returned; same-day phrasing never resolves to "today".
func nextWeekday(today time.Time, day time.Weekday) time.Time {
	delta := (int(day) - int(today.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return today.AddDate(0, 0, delta)
}

// extractTimeOfDay finds a time-of-day expression in s. Hour 12 with "pm"
// stays 12, hour 12 with "am" becomes 0, other "pm" hours add 12. A 24-hour
// value without a meridiem marker is taken verbatim.
func extractTimeOfDay(s string) (hour, minute int, ok bool) {
	m := timeOfDayRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}

	var hourStr, minStr, meridiem string
	if m[1] != "" {
		hourStr, minStr, meridiem = m[1], m[2], m[3]
	} else {
		hourStr, minStr = m[4], m[5]
	}

	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		return 0, 0, false
	}
	if minStr != "" {
		minute, err = strconv.Atoi(minStr)
		if err != nil {
			return 0, 0, false
		}
	}

	switch meridiem {
	case "p":
		if hour > 12 {
			return 0, 0, false
		}
		if hour != 12 {
			hour += 12
		}
	case "a":
		if hour > 12 {
			return 0, 0, false
		}
		if hour == 12 {
			hour = 0
		}
	}

	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
