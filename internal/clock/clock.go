// Package clock resolves wall-clock time in IST and parses schedule times.
// Every caller that needs "now" takes it from a Clock so tests can drive
// evaluation at arbitrary instants.
package clock

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// IST is the fixed civil timezone for all day/hour computations,
// regardless of the host's locale.
var IST = time.FixedZone("IST", int((5*time.Hour + 30*time.Minute).Seconds()))

// Clock provides the current instant in IST.
type Clock interface {
	Now() time.Time
}

// System is a Clock backed by the real wall clock.
type System struct{}

// Now returns the current time in IST.
func (System) Now() time.Time {
	return time.Now().In(IST)
}

// Manual is a settable Clock for tests.
type Manual struct {
	Current time.Time
}

// NewManual creates a Manual clock fixed at t (converted to IST).
func NewManual(t time.Time) *Manual {
	return &Manual{Current: t.In(IST)}
}

// Now returns the manually set instant.
func (m *Manual) Now() time.Time {
	return m.Current
}

// Set moves the manual clock to t.
func (m *Manual) Set(t time.Time) {
	m.Current = t.In(IST)
}

// Advance moves the manual clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.Current = m.Current.Add(d)
}

// slotHours maps the coarse schedule slots to their representative hour.
var slotHours = map[string]float64{
	"morning":   8,  // 8 AM
	"afternoon": 14, // 2 PM
	"evening":   20, // 8 PM
	"night":     21, // 9 PM
}

var timePattern = regexp.MustCompile(`(\d{1,2}):?(\d{0,2})?\s*(?i:(am|pm))?`)

// ParseTimeOfDay maps a schedule string to a decimal hour of day in [0, 24).
// It accepts slot names (morning, afternoon, evening, night) and clock
// strings like "8:00 AM", "14:00" or "2:30 PM". The second return is false
// when the input cannot be parsed; callers must treat that as "never due".
func ParseTimeOfDay(s string) (float64, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	if trimmed == "" {
		return 0, false
	}

	if h, ok := slotHours[trimmed]; ok {
		return h, true
	}

	match := timePattern.FindStringSubmatch(s)
	if match == nil || match[1] == "" {
		return 0, false
	}

	hours, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	minutes := 0
	if match[2] != "" {
		minutes, err = strconv.Atoi(match[2])
		if err != nil {
			return 0, false
		}
	}

	// 12-hour wraparound: 12 AM is midnight, 12 PM is noon.
	switch strings.ToLower(match[3]) {
	case "pm":
		if hours < 12 {
			hours += 12
		}
	case "am":
		if hours == 12 {
			hours = 0
		}
	}

	return float64(hours) + float64(minutes)/60, true
}

// HourOfDay returns t's decimal hour in IST (e.g. 14.5 for 2:30 PM).
func HourOfDay(t time.Time) float64 {
	t = t.In(IST)
	return float64(t.Hour()) + float64(t.Minute())/60
}

// SameDay reports whether a and b fall on the same IST calendar day.
func SameDay(a, b time.Time) bool {
	a, b = a.In(IST), b.In(IST)
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// StartOfDay returns midnight of t's IST calendar day.
func StartOfDay(t time.Time) time.Time {
	t = t.In(IST)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, IST)
}

// DayKey returns a stable identifier for t's IST calendar day,
// used in alert dedup keys.
func DayKey(t time.Time) string {
	return t.In(IST).Format("2006-01-02")
}

// Greeting returns the salutation for t's IST hour.
func Greeting(t time.Time) string {
	hour := t.In(IST).Hour()
	switch {
	case hour >= 5 && hour < 12:
		return "Good Morning"
	case hour >= 12 && hour < 17:
		return "Good Afternoon"
	case hour >= 17 && hour < 21:
		return "Good Evening"
	default:
		return "Good Night"
	}
}

// TimeLabel categorizes a schedule string into a period label
// (Morning, Afternoon, Evening, Night). Unparseable strings are returned
// verbatim so free-text schedules still read naturally in messages.
func TimeLabel(s string) string {
	if s == "" {
		return "Scheduled"
	}
	hour, ok := ParseTimeOfDay(s)
	if !ok {
		return s
	}
	switch {
	case hour >= 5 && hour < 12:
		return "Morning"
	case hour >= 12 && hour < 17:
		return "Afternoon"
	case hour >= 17 && hour < 21:
		return "Evening"
	default:
		return "Night"
	}
}

// FormatTime renders t as a 12-hour clock string, e.g. "2:30 PM".
func FormatTime(t time.Time) string {
	return t.In(IST).Format("3:04 PM")
}

// FormatDate renders t as a short date string, e.g. "30 Jan 2026".
func FormatDate(t time.Time) string {
	return t.In(IST).Format("2 Jan 2006")
}

// DisplayClock renders t as the live header clock string.
func DisplayClock(t time.Time) string {
	return fmt.Sprintf("%s IST", t.In(IST).Format("3:04:05 PM"))
}
