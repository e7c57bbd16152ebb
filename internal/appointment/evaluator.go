package appointment

import (
	"fmt"
	"math"
	"time"

	"github.com/carepulse/carepulse/internal/clock"
	"github.com/carepulse/carepulse/internal/notify"
)

// DueSoonWindow is how far ahead an appointment counts as imminent.
const DueSoonWindow = 2 * time.Hour

// IsToday reports whether the appointment falls on now's IST day.
func IsToday(a *Appointment, now time.Time) bool {
	return clock.SameDay(a.StartsAt, now)
}

// IsTomorrow reports whether the appointment falls on the IST day
// after now's.
func IsTomorrow(a *Appointment, now time.Time) bool {
	return clock.SameDay(a.StartsAt, clock.StartOfDay(now).AddDate(0, 0, 1))
}

// DueSoon returns the time until the appointment and whether it starts
// within the due-soon window. Appointments already started are not due
// soon.
func DueSoon(a *Appointment, now time.Time) (time.Duration, bool) {
	delta := a.StartsAt.Sub(now)
	return delta, delta > 0 && delta <= DueSoonWindow
}

// DisplayName returns the best human label for the appointment.
func DisplayName(a *Appointment) string {
	if a.Doctor != "" {
		return a.Doctor
	}
	if a.Title != "" {
		return a.Title
	}
	return "Doctor appointment"
}

// feedTitle is the headline for feed items. Unlike DisplayName it
// prefers the appointment's own title over the doctor name.
func feedTitle(a *Appointment) string {
	if a.Title != "" {
		return a.Title
	}
	if a.Doctor != "" {
		return a.Doctor
	}
	return "Doctor appointment"
}

// TodayNotification builds the feed item for a same-day appointment.
func TodayNotification(a *Appointment) notify.Notification {
	return notify.Notification{
		ID:       "apt-today-" + a.ID,
		SourceID: a.ID,
		Kind:     notify.KindAppointmentToday,
		Priority: notify.PriorityAppointmentToday,
		Icon:     "calendar",
		Title:    feedTitle(a),
		When:     a.StartsAt,
		Message:  fmt.Sprintf("Today: %s at %s", DisplayName(a), clock.FormatTime(a.StartsAt)),
	}
}

// TomorrowNotification builds the feed item for a next-day appointment.
func TomorrowNotification(a *Appointment) notify.Notification {
	return notify.Notification{
		ID:       "apt-tomorrow-" + a.ID,
		SourceID: a.ID,
		Kind:     notify.KindAppointmentTomorrow,
		Priority: notify.PriorityAppointmentTomorrow,
		Icon:     "calendar",
		Title:    feedTitle(a),
		When:     a.StartsAt,
		Message:  fmt.Sprintf("Tomorrow: %s at %s", DisplayName(a), clock.FormatTime(a.StartsAt)),
	}
}

// DueSoonMessage renders the imminent-appointment alert text, with the
// remaining time rounded to whole minutes.
func DueSoonMessage(a *Appointment, until time.Duration) string {
	minutes := int(math.Round(until.Minutes()))
	return fmt.Sprintf("%s at %s (in %d minutes)", DisplayName(a), clock.FormatTime(a.StartsAt), minutes)
}
