package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/carepulse/carepulse/internal/clock"
	"github.com/carepulse/carepulse/internal/notify"
)

func istTime(day, hour, min int) time.Time {
	return time.Date(2026, time.March, day, hour, min, 0, 0, clock.IST)
}

func TestIsTodayAndTomorrow(t *testing.T) {
	now := istTime(10, 9, 0)

	today := &Appointment{StartsAt: istTime(10, 15, 0)}
	tomorrow := &Appointment{StartsAt: istTime(11, 10, 0)}
	later := &Appointment{StartsAt: istTime(12, 10, 0)}

	assert.True(t, IsToday(today, now))
	assert.False(t, IsToday(tomorrow, now))

	assert.True(t, IsTomorrow(tomorrow, now))
	assert.False(t, IsTomorrow(today, now))
	assert.False(t, IsTomorrow(later, now))

	// Late evening: tomorrow is still the next IST calendar day.
	lateNow := istTime(10, 23, 30)
	assert.True(t, IsTomorrow(tomorrow, lateNow))
}

func TestDueSoon(t *testing.T) {
	now := istTime(10, 9, 0)

	tests := []struct {
		name     string
		startsAt time.Time
		dueSoon  bool
	}{
		{"90 minutes ahead", istTime(10, 10, 30), true},
		{"exactly 2 hours ahead", istTime(10, 11, 0), true},
		{"beyond the window", istTime(10, 11, 1), false},
		{"already started", istTime(10, 8, 59), false},
		{"starting this instant", istTime(10, 9, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, due := DueSoon(&Appointment{StartsAt: tt.startsAt}, now)
			assert.Equal(t, tt.dueSoon, due)
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Dr. Rao", DisplayName(&Appointment{Doctor: "Dr. Rao", Title: "Checkup"}))
	assert.Equal(t, "Checkup", DisplayName(&Appointment{Title: "Checkup"}))
	assert.Equal(t, "Doctor appointment", DisplayName(&Appointment{}))
}

func TestFeedTitle(t *testing.T) {
	assert.Equal(t, "Checkup", feedTitle(&Appointment{Doctor: "Dr. Rao", Title: "Checkup"}))
	assert.Equal(t, "Dr. Rao", feedTitle(&Appointment{Doctor: "Dr. Rao"}))
	assert.Equal(t, "Doctor appointment", feedTitle(&Appointment{}))
}

func TestNotifications(t *testing.T) {
	a := &Appointment{ID: "apt1", Title: "Checkup", Doctor: "Dr. Rao", StartsAt: istTime(10, 14, 30)}

	today := TodayNotification(a)
	assert.Equal(t, "apt-today-apt1", today.ID)
	assert.Equal(t, notify.KindAppointmentToday, today.Kind)
	assert.Equal(t, notify.PriorityAppointmentToday, today.Priority)
	assert.Equal(t, "Checkup", today.Title)
	assert.Equal(t, "Today: Dr. Rao at 2:30 PM", today.Message)

	tomorrow := TomorrowNotification(a)
	assert.Equal(t, "apt-tomorrow-apt1", tomorrow.ID)
	assert.Equal(t, notify.KindAppointmentTomorrow, tomorrow.Kind)
	assert.Equal(t, notify.PriorityAppointmentTomorrow, tomorrow.Priority)
	assert.Equal(t, "Checkup", tomorrow.Title)
	assert.Equal(t, "Tomorrow: Dr. Rao at 2:30 PM", tomorrow.Message)
}

func TestDueSoonMessage(t *testing.T) {
	a := &Appointment{Doctor: "Dr. Rao", StartsAt: istTime(10, 14, 30)}

	msg := DueSoonMessage(a, 90*time.Minute+20*time.Second)
	assert.Equal(t, "Dr. Rao at 2:30 PM (in 90 minutes)", msg)
}
