package medicine

import (
	"fmt"
	"time"

	"github.com/carepulse/carepulse/internal/clock"
	"github.com/carepulse/carepulse/internal/notify"
)

// WasTakenToday reports whether the medicine was taken on now's IST
// calendar day.
func WasTakenToday(m *Medicine, now time.Time) bool {
	if m.LastTaken == nil {
		return false
	}
	return clock.SameDay(*m.LastTaken, now)
}

// IsMissed reports whether the medicine's scheduled time has strictly
// passed and it was not taken today. A schedule that cannot be parsed
// is never missed.
func IsMissed(m *Medicine, now time.Time) bool {
	dueHour, ok := clock.ParseTimeOfDay(m.Schedule)
	if !ok {
		return false
	}
	return clock.HourOfDay(now) > dueHour && !WasTakenToday(m, now)
}

// IsLowStock reports whether the remaining pills are at or below the
// refill threshold.
func IsLowStock(m *Medicine) bool {
	threshold := m.RefillThreshold
	if threshold == 0 {
		threshold = DefaultRefillThreshold
	}
	return m.PillsRemaining <= threshold
}

// MissedNotification builds the feed item for a missed dose.
func MissedNotification(m *Medicine) notify.Notification {
	label := clock.TimeLabel(m.Schedule)
	return notify.Notification{
		ID:        m.ID,
		SourceID:  m.ID,
		Kind:      notify.KindMissedDose,
		Priority:  notify.PriorityMissedDose,
		Icon:      "pill",
		Title:     m.Name,
		TimeLabel: label,
		Message:   fmt.Sprintf("%s pill missed: %s (%s)", label, m.Name, m.Schedule),
	}
}

// LowStockNotification builds the feed item for a low stock warning.
func LowStockNotification(m *Medicine) notify.Notification {
	return notify.Notification{
		ID:       "low-stock-" + m.ID,
		SourceID: m.ID,
		Kind:     notify.KindLowStock,
		Priority: notify.PriorityLowStock,
		Icon:     "alert",
		Title:    m.Name,
		Message:  fmt.Sprintf("Low stock: %s (%d pills left)", m.Name, m.PillsRemaining),
	}
}
