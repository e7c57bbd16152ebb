// Package notify assembles the notification feed shown to caregivers.
package notify

import "time"

// Notification kinds, in priority order.
const (
	KindAppointmentToday    = "appointment-today"
	KindMissedDose          = "missed"
	KindAppointmentTomorrow = "appointment"
	KindLowStock            = "low-stock"
)

// Priorities per kind. Lower sorts first.
const (
	PriorityAppointmentToday    = 1
	PriorityMissedDose          = 2
	PriorityAppointmentTomorrow = 3
	PriorityLowStock            = 4
)

// Notification is one item in the caregiver feed
type Notification struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	Kind      string    `json:"kind"`
	Priority  int       `json:"priority"`
	Icon      string    `json:"icon"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	TimeLabel string    `json:"time_label,omitempty"`
	When      time.Time `json:"when,omitempty"`
}
