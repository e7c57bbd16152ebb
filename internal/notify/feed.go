package notify

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// MedicineSource yields medication notification buckets for an instant.
type MedicineSource interface {
	MissedDoses(now time.Time) ([]Notification, error)
	LowStock(now time.Time) ([]Notification, error)
}

// AppointmentSource yields appointment notification buckets for an instant.
type AppointmentSource interface {
	Today(now time.Time) ([]Notification, error)
	Tomorrow(now time.Time) ([]Notification, error)
}

// Feed aggregates all notification buckets into one prioritized list
type Feed struct {
	medicines    MedicineSource
	appointments AppointmentSource
	logger       *zap.Logger
}

// NewFeed creates a feed over the given sources
func NewFeed(medicines MedicineSource, appointments AppointmentSource, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		medicines:    medicines,
		appointments: appointments,
		logger:       logger,
	}
}

// All returns every notification for the given instant, sorted by
// priority. A missing or failing source contributes an empty bucket;
// the rest of the feed is still computed. Repeated calls at the same
// instant return the same list.
func (f *Feed) All(now time.Time) []Notification {
	var today, missed, tomorrow, lowStock []Notification

	if f.appointments != nil {
		today = f.bucket("appointments_today", func() ([]Notification, error) {
			return f.appointments.Today(now)
		})
		tomorrow = f.bucket("appointments_tomorrow", func() ([]Notification, error) {
			return f.appointments.Tomorrow(now)
		})
	}
	if f.medicines != nil {
		missed = f.bucket("missed_doses", func() ([]Notification, error) {
			return f.medicines.MissedDoses(now)
		})
		lowStock = f.bucket("low_stock", func() ([]Notification, error) {
			return f.medicines.LowStock(now)
		})
	}

	all := make([]Notification, 0, len(today)+len(missed)+len(tomorrow)+len(lowStock))
	all = append(all, today...)
	all = append(all, missed...)
	all = append(all, tomorrow...)
	all = append(all, lowStock...)

	// Stable: ties keep bucket order.
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Priority < all[j].Priority
	})

	return all
}

// Count returns the number of notifications for the given instant.
func (f *Feed) Count(now time.Time) int {
	return len(f.All(now))
}

func (f *Feed) bucket(name string, fetch func() ([]Notification, error)) []Notification {
	items, err := fetch()
	if err != nil {
		f.logger.Warn("notification bucket failed",
			zap.String("bucket", name),
			zap.Error(err))
		return nil
	}
	return items
}
