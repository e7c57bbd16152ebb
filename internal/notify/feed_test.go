package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubMedicines struct {
	missed    []Notification
	lowStock  []Notification
	missedErr error
}

func (s *stubMedicines) MissedDoses(now time.Time) ([]Notification, error) {
	return s.missed, s.missedErr
}

func (s *stubMedicines) LowStock(now time.Time) ([]Notification, error) {
	return s.lowStock, nil
}

type stubAppointments struct {
	today    []Notification
	tomorrow []Notification
	err      error
}

func (s *stubAppointments) Today(now time.Time) ([]Notification, error) {
	return s.today, s.err
}

func (s *stubAppointments) Tomorrow(now time.Time) ([]Notification, error) {
	return s.tomorrow, s.err
}

func note(kind, sourceID string, priority int) Notification {
	return Notification{
		ID:       fmt.Sprintf("%s-%s", kind, sourceID),
		SourceID: sourceID,
		Kind:     kind,
		Priority: priority,
	}
}

func TestFeedOrdering(t *testing.T) {
	meds := &stubMedicines{
		missed:   []Notification{note(KindMissedDose, "med1", PriorityMissedDose)},
		lowStock: []Notification{note(KindLowStock, "med2", PriorityLowStock)},
	}
	apts := &stubAppointments{
		today:    []Notification{note(KindAppointmentToday, "apt1", PriorityAppointmentToday)},
		tomorrow: []Notification{note(KindAppointmentTomorrow, "apt2", PriorityAppointmentTomorrow)},
	}

	feed := NewFeed(meds, apts, zap.NewNop())
	all := feed.All(time.Now())

	kinds := make([]string, len(all))
	for i, n := range all {
		kinds[i] = n.Kind
	}

	assert.Equal(t, []string{
		KindAppointmentToday,
		KindMissedDose,
		KindAppointmentTomorrow,
		KindLowStock,
	}, kinds)
}

func TestFeedStableWithinPriority(t *testing.T) {
	meds := &stubMedicines{
		missed: []Notification{
			note(KindMissedDose, "med1", PriorityMissedDose),
			note(KindMissedDose, "med2", PriorityMissedDose),
			note(KindMissedDose, "med3", PriorityMissedDose),
		},
	}
	feed := NewFeed(meds, &stubAppointments{}, zap.NewNop())

	all := feed.All(time.Now())
	assert.Equal(t, "med1", all[0].SourceID)
	assert.Equal(t, "med2", all[1].SourceID)
	assert.Equal(t, "med3", all[2].SourceID)
}

func TestFeedNoDedup(t *testing.T) {
	// A medicine that is both missed and low on stock appears twice.
	meds := &stubMedicines{
		missed:   []Notification{note(KindMissedDose, "med1", PriorityMissedDose)},
		lowStock: []Notification{note(KindLowStock, "med1", PriorityLowStock)},
	}
	feed := NewFeed(meds, &stubAppointments{}, zap.NewNop())

	all := feed.All(time.Now())
	assert.Len(t, all, 2)
	assert.Equal(t, "med1", all[0].SourceID)
	assert.Equal(t, "med1", all[1].SourceID)
}

func TestFeedFailedBucketIsEmpty(t *testing.T) {
	meds := &stubMedicines{
		missed:    []Notification{note(KindMissedDose, "med1", PriorityMissedDose)},
		missedErr: fmt.Errorf("db locked"),
		lowStock:  []Notification{note(KindLowStock, "med2", PriorityLowStock)},
	}
	apts := &stubAppointments{
		today: []Notification{note(KindAppointmentToday, "apt1", PriorityAppointmentToday)},
	}

	feed := NewFeed(meds, apts, zap.NewNop())
	all := feed.All(time.Now())

	// Missed bucket dropped, the rest intact.
	assert.Len(t, all, 2)
	assert.Equal(t, KindAppointmentToday, all[0].Kind)
	assert.Equal(t, KindLowStock, all[1].Kind)
}

func TestFeedNilSources(t *testing.T) {
	now := time.Now()

	feed := NewFeed(nil, nil, zap.NewNop())
	assert.Empty(t, feed.All(now))
	assert.Zero(t, feed.Count(now))

	// One side wired, the other absent.
	meds := &stubMedicines{
		missed: []Notification{note(KindMissedDose, "med1", PriorityMissedDose)},
	}
	feed = NewFeed(meds, nil, zap.NewNop())
	all := feed.All(now)
	assert.Len(t, all, 1)
	assert.Equal(t, KindMissedDose, all[0].Kind)
}

func TestFeedIdempotentAtSameInstant(t *testing.T) {
	meds := &stubMedicines{
		missed:   []Notification{note(KindMissedDose, "med1", PriorityMissedDose)},
		lowStock: []Notification{note(KindLowStock, "med2", PriorityLowStock)},
	}
	feed := NewFeed(meds, &stubAppointments{}, zap.NewNop())

	now := time.Now()
	assert.Equal(t, feed.All(now), feed.All(now))
	assert.Equal(t, 2, feed.Count(now))
}
