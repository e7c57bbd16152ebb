package medicine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/carepulse/carepulse/internal/clock"
	"github.com/carepulse/carepulse/internal/notify"
)

func istTime(hour, min int) time.Time {
	return time.Date(2026, time.March, 10, hour, min, 0, 0, clock.IST)
}

func TestWasTakenToday(t *testing.T) {
	now := istTime(10, 0)

	m := &Medicine{Name: "Aspirin"}
	assert.False(t, WasTakenToday(m, now))

	earlier := istTime(8, 0)
	m.LastTaken = &earlier
	assert.True(t, WasTakenToday(m, now))

	yesterday := earlier.AddDate(0, 0, -1)
	m.LastTaken = &yesterday
	assert.False(t, WasTakenToday(m, now))
}

func TestIsMissed(t *testing.T) {
	taken := istTime(8, 30)

	tests := []struct {
		name     string
		medicine Medicine
		now      time.Time
		missed   bool
	}{
		{
			name:     "due time passed, not taken",
			medicine: Medicine{Schedule: "8:00 AM"},
			now:      istTime(9, 0),
			missed:   true,
		},
		{
			name:     "due time not reached",
			medicine: Medicine{Schedule: "8:00 AM"},
			now:      istTime(7, 0),
			missed:   false,
		},
		{
			name:     "exactly at due time is not missed",
			medicine: Medicine{Schedule: "8:00 AM"},
			now:      istTime(8, 0),
			missed:   false,
		},
		{
			name:     "taken today suppresses missed",
			medicine: Medicine{Schedule: "8:00 AM", LastTaken: &taken},
			now:      istTime(9, 0),
			missed:   false,
		},
		{
			name:     "slot schedule",
			medicine: Medicine{Schedule: "morning"},
			now:      istTime(8, 30),
			missed:   true,
		},
		{
			name:     "unparseable schedule never missed",
			medicine: Medicine{Schedule: "with meals"},
			now:      istTime(23, 0),
			missed:   false,
		},
		{
			name:     "empty schedule never missed",
			medicine: Medicine{Schedule: ""},
			now:      istTime(23, 0),
			missed:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.missed, IsMissed(&tt.medicine, tt.now))
		})
	}
}

func TestIsLowStock(t *testing.T) {
	assert.True(t, IsLowStock(&Medicine{PillsRemaining: 10, RefillThreshold: 10}))
	assert.True(t, IsLowStock(&Medicine{PillsRemaining: 0, RefillThreshold: 10}))
	assert.False(t, IsLowStock(&Medicine{PillsRemaining: 11, RefillThreshold: 10}))

	// Unset threshold falls back to the default of 10.
	assert.True(t, IsLowStock(&Medicine{PillsRemaining: 10}))
	assert.False(t, IsLowStock(&Medicine{PillsRemaining: 11}))
}

func TestMissedNotification(t *testing.T) {
	m := &Medicine{ID: "med1", Name: "Aspirin", Schedule: "8:00 AM"}
	n := MissedNotification(m)

	assert.Equal(t, "med1", n.ID)
	assert.Equal(t, notify.KindMissedDose, n.Kind)
	assert.Equal(t, notify.PriorityMissedDose, n.Priority)
	assert.Equal(t, "Morning pill missed: Aspirin (8:00 AM)", n.Message)
}

func TestLowStockNotification(t *testing.T) {
	m := &Medicine{ID: "med1", Name: "Aspirin", PillsRemaining: 3}
	n := LowStockNotification(m)

	assert.Equal(t, "low-stock-med1", n.ID)
	assert.Equal(t, "med1", n.SourceID)
	assert.Equal(t, notify.KindLowStock, n.Kind)
	assert.Equal(t, notify.PriorityLowStock, n.Priority)
	assert.Equal(t, "Low stock: Aspirin (3 pills left)", n.Message)
}
