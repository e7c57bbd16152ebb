package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/carepulse/carepulse/internal/clock"
)

// Tracker remembers which alerts have already fired today so a
// condition that stays true across ticks only pops once per IST day.
// Marking a dose as taken does not remove its key; the taken state
// itself stops the condition from re-firing.
type Tracker struct {
	mu   sync.Mutex
	seen map[string]struct{}
	day  string
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]struct{})}
}

// MarkIfNew records the (kind, sourceID, day) key for now's IST day and
// reports whether it was newly recorded. All keys are dropped when the
// IST day rolls over, re-arming every alert.
func (t *Tracker) MarkIfNew(kind, sourceID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	day := clock.DayKey(now)
	if day != t.day {
		t.seen = make(map[string]struct{})
		t.day = day
	}

	key := fmt.Sprintf("%s-%s-%s", kind, sourceID, day)
	if _, exists := t.seen[key]; exists {
		return false
	}
	t.seen[key] = struct{}{}
	return true
}

// Len returns the number of keys recorded for the current day.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
