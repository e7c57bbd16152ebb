package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/carepulse/carepulse/internal/appointment"
	"github.com/carepulse/carepulse/internal/clock"
	"github.com/carepulse/carepulse/internal/medicine"
	"github.com/carepulse/carepulse/internal/metrics"
)

// Alert kinds, doubling as dedup key prefixes.
const (
	KindMissedDose          = "medicine"
	KindLowStock            = "low-stock"
	KindAppointmentTomorrow = "apt-tomorrow"
	KindAppointmentSoon     = "apt-today"
)

// EveningReminderHour is the IST hour from which next-day appointment
// popups start firing. The notification feed is not gated by it.
const EveningReminderHour = 17

// DefaultCriticalStock is the pill count at or below which a low-stock
// popup fires. The feed uses the per-medicine refill threshold instead.
const DefaultCriticalStock = 5

// Suggested popup display durations, in milliseconds. Clients are free
// to ignore them.
const (
	DurationDefaultMS = 10000
	DurationDueSoonMS = 15000
)

// Alert is one popup-worthy event
type Alert struct {
	Kind       string    `json:"kind"`
	SourceID   string    `json:"source_id"`
	Severity   string    `json:"severity"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	DurationMS int       `json:"duration_ms"`
	At         time.Time `json:"at"`
}

// AlertCallback is called once per newly fired alert
type AlertCallback func(alert Alert)

// Engine periodically evaluates alert conditions and fires callbacks
// for the ones that have not fired yet today
type Engine struct {
	medicines     *medicine.Store
	appointments  *appointment.Store
	tracker       *Tracker
	clk           clock.Clock
	logger        *zap.Logger
	interval      time.Duration
	initialDelay  time.Duration
	criticalStock int
	callback      AlertCallback

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewEngine creates an alert engine
func NewEngine(medicines *medicine.Store, appointments *appointment.Store, clk clock.Clock, logger *zap.Logger, callback AlertCallback) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		medicines:     medicines,
		appointments:  appointments,
		tracker:       NewTracker(),
		clk:           clk,
		logger:        logger,
		interval:      time.Minute,
		initialDelay:  2 * time.Second,
		criticalStock: DefaultCriticalStock,
		callback:      callback,
		stopCh:        make(chan struct{}),
	}
}

// WithInterval sets the scan interval
func (e *Engine) WithInterval(interval time.Duration) *Engine {
	e.interval = interval
	return e
}

// WithInitialDelay sets the delay before the first scan
func (e *Engine) WithInitialDelay(delay time.Duration) *Engine {
	e.initialDelay = delay
	return e
}

// WithCriticalStock sets the popup low-stock gate
func (e *Engine) WithCriticalStock(count int) *Engine {
	e.criticalStock = count
	return e
}

// Start starts the engine
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("alert engine already running")
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.mu.Unlock()

	e.logger.Info("Starting alert engine",
		zap.Duration("interval", e.interval),
		zap.Duration("initial_delay", e.initialDelay))

	e.wg.Add(1)
	go e.run(ctx)

	return nil
}

// Stop stops the engine
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	e.wg.Wait()
	e.logger.Info("Alert engine stopped")

	return nil
}

// IsRunning returns true if the engine is running
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// TakeNow records a dose for the medicine right now. The alert's dedup
// key stays in place; the updated taken state keeps the condition from
// re-firing on later ticks.
func (e *Engine) TakeNow(medicineID string) bool {
	ok := e.medicines.MarkTaken(medicineID, e.clk.Now())
	metrics.RecordDose(ok)
	return ok
}

// run is the main engine loop
func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	// Let the rest of the process come up before the first scan.
	initial := time.NewTimer(e.initialDelay)
	defer initial.Stop()

	select {
	case <-ctx.Done():
		return
	case <-e.stopCh:
		return
	case <-initial.C:
		e.Tick()
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Alert engine context cancelled")
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Tick runs one scan over every alert condition. Exported so callers
// can force a scan (tests, admin endpoints).
func (e *Engine) Tick() {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Panic in alert tick", zap.Any("recover", r))
			metrics.RecordTick(false)
		}
	}()

	started := time.Now()
	now := e.clk.Now()

	e.checkMedicines(now)
	e.checkAppointments(now)

	metrics.RecordTick(true)
	metrics.RecordTickDuration(time.Since(started))
}

func (e *Engine) checkMedicines(now time.Time) {
	meds, err := e.medicines.List("")
	if err != nil {
		e.logger.Warn("Could not check medicines", zap.Error(err))
		return
	}

	for i := range meds {
		m := &meds[i]

		if medicine.IsMissed(m, now) {
			e.fire(now, Alert{
				Kind:     KindMissedDose,
				SourceID: m.ID,
				Severity: "warning",
				Title:    "Missed Medicine",
				Message:  fmt.Sprintf("%s: %s (%s)", clock.TimeLabel(m.Schedule), m.Name, m.Schedule),
			})
		}

		// Popup only at critically low stock; the feed handles the
		// softer per-medicine threshold.
		if medicine.IsLowStock(m) && m.PillsRemaining <= e.criticalStock {
			e.fire(now, Alert{
				Kind:     KindLowStock,
				SourceID: m.ID,
				Severity: "warning",
				Title:    "Low Stock",
				Message:  fmt.Sprintf("%s has only %d pills left", m.Name, m.PillsRemaining),
			})
		}
	}
}

func (e *Engine) checkAppointments(now time.Time) {
	// Next-day reminders only from the evening onward.
	if now.In(clock.IST).Hour() >= EveningReminderHour {
		tomorrow, err := e.appointments.ListTomorrow("", now)
		if err != nil {
			e.logger.Warn("Could not check tomorrow's appointments", zap.Error(err))
		} else {
			for i := range tomorrow {
				a := &tomorrow[i]
				e.fire(now, Alert{
					Kind:     KindAppointmentTomorrow,
					SourceID: a.ID,
					Severity: "info",
					Title:    "Appointment Tomorrow",
					Message:  fmt.Sprintf("%s at %s", appointment.DisplayName(a), clock.FormatTime(a.StartsAt)),
				})
			}
		}
	}

	today, err := e.appointments.ListToday("", now)
	if err != nil {
		e.logger.Warn("Could not check today's appointments", zap.Error(err))
		return
	}

	for i := range today {
		a := &today[i]
		if until, due := appointment.DueSoon(a, now); due {
			e.fire(now, Alert{
				Kind:       KindAppointmentSoon,
				SourceID:   a.ID,
				Severity:   "warning",
				Title:      "Appointment Soon",
				Message:    appointment.DueSoonMessage(a, until),
				DurationMS: DurationDueSoonMS,
			})
		}
	}
}

func (e *Engine) fire(now time.Time, alert Alert) {
	if !e.tracker.MarkIfNew(alert.Kind, alert.SourceID, now) {
		metrics.RecordAlert(alert.Kind, true)
		return
	}

	alert.At = now
	if alert.DurationMS == 0 {
		alert.DurationMS = DurationDefaultMS
	}
	metrics.RecordAlert(alert.Kind, false)

	e.logger.Info("Alert fired",
		zap.String("kind", alert.Kind),
		zap.String("source_id", alert.SourceID),
		zap.String("message", alert.Message))

	if e.callback != nil {
		e.callback(alert)
	}
}
