// Package digest sends the daily schedule summary to caregivers.
package digest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/carepulse/carepulse/internal/appointment"
	"github.com/carepulse/carepulse/internal/clock"
	"github.com/carepulse/carepulse/internal/medicine"
	"github.com/carepulse/carepulse/internal/metrics"
)

// Sender delivers a rendered digest
type Sender interface {
	SendDigest(text string) error
}

// Digest composes and schedules the daily plan summary
type Digest struct {
	medicines    *medicine.Store
	appointments *appointment.Store
	clk          clock.Clock
	sender       Sender
	logger       *zap.Logger
	spec         string
	cron         *cron.Cron
}

// New creates a digest scheduler. spec is a standard cron expression
// evaluated in IST, e.g. "0 8 * * *" for 8 AM daily.
func New(medicines *medicine.Store, appointments *appointment.Store, clk clock.Clock, sender Sender, logger *zap.Logger, spec string) *Digest {
	if logger == nil {
		logger = zap.NewNop()
	}
	if spec == "" {
		spec = "0 8 * * *"
	}
	return &Digest{
		medicines:    medicines,
		appointments: appointments,
		clk:          clk,
		sender:       sender,
		logger:       logger,
		spec:         spec,
	}
}

// Start schedules the digest
func (d *Digest) Start() error {
	d.cron = cron.New(cron.WithLocation(clock.IST))
	if _, err := d.cron.AddFunc(d.spec, d.Run); err != nil {
		return fmt.Errorf("invalid digest schedule %q: %w", d.spec, err)
	}
	d.cron.Start()

	d.logger.Info("Daily digest scheduled", zap.String("spec", d.spec))
	return nil
}

// Stop stops the schedule, waiting for a running digest to finish
func (d *Digest) Stop() {
	if d.cron != nil {
		<-d.cron.Stop().Done()
	}
}

// Run composes and sends the digest once
func (d *Digest) Run() {
	text, err := d.Compose(d.clk.Now())
	if err != nil {
		d.logger.Warn("Could not compose digest", zap.Error(err))
		return
	}

	if err := d.sender.SendDigest(text); err != nil {
		d.logger.Warn("Could not send digest", zap.Error(err))
		return
	}

	metrics.RecordDigest()
	d.logger.Info("Daily digest sent")
}

// Compose renders the plan for now's IST day
func (d *Digest) Compose(now time.Time) (string, error) {
	meds, err := d.medicines.List("")
	if err != nil {
		return "", err
	}
	apts, err := d.appointments.ListToday("", now)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s! Here is the plan for %s.\n", clock.Greeting(now), clock.FormatDate(now))

	if len(meds) > 0 {
		// Scheduled medicines first, in time order; free-text
		// schedules follow in their stored order.
		sort.SliceStable(meds, func(i, j int) bool {
			hi, oki := clock.ParseTimeOfDay(meds[i].Schedule)
			hj, okj := clock.ParseTimeOfDay(meds[j].Schedule)
			if oki != okj {
				return oki
			}
			return hi < hj
		})

		sb.WriteString("\nMedicines:\n")
		for i := range meds {
			m := &meds[i]
			label := m.Schedule
			if label == "" {
				label = "anytime"
			}
			fmt.Fprintf(&sb, "  - %s: %s %s", label, m.Name, m.Dosage)
			if medicine.IsLowStock(m) {
				fmt.Fprintf(&sb, " (%d pills left, refill soon)", m.PillsRemaining)
			}
			sb.WriteString("\n")
		}
	}

	if len(apts) > 0 {
		sb.WriteString("\nAppointments today:\n")
		for i := range apts {
			a := &apts[i]
			fmt.Fprintf(&sb, "  - %s: %s", clock.FormatTime(a.StartsAt), appointment.DisplayName(a))
			if a.Location != "" {
				fmt.Fprintf(&sb, " at %s", a.Location)
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("\nNo appointments today.\n")
	}

	return sb.String(), nil
}
