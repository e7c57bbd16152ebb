package digest

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/carepulse/carepulse/internal/appointment"
	"github.com/carepulse/carepulse/internal/clock"
	"github.com/carepulse/carepulse/internal/medicine"
)

type captureSender struct {
	sent []string
}

func (c *captureSender) SendDigest(text string) error {
	c.sent = append(c.sent, text)
	return nil
}

func newTestDigest(t *testing.T, clk clock.Clock, sender Sender) (*Digest, *medicine.Store, *appointment.Store) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&medicine.Medicine{}, &appointment.Appointment{}))

	meds := medicine.NewStore(db, zap.NewNop())
	apts := appointment.NewStore(db, zap.NewNop())

	return New(meds, apts, clk, sender, zap.NewNop(), ""), meds, apts
}

func istTime(hour, min int) time.Time {
	return time.Date(2026, time.March, 10, hour, min, 0, 0, clock.IST)
}

func TestCompose(t *testing.T) {
	clk := clock.NewManual(istTime(8, 0))
	d, meds, apts := newTestDigest(t, clk, &captureSender{})

	require.NoError(t, meds.Create(&medicine.Medicine{
		Name: "Metformin", Dosage: "500mg", Schedule: "8:00 PM", PillsRemaining: 40,
	}))
	require.NoError(t, meds.Create(&medicine.Medicine{
		Name: "Aspirin", Dosage: "75mg", Schedule: "morning", PillsRemaining: 3,
	}))
	require.NoError(t, apts.Create(&appointment.Appointment{
		Doctor: "Dr. Rao", Location: "City Clinic", StartsAt: istTime(14, 30),
	}))

	text, err := d.Compose(clk.Now())
	require.NoError(t, err)

	assert.Contains(t, text, "Good Morning! Here is the plan for 10 Mar 2026.")
	assert.Contains(t, text, "morning: Aspirin 75mg (3 pills left, refill soon)")
	assert.Contains(t, text, "8:00 PM: Metformin 500mg")
	assert.Contains(t, text, "2:30 PM: Dr. Rao at City Clinic")

	// Time order: morning slot before the evening dose.
	assert.Less(t, strings.Index(text, "Aspirin"), strings.Index(text, "Metformin"))
}

func TestComposeNoAppointments(t *testing.T) {
	clk := clock.NewManual(istTime(8, 0))
	d, _, _ := newTestDigest(t, clk, &captureSender{})

	text, err := d.Compose(clk.Now())
	require.NoError(t, err)
	assert.Contains(t, text, "No appointments today.")
}

func TestRunSends(t *testing.T) {
	clk := clock.NewManual(istTime(8, 0))
	sender := &captureSender{}
	d, meds, _ := newTestDigest(t, clk, sender)

	require.NoError(t, meds.Create(&medicine.Medicine{
		Name: "Aspirin", Dosage: "75mg", Schedule: "morning", PillsRemaining: 40,
	}))

	d.Run()
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "Aspirin")
}

func TestStartInvalidSpec(t *testing.T) {
	clk := clock.NewManual(istTime(8, 0))
	d, _, _ := newTestDigest(t, clk, &captureSender{})
	d.spec = "not a cron spec"

	assert.Error(t, d.Start())
}

func TestStartStop(t *testing.T) {
	clk := clock.NewManual(istTime(8, 0))
	d, _, _ := newTestDigest(t, clk, &captureSender{})

	require.NoError(t, d.Start())
	d.Stop()
}
