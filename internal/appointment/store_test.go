package appointment

import (
	"database/sql"
	"testing"

	_ "github.com/glebarez/go-sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Appointment{}))

	return NewStore(db, zap.NewNop())
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)

	a := &Appointment{
		PatientID: "pat1",
		Doctor:    "Dr. Rao",
		StartsAt:  istTime(10, 14, 30),
	}
	require.NoError(t, s.Create(a))
	assert.NotEmpty(t, a.ID)

	got, err := s.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Rao", got.Doctor)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("nope")
	assert.Error(t, err)
}

func TestListTodayAndTomorrow(t *testing.T) {
	s := newTestStore(t)
	now := istTime(10, 9, 0)

	require.NoError(t, s.Create(&Appointment{PatientID: "pat1", Doctor: "Today Early", StartsAt: istTime(10, 8, 0)}))
	require.NoError(t, s.Create(&Appointment{PatientID: "pat1", Doctor: "Today Late", StartsAt: istTime(10, 23, 0)}))
	require.NoError(t, s.Create(&Appointment{PatientID: "pat1", Doctor: "Tomorrow", StartsAt: istTime(11, 10, 0)}))
	require.NoError(t, s.Create(&Appointment{PatientID: "pat1", Doctor: "Next Week", StartsAt: istTime(17, 10, 0)}))

	today, err := s.ListToday("pat1", now)
	require.NoError(t, err)
	require.Len(t, today, 2)
	assert.Equal(t, "Today Early", today[0].Doctor)
	assert.Equal(t, "Today Late", today[1].Doctor)

	tomorrow, err := s.ListTomorrow("pat1", now)
	require.NoError(t, err)
	require.Len(t, tomorrow, 1)
	assert.Equal(t, "Tomorrow", tomorrow[0].Doctor)
}

func TestListUpcoming(t *testing.T) {
	s := newTestStore(t)
	now := istTime(10, 9, 0)

	require.NoError(t, s.Create(&Appointment{PatientID: "pat1", Doctor: "Past", StartsAt: istTime(9, 10, 0)}))
	require.NoError(t, s.Create(&Appointment{PatientID: "pat1", Doctor: "Future", StartsAt: istTime(12, 10, 0)}))

	upcoming, err := s.ListUpcoming("pat1", now)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "Future", upcoming[0].Doctor)
}

func TestSourceBuckets(t *testing.T) {
	s := newTestStore(t)
	now := istTime(10, 9, 0)

	require.NoError(t, s.Create(&Appointment{PatientID: "pat1", Doctor: "Dr. Today", StartsAt: istTime(10, 15, 0)}))
	require.NoError(t, s.Create(&Appointment{PatientID: "pat1", Doctor: "Dr. Tomorrow", StartsAt: istTime(11, 10, 0)}))

	src := NewSource(s, "pat1")

	today, err := src.Today(now)
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.Equal(t, "Today: Dr. Today at 3:00 PM", today[0].Message)

	tomorrow, err := src.Tomorrow(now)
	require.NoError(t, err)
	require.Len(t, tomorrow, 1)
	assert.Equal(t, "Tomorrow: Dr. Tomorrow at 10:00 AM", tomorrow[0].Message)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)

	a := &Appointment{PatientID: "pat1", Doctor: "Dr. Rao", StartsAt: istTime(10, 14, 30)}
	require.NoError(t, s.Create(a))

	require.NoError(t, s.Delete(a.ID))
	assert.Error(t, s.Delete(a.ID))
}
