package appointment

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/carepulse/carepulse/internal/clock"
	"github.com/carepulse/carepulse/internal/errors"
	"github.com/carepulse/carepulse/internal/notify"
)

// Store persists appointments
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore creates an appointment store
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Create adds a new appointment
func (s *Store) Create(a *Appointment) error {
	return s.db.Create(a).Error
}

// Get retrieves an appointment by ID
func (s *Store) Get(id string) (*Appointment, error) {
	var a Appointment
	if err := s.db.First(&a, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

// List retrieves all appointments ordered by start time. An empty
// patientID returns every patient's appointments.
func (s *Store) List(patientID string) ([]Appointment, error) {
	var apts []Appointment
	q := s.db.Order("starts_at ASC")
	if patientID != "" {
		q = q.Where("patient_id = ?", patientID)
	}
	err := q.Find(&apts).Error
	return apts, err
}

// ListUpcoming retrieves appointments starting at or after now
func (s *Store) ListUpcoming(patientID string, now time.Time) ([]Appointment, error) {
	var apts []Appointment
	q := s.db.Where("starts_at >= ?", now).Order("starts_at ASC")
	if patientID != "" {
		q = q.Where("patient_id = ?", patientID)
	}
	err := q.Find(&apts).Error
	return apts, err
}

// Update applies changes to an appointment
func (s *Store) Update(a *Appointment) error {
	return s.db.Save(a).Error
}

// Delete removes an appointment
func (s *Store) Delete(id string) error {
	res := s.db.Delete(&Appointment{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.ErrAppointmentNotFound
	}
	return nil
}

// ListToday returns appointments on now's IST day
func (s *Store) ListToday(patientID string, now time.Time) ([]Appointment, error) {
	return s.listOnDay(patientID, clock.StartOfDay(now))
}

// ListTomorrow returns appointments on the IST day after now's
func (s *Store) ListTomorrow(patientID string, now time.Time) ([]Appointment, error) {
	return s.listOnDay(patientID, clock.StartOfDay(now).AddDate(0, 0, 1))
}

func (s *Store) listOnDay(patientID string, dayStart time.Time) ([]Appointment, error) {
	var apts []Appointment
	q := s.db.Where("starts_at >= ? AND starts_at < ?", dayStart, dayStart.AddDate(0, 0, 1)).
		Order("starts_at ASC")
	if patientID != "" {
		q = q.Where("patient_id = ?", patientID)
	}
	err := q.Find(&apts).Error
	return apts, err
}

// Source adapts the store into a notification feed bucket provider
type Source struct {
	store     *Store
	patientID string
}

// NewSource creates a feed source scoped to patientID. An empty
// patientID covers all patients.
func NewSource(store *Store, patientID string) *Source {
	return &Source{store: store, patientID: patientID}
}

// Today returns a notification per appointment on now's IST day.
func (s *Source) Today(now time.Time) ([]notify.Notification, error) {
	apts, err := s.store.ListToday(s.patientID, now)
	if err != nil {
		return nil, err
	}
	var items []notify.Notification
	for i := range apts {
		items = append(items, TodayNotification(&apts[i]))
	}
	return items, nil
}

// Tomorrow returns a notification per appointment on the next IST day.
func (s *Source) Tomorrow(now time.Time) ([]notify.Notification, error) {
	apts, err := s.store.ListTomorrow(s.patientID, now)
	if err != nil {
		return nil, err
	}
	var items []notify.Notification
	for i := range apts {
		items = append(items, TomorrowNotification(&apts[i]))
	}
	return items, nil
}
