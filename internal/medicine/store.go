package medicine

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/carepulse/carepulse/internal/errors"
	"github.com/carepulse/carepulse/internal/notify"
)

// Store persists medicines
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore creates a medicine store
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Create adds a new medicine
func (s *Store) Create(m *Medicine) error {
	return s.db.Create(m).Error
}

// Get retrieves a medicine by ID
func (s *Store) Get(id string) (*Medicine, error) {
	var m Medicine
	if err := s.db.First(&m, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrMedicineNotFound
		}
		return nil, err
	}
	return &m, nil
}

// List retrieves all medicines, newest first. An empty patientID
// returns every patient's medicines.
func (s *Store) List(patientID string) ([]Medicine, error) {
	var meds []Medicine
	q := s.db.Order("created_at DESC")
	if patientID != "" {
		q = q.Where("patient_id = ?", patientID)
	}
	err := q.Find(&meds).Error
	return meds, err
}

// Update applies changes to a medicine
func (s *Store) Update(m *Medicine) error {
	return s.db.Save(m).Error
}

// Delete removes a medicine
func (s *Store) Delete(id string) error {
	res := s.db.Delete(&Medicine{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.ErrMedicineNotFound
	}
	return nil
}

// MarkTaken records a dose at the given instant: decrements the pill
// count (never below zero) and stamps LastTaken. Returns false when the
// medicine is missing or the write fails; callers do not retry.
func (s *Store) MarkTaken(id string, now time.Time) bool {
	m, err := s.Get(id)
	if err != nil {
		s.logger.Warn("mark taken failed", zap.String("medicine_id", id), zap.Error(err))
		return false
	}

	newCount := m.PillsRemaining - 1
	if newCount < 0 {
		newCount = 0
	}
	taken := now

	err = s.db.Model(&Medicine{}).Where("id = ?", id).Updates(map[string]interface{}{
		"pills_remaining": newCount,
		"last_taken":      &taken,
	}).Error
	if err != nil {
		s.logger.Warn("mark taken failed", zap.String("medicine_id", id), zap.Error(err))
		return false
	}
	return true
}

// Refill adds pills to a medicine and raises TotalPills when the new
// count exceeds it. Returns false when the medicine is missing or the
// write fails.
func (s *Store) Refill(id string, amount int) bool {
	m, err := s.Get(id)
	if err != nil {
		s.logger.Warn("refill failed", zap.String("medicine_id", id), zap.Error(err))
		return false
	}

	newCount := m.PillsRemaining + amount
	total := m.TotalPills
	if newCount > total {
		total = newCount
	}

	err = s.db.Model(&Medicine{}).Where("id = ?", id).Updates(map[string]interface{}{
		"pills_remaining": newCount,
		"total_pills":     total,
	}).Error
	if err != nil {
		s.logger.Warn("refill failed", zap.String("medicine_id", id), zap.Error(err))
		return false
	}
	return true
}

// ListLowStock returns medicines at or below their refill threshold
func (s *Store) ListLowStock(patientID string) ([]Medicine, error) {
	meds, err := s.List(patientID)
	if err != nil {
		return nil, err
	}
	low := meds[:0]
	for i := range meds {
		if IsLowStock(&meds[i]) {
			low = append(low, meds[i])
		}
	}
	return low, nil
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

// MissedDoses returns a notification per medicine whose scheduled time
// has passed without a dose today.
func (s *Source) MissedDoses(now time.Time) ([]notify.Notification, error) {
	meds, err := s.store.List(s.patientID)
	if err != nil {
		return nil, err
	}
	var items []notify.Notification
	for i := range meds {
		if IsMissed(&meds[i], now) {
			items = append(items, MissedNotification(&meds[i]))
		}
	}
	return items, nil
}

// LowStock returns a notification per medicine at or below its refill
// threshold.
func (s *Source) LowStock(now time.Time) ([]notify.Notification, error) {
	meds, err := s.store.List(s.patientID)
	if err != nil {
		return nil, err
	}
	var items []notify.Notification
	for i := range meds {
		if IsLowStock(&meds[i]) {
			items = append(items, LowStockNotification(&meds[i]))
		}
	}
	return items, nil
}
