package medicine

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultRefillThreshold is the stock level at which a medicine is
// considered low when no threshold is set.
const DefaultRefillThreshold = 10

// Medicine represents a scheduled medication for a patient
type Medicine struct {
	ID              string     `gorm:"primaryKey" json:"id"`
	PatientID       string     `gorm:"index" json:"patient_id"`
	Name            string     `json:"name"`
	Dosage          string     `json:"dosage"`
	Schedule        string     `json:"schedule"` // "morning", "8:00 AM", free text
	PillsRemaining  int        `json:"pills_remaining"`
	TotalPills      int        `json:"total_pills"`
	RefillThreshold int        `json:"refill_threshold"`
	LastTaken       *time.Time `json:"last_taken"`
	Prescriber      string     `json:"prescriber,omitempty"`
	Notes           string     `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// BeforeCreate hook for Medicine
func (m *Medicine) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = "med_" + uuid.NewString()
	}
	if m.RefillThreshold == 0 {
		m.RefillThreshold = DefaultRefillThreshold
	}
	return nil
}
