package appointment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Appointment represents a scheduled doctor visit
type Appointment struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	PatientID string    `gorm:"index" json:"patient_id"`
	Title     string    `json:"title"`
	Doctor    string    `json:"doctor"`
	Location  string    `json:"location,omitempty"`
	Notes     string    `json:"notes,omitempty" gorm:"type:text"`
	StartsAt  time.Time `gorm:"index" json:"starts_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook for Appointment
func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = "apt_" + uuid.NewString()
	}
	return nil
}
