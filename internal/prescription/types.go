package prescription

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Scan statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Scan records one prescription image sent through the scanner
type Scan struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	PatientID string    `gorm:"index" json:"patient_id"`
	Status    string    `json:"status"`
	RawText   string    `json:"raw_text,omitempty" gorm:"type:text"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExtractedMedicine is one medication parsed out of a prescription
type ExtractedMedicine struct {
	Name       string `json:"name"`
	Dosage     string `json:"dosage"`
	Schedule   string `json:"schedule"`
	TotalPills int    `json:"total_pills"`
	Notes      string `json:"notes,omitempty"`
}

// ScanResult is the structured output of a completed scan
type ScanResult struct {
	Medicines  []ExtractedMedicine `json:"medicines"`
	Prescriber string              `json:"prescriber,omitempty"`
	RawText    string              `json:"raw_text,omitempty"`
}

// BeforeCreate hook for Scan
func (s *Scan) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = "scan_" + uuid.NewString()
	}
	if s.Status == "" {
		s.Status = StatusPending
	}
	return nil
}
