package prescription

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/carepulse/carepulse/internal/medicine"
	"github.com/carepulse/carepulse/internal/metrics"
)

// Service runs scans and imports the extracted medicines
type Service struct {
	scanner   Scanner
	db        *gorm.DB
	medicines *medicine.Store
	logger    *zap.Logger
}

// NewService creates a prescription service
func NewService(scanner Scanner, db *gorm.DB, medicines *medicine.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		scanner:   scanner,
		db:        db,
		medicines: medicines,
		logger:    logger,
	}
}

// ScanAndImport runs the scanner on the image and creates a medicine
// per extracted entry. The scan row records the outcome either way.
func (s *Service) ScanAndImport(ctx context.Context, patientID string, imageData []byte, mimeType string) (*Scan, *ScanResult, error) {
	scan := &Scan{PatientID: patientID}
	if err := s.db.Create(scan).Error; err != nil {
		return nil, nil, err
	}

	result, err := s.scanner.Scan(ctx, imageData, mimeType)
	if err != nil {
		scan.Status = StatusFailed
		scan.Error = err.Error()
		if uerr := s.db.Save(scan).Error; uerr != nil {
			s.logger.Warn("could not record failed scan", zap.String("scan_id", scan.ID), zap.Error(uerr))
		}
		metrics.RecordScan(false)
		return scan, nil, err
	}

	for i := range result.Medicines {
		ext := &result.Medicines[i]
		med := &medicine.Medicine{
			PatientID:      patientID,
			Name:           ext.Name,
			Dosage:         ext.Dosage,
			Schedule:       ext.Schedule,
			PillsRemaining: ext.TotalPills,
			TotalPills:     ext.TotalPills,
			Prescriber:     result.Prescriber,
			Notes:          ext.Notes,
		}
		if err := s.medicines.Create(med); err != nil {
			s.logger.Warn("could not import scanned medicine",
				zap.String("scan_id", scan.ID),
				zap.String("name", ext.Name),
				zap.Error(err))
		}
	}

	scan.Status = StatusCompleted
	scan.RawText = result.RawText
	if err := s.db.Save(scan).Error; err != nil {
		s.logger.Warn("could not record completed scan", zap.String("scan_id", scan.ID), zap.Error(err))
	}
	metrics.RecordScan(true)

	s.logger.Info("Prescription scanned",
		zap.String("scan_id", scan.ID),
		zap.String("patient_id", patientID),
		zap.Int("medicines", len(result.Medicines)))

	return scan, result, nil
}

// History lists past scans for a patient, newest first
func (s *Service) History(patientID string, limit int) ([]Scan, error) {
	var scans []Scan
	q := s.db.Where("patient_id = ?", patientID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&scans).Error
	return scans, err
}
