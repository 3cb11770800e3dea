package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/lifecycle"
	"medeasy/marketplace/internal/matching"
	"medeasy/marketplace/internal/ocr"
)

// UploadPrescription records the upload and runs it through OCR. When
// extraction fails the prescription is stored as REJECTED and the
// *ocr.Failure is returned unchanged alongside it.
func (s *Service) UploadPrescription(ctx context.Context, patientID int64, image []byte, filename string) (*domain.Prescription, error) {
	id, now := s.newRecord()
	p := &domain.Prescription{
		ID:                 id,
		PatientID:          patientID,
		ImageName:          filepath.Base(filename),
		ExtractedMedicines: []domain.ExtractedMedicine{},
		State:              lifecycle.State{Status: lifecycle.PrescriptionTable().Initial(), UpdatedAt: now},
		CreatedAt:          now,
	}
	if err := s.repo.CreatePrescription(ctx, p); err != nil {
		return nil, err
	}

	result, extractErr := s.extractor.Extract(ctx, image, filename)
	from := p.Status
	action := lifecycle.ActionProcess
	if extractErr != nil {
		action = lifecycle.ActionReject
		p.FailureReason = string(ocr.ReasonServiceUnavailable)
		var failure *ocr.Failure
		if errors.As(extractErr, &failure) {
			p.FailureReason = string(failure.Reason)
		}
	} else {
		p.ExtractedMedicines = result.Medicines
		p.ExtractedText = result.ExtractedText
		p.Note = result.Note
	}

	if err := s.machine.Transition(p, action); err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePrescription(ctx, p, from); err != nil {
		return nil, err
	}
	s.notify(lifecycle.KindPrescription, p.ID, p.Status, p.PatientID)

	if extractErr != nil {
		s.logger.Warn("prescription rejected",
			zap.String("prescription_id", p.ID),
			zap.String("reason", p.FailureReason),
			zap.Error(extractErr),
		)
		return p, extractErr
	}
	s.logger.Info("prescription processed",
		zap.String("prescription_id", p.ID),
		zap.Int("medicines", len(p.ExtractedMedicines)),
	)
	return p, nil
}

func (s *Service) GetPrescription(ctx context.Context, id string) (*domain.Prescription, error) {
	return load(ctx, lifecycle.KindPrescription, id, s.repo.GetPrescription)
}

// MatchPrescription ranks every pharmacy against the prescription's
// medicines. matching.ErrNoMatchesFound comes back with a usable report.
func (s *Service) MatchPrescription(ctx context.Context, id string) (matching.Report, error) {
	p, err := s.GetPrescription(ctx, id)
	if err != nil {
		return matching.Report{}, err
	}
	if p.Status != lifecycle.PrescriptionProcessed {
		return matching.Report{}, fmt.Errorf("prescription %s is %s: %w", id, p.Status, ErrNotProcessed)
	}
	entries, err := s.inventory.Catalog(ctx)
	if err != nil {
		return matching.Report{}, err
	}
	report, err := s.matcher.Match(p.ExtractedMedicines, matching.GroupByPharmacy(entries))
	if errors.Is(err, matching.ErrNoMatchesFound) {
		s.logger.Info("prescription needs manual verification", zap.String("prescription_id", id))
	}
	return report, err
}
