package store

import (
	"context"
	"encoding/json"
	"fmt"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/lifecycle"
)

const prescriptionColumns = `id, patient_id, image_name, extracted_medicines, extracted_text, note, failure_reason,
        status, created_at, updated_at, processed_at, rejected_at`

// prescriptionRow carries the extracted medicines as their stored JSON text.
type prescriptionRow struct {
	domain.Prescription
	Medicines string `db:"extracted_medicines"`
}

func toRow(p *domain.Prescription) (prescriptionRow, error) {
	meds := p.ExtractedMedicines
	if meds == nil {
		meds = []domain.ExtractedMedicine{}
	}
	raw, err := json.Marshal(meds)
	if err != nil {
		return prescriptionRow{}, fmt.Errorf("failed to encode extracted medicines: %w", err)
	}
	return prescriptionRow{Prescription: *p, Medicines: string(raw)}, nil
}

func (s *Store) CreatePrescription(ctx context.Context, p *domain.Prescription) error {
	row, err := toRow(p)
	if err != nil {
		return err
	}
	_, err = s.DB.NamedExecContext(ctx, `INSERT INTO prescriptions (`+prescriptionColumns+`)
        VALUES (:id, :patient_id, :image_name, :extracted_medicines, :extracted_text, :note, :failure_reason,
        :status, :created_at, :updated_at, :processed_at, :rejected_at)`, row)
	if err != nil {
		return fmt.Errorf("failed to insert prescription: %w", err)
	}
	return nil
}

func (s *Store) GetPrescription(ctx context.Context, id string) (*domain.Prescription, error) {
	var row prescriptionRow
	if err := s.get(ctx, &row, `SELECT `+prescriptionColumns+` FROM prescriptions WHERE id = ?`, id); err != nil {
		return nil, err
	}
	p := row.Prescription
	if err := json.Unmarshal([]byte(row.Medicines), &p.ExtractedMedicines); err != nil {
		return nil, fmt.Errorf("failed to decode extracted medicines: %w", err)
	}
	return &p, nil
}

// UpdatePrescription stores the extraction outcome together with the status
// change, guarded on from.
func (s *Store) UpdatePrescription(ctx context.Context, p *domain.Prescription, from lifecycle.Status) error {
	row, err := toRow(p)
	if err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE prescriptions SET
            extracted_medicines = ?, extracted_text = ?, note = ?, failure_reason = ?,
            status = ?, updated_at = ?,
            processed_at = COALESCE(processed_at, ?),
            rejected_at = COALESCE(rejected_at, ?)
        WHERE id = ? AND status = ?`,
		row.Medicines, p.ExtractedText, p.Note, p.FailureReason,
		p.Status, p.UpdatedAt, p.ProcessedAt, p.RejectedAt, p.ID, from)
	if err != nil {
		return fmt.Errorf("failed to update prescription: %w", err)
	}
	return s.guarded(ctx, res, "prescriptions", p.ID)
}
