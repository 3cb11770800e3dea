package domain

import (
	"time"

	"medeasy/marketplace/internal/lifecycle"
)

// ExtractedMedicine is one line read off a prescription. Only Name is
// guaranteed; the OCR service may omit the rest.
type ExtractedMedicine struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage,omitempty"`
	Frequency    string `json:"frequency,omitempty"`
	Duration     string `json:"duration,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	Quantity     int64  `json:"quantity,omitempty"`
}

type Prescription struct {
	ID                 string              `db:"id" json:"id"`
	PatientID          int64               `db:"patient_id" json:"patient_id"`
	ImageName          string              `db:"image_name" json:"image_name"`
	ExtractedMedicines []ExtractedMedicine `db:"-" json:"extracted_medicines"`
	ExtractedText      string              `db:"extracted_text" json:"extracted_text,omitempty"`
	Note               string              `db:"note" json:"note,omitempty"`
	FailureReason      string              `db:"failure_reason" json:"failure_reason,omitempty"`
	lifecycle.State
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ProcessedAt *time.Time `db:"processed_at" json:"processed_at,omitempty"`
	RejectedAt  *time.Time `db:"rejected_at" json:"rejected_at,omitempty"`
}

func (p *Prescription) Kind() lifecycle.Kind        { return lifecycle.KindPrescription }
func (p *Prescription) Lifecycle() *lifecycle.State { return &p.State }

func (p *Prescription) Stamp(m lifecycle.Milestone, at time.Time) {
	switch m {
	case lifecycle.MilestoneProcessed:
		lifecycle.SetOnce(&p.ProcessedAt, at)
	case lifecycle.MilestoneRejected:
		lifecycle.SetOnce(&p.RejectedAt, at)
	}
}
