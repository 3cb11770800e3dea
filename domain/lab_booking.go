package domain

import (
	"time"

	"medeasy/marketplace/internal/lifecycle"
)

// LabBooking is a diagnostic test booked with a laboratory.
type LabBooking struct {
	ID           string    `db:"id" json:"id"`
	PatientID    int64     `db:"patient_id" json:"patient_id"`
	LaboratoryID int64     `db:"laboratory_id" json:"laboratory_id"`
	TestCode     string    `db:"test_code" json:"test_code"`
	TestName     string    `db:"test_name" json:"test_name"`
	ScheduledAt  time.Time `db:"scheduled_at" json:"scheduled_at"`
	ReportURL    *string   `db:"report_url" json:"report_url,omitempty"`
	Amounts
	lifecycle.State
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	RejectedAt  *time.Time `db:"rejected_at" json:"rejected_at,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

func (l *LabBooking) Kind() lifecycle.Kind        { return lifecycle.KindLabBooking }
func (l *LabBooking) Lifecycle() *lifecycle.State { return &l.State }

func (l *LabBooking) Stamp(m lifecycle.Milestone, at time.Time) {
	switch m {
	case lifecycle.MilestoneCompleted:
		lifecycle.SetOnce(&l.CompletedAt, at)
	case lifecycle.MilestoneRejected:
		lifecycle.SetOnce(&l.RejectedAt, at)
	case lifecycle.MilestoneCancelled:
		lifecycle.SetOnce(&l.CancelledAt, at)
	}
}
