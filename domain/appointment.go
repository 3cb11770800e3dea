package domain

import (
	"time"

	"medeasy/marketplace/internal/lifecycle"
)

// Appointment is a paid consultation with a doctor.
type Appointment struct {
	ID          string    `db:"id" json:"id"`
	PatientID   int64     `db:"patient_id" json:"patient_id"`
	DoctorID    int64     `db:"doctor_id" json:"doctor_id"`
	ScheduledAt time.Time `db:"scheduled_at" json:"scheduled_at"`
	Mode        string    `db:"mode" json:"mode"`
	Notes       string    `db:"notes" json:"notes,omitempty"`
	Amounts
	lifecycle.State
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

func (a *Appointment) Kind() lifecycle.Kind        { return lifecycle.KindAppointment }
func (a *Appointment) Lifecycle() *lifecycle.State { return &a.State }

func (a *Appointment) Stamp(m lifecycle.Milestone, at time.Time) {
	switch m {
	case lifecycle.MilestoneConfirmed:
		lifecycle.SetOnce(&a.ConfirmedAt, at)
	case lifecycle.MilestoneCompleted:
		lifecycle.SetOnce(&a.CompletedAt, at)
	case lifecycle.MilestoneCancelled:
		lifecycle.SetOnce(&a.CancelledAt, at)
	}
}
