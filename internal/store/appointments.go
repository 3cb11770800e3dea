package store

import (
	"context"
	"fmt"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/lifecycle"
)

const appointmentColumns = `id, patient_id, doctor_id, scheduled_at, mode, notes,
        gross_amount, commission_amount, net_amount, status,
        created_at, updated_at, confirmed_at, completed_at, cancelled_at`

func (s *Store) CreateAppointment(ctx context.Context, a *domain.Appointment) error {
	_, err := s.DB.NamedExecContext(ctx, `INSERT INTO appointments (`+appointmentColumns+`)
        VALUES (:id, :patient_id, :doctor_id, :scheduled_at, :mode, :notes,
        :gross_amount, :commission_amount, :net_amount, :status,
        :created_at, :updated_at, :confirmed_at, :completed_at, :cancelled_at)`, a)
	if err != nil {
		return fmt.Errorf("failed to insert appointment: %w", err)
	}
	return nil
}

func (s *Store) GetAppointment(ctx context.Context, id string) (*domain.Appointment, error) {
	var a domain.Appointment
	if err := s.get(ctx, &a, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) UpdateAppointmentStatus(ctx context.Context, a *domain.Appointment, from lifecycle.Status) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE appointments SET
            status = ?, updated_at = ?, scheduled_at = ?,
            confirmed_at = COALESCE(confirmed_at, ?),
            completed_at = COALESCE(completed_at, ?),
            cancelled_at = COALESCE(cancelled_at, ?)
        WHERE id = ? AND status = ?`,
		a.Status, a.UpdatedAt, a.ScheduledAt, a.ConfirmedAt, a.CompletedAt, a.CancelledAt, a.ID, from)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	return s.guarded(ctx, res, "appointments", a.ID)
}
