package store

import (
	"context"
	"fmt"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/lifecycle"
)

const labBookingColumns = `id, patient_id, laboratory_id, test_code, test_name, scheduled_at, report_url,
        gross_amount, commission_amount, net_amount, status,
        created_at, updated_at, completed_at, rejected_at, cancelled_at`

func (s *Store) CreateLabBooking(ctx context.Context, l *domain.LabBooking) error {
	_, err := s.DB.NamedExecContext(ctx, `INSERT INTO lab_bookings (`+labBookingColumns+`)
        VALUES (:id, :patient_id, :laboratory_id, :test_code, :test_name, :scheduled_at, :report_url,
        :gross_amount, :commission_amount, :net_amount, :status,
        :created_at, :updated_at, :completed_at, :rejected_at, :cancelled_at)`, l)
	if err != nil {
		return fmt.Errorf("failed to insert lab booking: %w", err)
	}
	return nil
}

func (s *Store) GetLabBooking(ctx context.Context, id string) (*domain.LabBooking, error) {
	var l domain.LabBooking
	if err := s.get(ctx, &l, `SELECT `+labBookingColumns+` FROM lab_bookings WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) UpdateLabBookingStatus(ctx context.Context, l *domain.LabBooking, from lifecycle.Status) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE lab_bookings SET
            status = ?, updated_at = ?, scheduled_at = ?,
            report_url = COALESCE(report_url, ?),
            completed_at = COALESCE(completed_at, ?),
            rejected_at = COALESCE(rejected_at, ?),
            cancelled_at = COALESCE(cancelled_at, ?)
        WHERE id = ? AND status = ?`,
		l.Status, l.UpdatedAt, l.ScheduledAt, l.ReportURL, l.CompletedAt, l.RejectedAt, l.CancelledAt, l.ID, from)
	if err != nil {
		return fmt.Errorf("failed to update lab booking status: %w", err)
	}
	return s.guarded(ctx, res, "lab_bookings", l.ID)
}
