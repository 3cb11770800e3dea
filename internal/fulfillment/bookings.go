package fulfillment

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/commission"
	"medeasy/marketplace/internal/lifecycle"
)

type BookAppointmentInput struct {
	PatientID   int64           `json:"-"`
	DoctorID    int64           `json:"doctor_id"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	Mode        string          `json:"mode"`
	Notes       string          `json:"notes"`
	Fee         decimal.Decimal `json:"fee"`
}

func (s *Service) BookAppointment(ctx context.Context, in BookAppointmentInput) (*domain.Appointment, error) {
	if in.DoctorID <= 0 || in.ScheduledAt.IsZero() {
		return nil, invalid("doctor_id and scheduled_at are required")
	}
	split, err := s.cfg.Schedule.Split(commission.KindAppointment, in.Fee)
	if err != nil {
		return nil, err
	}
	mode := strings.TrimSpace(in.Mode)
	if mode == "" {
		mode = "in_person"
	}

	id, now := s.newRecord()
	a := &domain.Appointment{
		ID:          id,
		PatientID:   in.PatientID,
		DoctorID:    in.DoctorID,
		ScheduledAt: in.ScheduledAt.UTC(),
		Mode:        mode,
		Notes:       in.Notes,
		Amounts:     domain.AmountsFrom(split),
		State:       lifecycle.State{Status: lifecycle.AppointmentTable().Initial(), UpdatedAt: now},
		CreatedAt:   now,
	}
	if err := s.repo.CreateAppointment(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("appointment booked", zap.String("appointment_id", a.ID), zap.Int64("doctor_id", a.DoctorID))
	return a, nil
}

func (s *Service) GetAppointment(ctx context.Context, id string) (*domain.Appointment, error) {
	return load(ctx, lifecycle.KindAppointment, id, s.repo.GetAppointment)
}

func (s *Service) TransitionAppointment(ctx context.Context, id string, in TransitionInput) (*domain.Appointment, error) {
	a, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	from := a.Status
	if err := s.machine.Transition(a, in.Action); err != nil {
		return nil, err
	}
	if in.Action == lifecycle.ActionSchedule && in.ScheduledAt != nil {
		a.ScheduledAt = in.ScheduledAt.UTC()
	}
	if err := s.repo.UpdateAppointmentStatus(ctx, a, from); err != nil {
		return nil, err
	}
	if a.Status == lifecycle.AppointmentConfirmed {
		s.notify(lifecycle.KindAppointment, a.ID, a.Status, a.PatientID, a.DoctorID)
	}
	return a, nil
}

type BookLabTestInput struct {
	PatientID    int64           `json:"-"`
	LaboratoryID int64           `json:"laboratory_id"`
	TestCode     string          `json:"test_code"`
	TestName     string          `json:"test_name"`
	ScheduledAt  time.Time       `json:"scheduled_at"`
	Price        decimal.Decimal `json:"price"`
}

func (s *Service) BookLabTest(ctx context.Context, in BookLabTestInput) (*domain.LabBooking, error) {
	code := strings.TrimSpace(in.TestCode)
	if in.LaboratoryID <= 0 || code == "" || in.ScheduledAt.IsZero() {
		return nil, invalid("laboratory_id, test_code and scheduled_at are required")
	}
	split, err := s.cfg.Schedule.Split(commission.KindLabBooking, in.Price)
	if err != nil {
		return nil, err
	}

	id, now := s.newRecord()
	l := &domain.LabBooking{
		ID:           id,
		PatientID:    in.PatientID,
		LaboratoryID: in.LaboratoryID,
		TestCode:     code,
		TestName:     strings.TrimSpace(in.TestName),
		ScheduledAt:  in.ScheduledAt.UTC(),
		Amounts:      domain.AmountsFrom(split),
		State:        lifecycle.State{Status: lifecycle.LabBookingTable().Initial(), UpdatedAt: now},
		CreatedAt:    now,
	}
	if err := s.repo.CreateLabBooking(ctx, l); err != nil {
		return nil, err
	}
	s.logger.Info("lab test booked", zap.String("lab_booking_id", l.ID), zap.String("test_code", l.TestCode))
	return l, nil
}

func (s *Service) GetLabBooking(ctx context.Context, id string) (*domain.LabBooking, error) {
	return load(ctx, lifecycle.KindLabBooking, id, s.repo.GetLabBooking)
}

func (s *Service) TransitionLabBooking(ctx context.Context, id string, in TransitionInput) (*domain.LabBooking, error) {
	l, err := s.GetLabBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	from := l.Status
	if err := s.machine.Transition(l, in.Action); err != nil {
		return nil, err
	}
	switch {
	case in.Action == lifecycle.ActionRebook && in.ScheduledAt != nil:
		l.ScheduledAt = in.ScheduledAt.UTC()
	case in.Action == lifecycle.ActionPublishReport && strings.TrimSpace(in.ReportURL) != "":
		url := strings.TrimSpace(in.ReportURL)
		l.ReportURL = &url
	}
	if err := s.repo.UpdateLabBookingStatus(ctx, l, from); err != nil {
		return nil, err
	}
	if l.Status == lifecycle.LabReportReady {
		s.notify(lifecycle.KindLabBooking, l.ID, l.Status, l.PatientID)
	}
	return l, nil
}
