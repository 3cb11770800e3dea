// Package fulfillment holds the marketplace use cases: pricing and creating
// transactions, moving them through their lifecycles and running
// prescriptions through OCR and matching.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/commission"
	"medeasy/marketplace/internal/inventory"
	"medeasy/marketplace/internal/lifecycle"
	"medeasy/marketplace/internal/matching"
	"medeasy/marketplace/internal/notify"
	"medeasy/marketplace/internal/ocr"
)

var (
	ErrNotFound         = domain.ErrNotFound
	ErrConcurrentUpdate = domain.ErrConcurrentUpdate

	ErrInvalidRequest     = errors.New("invalid request")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrExpiredStock       = errors.New("stock has expired")
	ErrAssignmentRequired = errors.New("deliveries are assigned by accepting them")
	ErrDeliveryDriven     = errors.New("orders are dispatched and delivered through their delivery")
	ErrDeliveryUnderway   = errors.New("order's delivery is already underway")
	ErrNotYourDelivery    = errors.New("delivery belongs to another partner")
	ErrNotProcessed       = errors.New("prescription has not been processed")
)

// Repository is the persistence the use cases need. Every Update* method is
// guarded on the status passed as from and fails with ErrConcurrentUpdate
// when the row has moved on.
type Repository interface {
	GetPharmacy(ctx context.Context, id int64) (*domain.Pharmacy, error)

	CreateOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, o *domain.Order, from lifecycle.Status) error
	ReadyOrder(ctx context.Context, o *domain.Order, from lifecycle.Status, d *domain.Delivery) error
	CancelOrder(ctx context.Context, o *domain.Order, from lifecycle.Status, d *domain.Delivery, deliveryFrom lifecycle.Status) error

	CreateAppointment(ctx context.Context, a *domain.Appointment) error
	GetAppointment(ctx context.Context, id string) (*domain.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, a *domain.Appointment, from lifecycle.Status) error

	CreateLabBooking(ctx context.Context, l *domain.LabBooking) error
	GetLabBooking(ctx context.Context, id string) (*domain.LabBooking, error)
	UpdateLabBookingStatus(ctx context.Context, l *domain.LabBooking, from lifecycle.Status) error

	GetDelivery(ctx context.Context, id string) (*domain.Delivery, error)
	GetDeliveryByOrder(ctx context.Context, orderID string) (*domain.Delivery, error)
	UpdateDeliveryStatus(ctx context.Context, d *domain.Delivery, from lifecycle.Status) error
	ListOpenDeliveries(ctx context.Context, limit int) ([]domain.Delivery, error)

	CreatePrescription(ctx context.Context, p *domain.Prescription) error
	GetPrescription(ctx context.Context, id string) (*domain.Prescription, error)
	UpdatePrescription(ctx context.Context, p *domain.Prescription, from lifecycle.Status) error
}

type Config struct {
	Schedule    commission.Schedule
	DeliveryFee decimal.Decimal
}

// TransitionInput names the action to apply and the data some actions carry.
type TransitionInput struct {
	Action lifecycle.Action `json:"action"`
	// ScheduledAt is taken by schedule (appointments) and rebook (lab bookings).
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	// ReportURL is taken by publish_report.
	ReportURL string `json:"report_url,omitempty"`
	// ActorID is the delivery partner driving a delivery. It must hold the
	// delivery; zero skips the check.
	ActorID int64 `json:"-"`
}

type Service struct {
	repo      Repository
	inventory inventory.Source
	extractor ocr.Extractor
	notifier  notify.Notifier
	machine   *lifecycle.Machine
	matcher   *matching.Engine
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(repo Repository, inv inventory.Source, extractor ocr.Extractor, notifier notify.Notifier, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		inventory: inv,
		extractor: extractor,
		notifier:  notifier,
		machine:   lifecycle.NewMachine(),
		matcher:   matching.NewEngine(),
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source for records and transitions.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.machine.WithClock(now)
	return s
}

// WithMatcher replaces the matching engine, for example to add a scorer.
func (s *Service) WithMatcher(m *matching.Engine) *Service {
	s.matcher = m
	return s
}

// Machine exposes the lifecycle machine so the assignment controller applies
// the same tables and clock.
func (s *Service) Machine() *lifecycle.Machine { return s.machine }

// QuoteSplit prices gross for kind without persisting anything.
func (s *Service) QuoteSplit(kind commission.Kind, gross decimal.Decimal) (commission.Split, error) {
	return s.cfg.Schedule.Split(kind, gross)
}

func (s *Service) newRecord() (string, time.Time) {
	return uuid.New().String(), s.now()
}

func (s *Service) notify(kind lifecycle.Kind, id string, status lifecycle.Status, recipients ...int64) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(notify.NewEvent(kind, id, status, recipients...))
}

// load wraps repository lookups so a miss names the record.
func load[T any](ctx context.Context, kind lifecycle.Kind, id string, get func(context.Context, string) (T, error)) (T, error) {
	v, err := get(ctx, id)
	if err != nil {
		var zero T
		if errors.Is(err, ErrNotFound) {
			return zero, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
		}
		return zero, fmt.Errorf("failed to load %s: %w", kind, err)
	}
	return v, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
