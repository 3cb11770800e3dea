// Package assignment arbitrates delivery partners racing for the same
// delivery. Exactly one claim on a PENDING, unclaimed delivery wins.
package assignment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/lifecycle"
	"medeasy/marketplace/internal/notify"
)

var (
	ErrAlreadyAssigned    = errors.New("delivery already assigned")
	ErrNotFound           = domain.ErrNotFound
	ErrPartnerUnavailable = errors.New("delivery partner unavailable")
	ErrNoOpenDeliveries   = errors.New("no open deliveries")
	ErrInvalidCapacity    = errors.New("max_concurrent_deliveries must not be negative")
)

// Claimer persists a claim. ClaimDelivery must be atomic: it writes the
// partner only when the stored row is still unclaimed and PENDING, and
// reports whether this call did the write.
type Claimer interface {
	GetDelivery(ctx context.Context, id string) (*domain.Delivery, error)
	ClaimDelivery(ctx context.Context, d *domain.Delivery) (bool, error)
}

// Pool lists candidates and partner capacity for AcceptNext.
type Pool interface {
	ListOpenDeliveries(ctx context.Context, limit int) ([]domain.Delivery, error)
	CountActiveDeliveries(ctx context.Context, partnerID int64) (int, error)
	GetDeliveryPartner(ctx context.Context, userID int64) (*domain.DeliveryPartner, error)
	SaveDeliveryPartner(ctx context.Context, p *domain.DeliveryPartner) error
}

type Store interface {
	Claimer
	Pool
}

// OrderDispatcher moves the order behind a claimed delivery out for delivery.
type OrderDispatcher interface {
	MarkOutForDelivery(ctx context.Context, orderID string) error
}

// defaultCapacity is the concurrent delivery limit of a new partner profile.
const defaultCapacity = 3

type Controller struct {
	store    Store
	machine  *lifecycle.Machine
	orders   OrderDispatcher
	notifier notify.Notifier
	logger   *zap.Logger
	pageSize int
}

func NewController(store Store, machine *lifecycle.Machine, orders OrderDispatcher, notifier notify.Notifier, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:    store,
		machine:  machine,
		orders:   orders,
		notifier: notifier,
		logger:   logger,
		pageSize: 25,
	}
}

// Accept claims deliveryID for partnerID. A delivery that is claimed,
// cancelled or otherwise past PENDING yields ErrAlreadyAssigned; callers
// should offer the partner another delivery instead of retrying this one.
func (c *Controller) Accept(ctx context.Context, deliveryID string, partnerID int64) (*domain.Delivery, error) {
	d, err := c.store.GetDelivery(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("delivery %s: %w", deliveryID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load delivery: %w", err)
	}
	if d.Claimed() {
		return nil, fmt.Errorf("delivery %s: %w", deliveryID, ErrAlreadyAssigned)
	}

	claim := *d
	if err := c.machine.Transition(&claim, lifecycle.ActionAssign); err != nil {
		if errors.Is(err, lifecycle.ErrInvalidTransition) {
			return nil, fmt.Errorf("delivery %s is %s: %w", deliveryID, d.Status, ErrAlreadyAssigned)
		}
		return nil, err
	}
	claim.DeliveryPartnerID = &partnerID

	won, err := c.store.ClaimDelivery(ctx, &claim)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("delivery %s: %w", deliveryID, ErrAlreadyAssigned)
	}

	c.logger.Info("delivery claimed",
		zap.String("delivery_id", claim.ID),
		zap.String("order_id", claim.OrderID),
		zap.Int64("partner_id", partnerID),
	)

	if c.orders != nil {
		if err := c.orders.MarkOutForDelivery(ctx, claim.OrderID); err != nil {
			c.logger.Error("failed to mark order out for delivery",
				zap.String("order_id", claim.OrderID), zap.Error(err))
		}
	}
	if c.notifier != nil {
		c.notifier.Notify(notify.NewEvent(lifecycle.KindDelivery, claim.ID, claim.Status, partnerID))
	}
	return &claim, nil
}

// AcceptNext claims the oldest open delivery the partner can win. The
// capacity check is advisory; the claim itself is what arbitrates.
func (c *Controller) AcceptNext(ctx context.Context, partnerID int64) (*domain.Delivery, error) {
	p, err := c.store.GetDeliveryPartner(ctx, partnerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("partner %d has no profile: %w", partnerID, ErrPartnerUnavailable)
		}
		return nil, err
	}
	if !p.Available {
		return nil, fmt.Errorf("partner %d is off duty: %w", partnerID, ErrPartnerUnavailable)
	}
	active, err := c.store.CountActiveDeliveries(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	if active >= p.MaxConcurrentDeliveries {
		return nil, fmt.Errorf("partner %d holds %d of %d deliveries: %w",
			partnerID, active, p.MaxConcurrentDeliveries, ErrPartnerUnavailable)
	}

	open, err := c.store.ListOpenDeliveries(ctx, c.pageSize)
	if err != nil {
		return nil, err
	}
	for _, candidate := range open {
		d, err := c.Accept(ctx, candidate.ID, partnerID)
		switch {
		case err == nil:
			return d, nil
		case errors.Is(err, ErrAlreadyAssigned), errors.Is(err, ErrNotFound):
			continue
		default:
			return nil, err
		}
	}
	return nil, ErrNoOpenDeliveries
}

// Partner returns the partner's capacity profile.
func (c *Controller) Partner(ctx context.Context, partnerID int64) (*domain.DeliveryPartner, error) {
	p, err := c.store.GetDeliveryPartner(ctx, partnerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("partner %d: %w", partnerID, ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

// SetAvailability puts the partner on or off duty. A positive
// maxConcurrent replaces the capacity; zero keeps the current one.
func (c *Controller) SetAvailability(ctx context.Context, partnerID int64, available bool, maxConcurrent int) (*domain.DeliveryPartner, error) {
	if maxConcurrent < 0 {
		return nil, ErrInvalidCapacity
	}
	p, err := c.store.GetDeliveryPartner(ctx, partnerID)
	switch {
	case errors.Is(err, ErrNotFound):
		p = &domain.DeliveryPartner{UserID: partnerID, MaxConcurrentDeliveries: defaultCapacity}
	case err != nil:
		return nil, err
	}
	p.Available = available
	if maxConcurrent > 0 {
		p.MaxConcurrentDeliveries = maxConcurrent
	}
	if err := c.store.SaveDeliveryPartner(ctx, p); err != nil {
		return nil, err
	}
	c.logger.Info("partner availability changed",
		zap.Int64("partner_id", partnerID),
		zap.Bool("available", p.Available),
		zap.Int("max_concurrent_deliveries", p.MaxConcurrentDeliveries),
	)
	return p, nil
}
