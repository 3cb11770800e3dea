package fulfillment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/lifecycle"
)

func (s *Service) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	return load(ctx, lifecycle.KindDelivery, id, s.repo.GetDelivery)
}

// OrderDelivery returns the delivery opened for orderID when it was marked
// ready.
func (s *Service) OrderDelivery(ctx context.Context, orderID string) (*domain.Delivery, error) {
	return load(ctx, lifecycle.KindDelivery, orderID, s.repo.GetDeliveryByOrder)
}

func (s *Service) OpenDeliveries(ctx context.Context, limit int) ([]domain.Delivery, error) {
	return s.repo.ListOpenDeliveries(ctx, limit)
}

// TransitionDelivery drives a claimed delivery. Claiming itself goes through
// the assignment controller. A delivered delivery delivers its order.
func (s *Service) TransitionDelivery(ctx context.Context, id string, in TransitionInput) (*domain.Delivery, error) {
	if in.Action == lifecycle.ActionAssign {
		return nil, ErrAssignmentRequired
	}
	d, err := s.GetDelivery(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.ActorID != 0 && (d.DeliveryPartnerID == nil || *d.DeliveryPartnerID != in.ActorID) {
		return nil, fmt.Errorf("delivery %s: %w", id, ErrNotYourDelivery)
	}
	from := d.Status
	if err := s.machine.Transition(d, in.Action); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateDeliveryStatus(ctx, d, from); err != nil {
		return nil, err
	}

	if d.Status == lifecycle.DeliveryDelivered {
		var recipients []int64
		if d.DeliveryPartnerID != nil {
			recipients = append(recipients, *d.DeliveryPartnerID)
		}
		s.notify(lifecycle.KindDelivery, d.ID, d.Status, recipients...)

		if _, err := s.transitionOrder(ctx, d.OrderID, TransitionInput{Action: lifecycle.ActionDeliver}); err != nil {
			s.logger.Error("failed to deliver order",
				zap.String("order_id", d.OrderID),
				zap.String("delivery_id", d.ID),
				zap.Error(err),
			)
		}
	}
	return d, nil
}
