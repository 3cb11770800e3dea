package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/commission"
	"medeasy/marketplace/internal/lifecycle"
)

type OrderLine struct {
	InventoryID int64 `json:"inventory_id"`
	Quantity    int64 `json:"quantity"`
}

type PlaceOrderInput struct {
	PatientID       int64       `json:"-"`
	PharmacyID      int64       `json:"pharmacy_id"`
	PrescriptionID  *string     `json:"prescription_id,omitempty"`
	DeliveryAddress string      `json:"delivery_address"`
	Items           []OrderLine `json:"items"`
}

// PlaceOrder prices the lines from current inventory and stores a PENDING
// order. Stock is checked but not reserved.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*domain.Order, error) {
	if in.PharmacyID <= 0 || len(in.Items) == 0 {
		return nil, invalid("pharmacy_id and at least one item are required")
	}
	if in.PrescriptionID != nil {
		if _, err := load(ctx, lifecycle.KindPrescription, *in.PrescriptionID, s.repo.GetPrescription); err != nil {
			return nil, err
		}
	}

	id, now := s.newRecord()
	items := make([]domain.OrderItem, 0, len(in.Items))
	gross := decimal.Zero
	for _, line := range in.Items {
		if line.InventoryID <= 0 || line.Quantity <= 0 {
			return nil, invalid("inventory_id and a positive quantity are required for each item")
		}
		entry, err := s.inventory.Entry(ctx, line.InventoryID)
		if errors.Is(err, ErrNotFound) {
			return nil, invalid("inventory entry %d does not exist", line.InventoryID)
		}
		if err != nil {
			return nil, err
		}
		if entry.PharmacyID != in.PharmacyID {
			return nil, invalid("inventory entry %d is not stocked by pharmacy %d", line.InventoryID, in.PharmacyID)
		}
		if entry.Expired(s.now()) {
			return nil, fmt.Errorf("%w: %s expired on %s", ErrExpiredStock, entry.Name, *entry.ExpiryDate)
		}
		if !entry.Available() || entry.Stock < line.Quantity {
			return nil, fmt.Errorf("%w: %s has %d in stock", ErrInsufficientStock, entry.Name, entry.Stock)
		}
		subtotal := entry.Price.Mul(decimal.NewFromInt(line.Quantity))
		gross = gross.Add(subtotal)
		items = append(items, domain.OrderItem{
			OrderID:      id,
			InventoryID:  entry.ID,
			MedicineName: entry.Name,
			Quantity:     line.Quantity,
			UnitPrice:    entry.Price,
			Subtotal:     subtotal,
		})
	}

	split, err := s.cfg.Schedule.Split(commission.KindOrder, gross)
	if err != nil {
		return nil, err
	}

	o := &domain.Order{
		ID:              id,
		PatientID:       in.PatientID,
		PharmacyID:      in.PharmacyID,
		PrescriptionID:  in.PrescriptionID,
		DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
		Amounts:         domain.AmountsFrom(split),
		State:           lifecycle.State{Status: lifecycle.OrderTable().Initial(), UpdatedAt: now},
		CreatedAt:       now,
		Items:           items,
	}
	if err := s.repo.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	s.logger.Info("order placed",
		zap.String("order_id", o.ID),
		zap.Int64("pharmacy_id", o.PharmacyID),
		zap.String("gross", o.GrossAmount.StringFixed(2)),
	)
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return load(ctx, lifecycle.KindOrder, id, s.repo.GetOrder)
}

// TransitionOrder applies in.Action to the order. mark_ready also opens the
// order's delivery in the same write, and cancelling a ready order cancels
// its unclaimed delivery with it. dispatch and deliver only follow the
// delivery and are refused here.
func (s *Service) TransitionOrder(ctx context.Context, id string, in TransitionInput) (*domain.Order, error) {
	switch in.Action {
	case lifecycle.ActionDispatch, lifecycle.ActionDeliver:
		return nil, fmt.Errorf("%s order %s: %w", in.Action, id, ErrDeliveryDriven)
	}
	return s.transitionOrder(ctx, id, in)
}

func (s *Service) transitionOrder(ctx context.Context, id string, in TransitionInput) (*domain.Order, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	from := o.Status
	if err := s.machine.Transition(o, in.Action); err != nil {
		return nil, err
	}

	switch {
	case in.Action == lifecycle.ActionMarkReady:
		d, err := s.deliveryFor(ctx, o)
		if err != nil {
			return nil, err
		}
		if err := s.repo.ReadyOrder(ctx, o, from, d); err != nil {
			return nil, err
		}
		s.logger.Info("delivery opened", zap.String("order_id", o.ID), zap.String("delivery_id", d.ID))
	case o.Status == lifecycle.OrderCancelled && opensDelivery(from):
		if err := s.cancelWithDelivery(ctx, o, from); err != nil {
			return nil, err
		}
	default:
		if err := s.repo.UpdateOrderStatus(ctx, o, from); err != nil {
			return nil, err
		}
	}

	switch o.Status {
	case lifecycle.OrderConfirmed, lifecycle.OrderCancelled, lifecycle.OrderDelivered:
		s.notify(lifecycle.KindOrder, o.ID, o.Status, o.PatientID)
	}
	return o, nil
}

// opensDelivery reports whether an order in status has a delivery row.
func opensDelivery(status lifecycle.Status) bool {
	return status == lifecycle.OrderReadyForDelivery || status == lifecycle.OrderOutForDelivery
}

// cancelWithDelivery writes a cancelled order together with its delivery. A
// delivery a partner is still working must be escalated with report_issue
// before the order can be cancelled.
func (s *Service) cancelWithDelivery(ctx context.Context, o *domain.Order, from lifecycle.Status) error {
	d, err := load(ctx, lifecycle.KindDelivery, o.ID, s.repo.GetDeliveryByOrder)
	if err != nil {
		return err
	}
	if d.Status == lifecycle.DeliveryCancelled {
		return s.repo.UpdateOrderStatus(ctx, o, from)
	}
	deliveryFrom := d.Status
	if err := s.machine.Transition(d, lifecycle.ActionCancel); err != nil {
		if errors.Is(err, lifecycle.ErrInvalidTransition) {
			return fmt.Errorf("order %s: delivery %s is %s: %w", o.ID, d.ID, d.Status, ErrDeliveryUnderway)
		}
		return err
	}
	if err := s.repo.CancelOrder(ctx, o, from, d, deliveryFrom); err != nil {
		return err
	}
	s.logger.Info("delivery cancelled with its order", zap.String("order_id", o.ID), zap.String("delivery_id", d.ID))
	if d.DeliveryPartnerID != nil {
		s.notify(lifecycle.KindDelivery, d.ID, d.Status, *d.DeliveryPartnerID)
	}
	return nil
}

// MarkOutForDelivery dispatches the order once its delivery is claimed.
func (s *Service) MarkOutForDelivery(ctx context.Context, orderID string) error {
	_, err := s.transitionOrder(ctx, orderID, TransitionInput{Action: lifecycle.ActionDispatch})
	return err
}

func (s *Service) deliveryFor(ctx context.Context, o *domain.Order) (*domain.Delivery, error) {
	split, err := s.cfg.Schedule.Split(commission.KindDelivery, s.cfg.DeliveryFee)
	if err != nil {
		return nil, fmt.Errorf("delivery fee: %w", err)
	}
	pharmacy, err := s.repo.GetPharmacy(ctx, o.PharmacyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pharmacy %d: %w", o.PharmacyID, err)
	}
	id, now := s.newRecord()
	return &domain.Delivery{
		ID:             id,
		OrderID:        o.ID,
		PickupAddress:  pharmacy.Address,
		DropoffAddress: o.DeliveryAddress,
		Amounts:        domain.AmountsFrom(split),
		State:          lifecycle.State{Status: lifecycle.DeliveryTable().Initial(), UpdatedAt: now},
		CreatedAt:      now,
	}, nil
}
