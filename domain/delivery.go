package domain

import (
	"time"

	"medeasy/marketplace/internal/lifecycle"
)

// Delivery carries a ready order from its pharmacy to the patient.
// DeliveryPartnerID is nil until a partner claims it and never changes after.
// Amounts prices the delivery fee.
type Delivery struct {
	ID                string `db:"id" json:"id"`
	OrderID           string `db:"order_id" json:"order_id"`
	DeliveryPartnerID *int64 `db:"delivery_partner_id" json:"delivery_partner_id,omitempty"`
	PickupAddress     string `db:"pickup_address" json:"pickup_address"`
	DropoffAddress    string `db:"dropoff_address" json:"dropoff_address"`
	Amounts
	lifecycle.State
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	AssignedAt  *time.Time `db:"assigned_at" json:"assigned_at,omitempty"`
	PickedUpAt  *time.Time `db:"picked_up_at" json:"picked_up_at,omitempty"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

func (d *Delivery) Kind() lifecycle.Kind        { return lifecycle.KindDelivery }
func (d *Delivery) Lifecycle() *lifecycle.State { return &d.State }

func (d *Delivery) Stamp(m lifecycle.Milestone, at time.Time) {
	switch m {
	case lifecycle.MilestoneAssigned:
		lifecycle.SetOnce(&d.AssignedAt, at)
	case lifecycle.MilestonePickedUp:
		lifecycle.SetOnce(&d.PickedUpAt, at)
	case lifecycle.MilestoneDelivered:
		lifecycle.SetOnce(&d.DeliveredAt, at)
	case lifecycle.MilestoneCancelled:
		lifecycle.SetOnce(&d.CancelledAt, at)
	}
}

// Claimed reports whether a partner holds the delivery.
func (d *Delivery) Claimed() bool { return d.DeliveryPartnerID != nil }
