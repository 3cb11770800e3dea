package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"medeasy/marketplace/internal/lifecycle"
)

// Order is a patient's medicine purchase from one pharmacy.
type Order struct {
	ID              string  `db:"id" json:"id"`
	PatientID       int64   `db:"patient_id" json:"patient_id"`
	PharmacyID      int64   `db:"pharmacy_id" json:"pharmacy_id"`
	PrescriptionID  *string `db:"prescription_id" json:"prescription_id,omitempty"`
	DeliveryAddress string  `db:"delivery_address" json:"delivery_address"`
	Amounts
	lifecycle.State
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	ConfirmedAt *time.Time  `db:"confirmed_at" json:"confirmed_at,omitempty"`
	DeliveredAt *time.Time  `db:"delivered_at" json:"delivered_at,omitempty"`
	CancelledAt *time.Time  `db:"cancelled_at" json:"cancelled_at,omitempty"`
	Items       []OrderItem `db:"-" json:"items"`
}

type OrderItem struct {
	ID           int64           `db:"id" json:"id"`
	OrderID      string          `db:"order_id" json:"order_id"`
	InventoryID  int64           `db:"inventory_id" json:"inventory_id"`
	MedicineName string          `db:"medicine_name" json:"medicine_name"`
	Quantity     int64           `db:"quantity" json:"quantity"`
	UnitPrice    decimal.Decimal `db:"unit_price" json:"unit_price"`
	Subtotal     decimal.Decimal `db:"subtotal" json:"subtotal"`
}

func (o *Order) Kind() lifecycle.Kind        { return lifecycle.KindOrder }
func (o *Order) Lifecycle() *lifecycle.State { return &o.State }

func (o *Order) Stamp(m lifecycle.Milestone, at time.Time) {
	switch m {
	case lifecycle.MilestoneConfirmed:
		lifecycle.SetOnce(&o.ConfirmedAt, at)
	case lifecycle.MilestoneDelivered:
		lifecycle.SetOnce(&o.DeliveredAt, at)
	case lifecycle.MilestoneCancelled:
		lifecycle.SetOnce(&o.CancelledAt, at)
	}
}
