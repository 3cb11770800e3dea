package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpiryLayout is the date format of inventory expiry dates.
const ExpiryLayout = "2006-01-02"

// InventoryEntry is a pharmacy's stock line for one medicine, as seen by the
// fulfillment core. Inventory management owns the rows.
type InventoryEntry struct {
	ID          int64           `db:"id" json:"id"`
	PharmacyID  int64           `db:"pharmacy_id" json:"pharmacy_id"`
	MedicineID  int64           `db:"medicine_id" json:"medicine_id"`
	Name        string          `db:"name" json:"name"`
	GenericName string          `db:"generic_name" json:"generic_name,omitempty"`
	Unit        string          `db:"unit" json:"unit"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int64           `db:"stock" json:"stock"`
	Active      bool            `db:"active" json:"active"`
	ExpiryDate  *string         `db:"expiry_date" json:"expiry_date,omitempty"`
}

// Available reports whether the entry can fill an order right now.
func (e InventoryEntry) Available() bool {
	return e.Active && e.Stock > 0
}

// Expired reports whether the entry's expiry date lies before the day of on.
// Entries without an expiry date do not expire.
func (e InventoryEntry) Expired(on time.Time) bool {
	if e.ExpiryDate == nil {
		return false
	}
	if _, err := time.Parse(ExpiryLayout, *e.ExpiryDate); err != nil {
		return false
	}
	return *e.ExpiryDate < on.Format(ExpiryLayout)
}
