// Package inventory reads pharmacy stock for matching and order pricing.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"medeasy/marketplace/domain"
)

var (
	ErrNotFound     = domain.ErrNotFound
	ErrInvalidEntry = errors.New("invalid inventory entry")
)

const entryQuery = `SELECT i.id, i.pharmacy_id, i.medicine_id, m.brand_name AS name,
        COALESCE(m.generic_name, '') AS generic_name, i.unit, i.sale_price AS price,
        i.quantity AS stock, i.active, i.expiry_date
        FROM inventory i
        JOIN medicines m ON m.id = i.medicine_id`

// unexpired keeps entries whose expiry date, if any, is today or later.
const unexpired = ` AND (i.expiry_date IS NULL OR i.expiry_date >= date('now'))`

// Source is what the matching and pricing paths need from inventory.
type Source interface {
	Catalog(ctx context.Context) ([]domain.InventoryEntry, error)
	Entry(ctx context.Context, id int64) (*domain.InventoryEntry, error)
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Catalog returns every active, unexpired entry across all pharmacies.
func (r *Repository) Catalog(ctx context.Context) ([]domain.InventoryEntry, error) {
	entries := []domain.InventoryEntry{}
	err := r.db.SelectContext(ctx, &entries, entryQuery+` WHERE i.active = 1`+unexpired+` ORDER BY i.pharmacy_id, i.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory catalog: %w", err)
	}
	return entries, nil
}

func (r *Repository) Entry(ctx context.Context, id int64) (*domain.InventoryEntry, error) {
	var e domain.InventoryEntry
	err := r.db.GetContext(ctx, &e, entryQuery+` WHERE i.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("inventory entry %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory entry: %w", err)
	}
	return &e, nil
}

// Search lists in-stock entries of one pharmacy whose brand or generic name
// contains query.
func (r *Repository) Search(ctx context.Context, pharmacyID int64, query string) ([]domain.InventoryEntry, error) {
	args := []any{pharmacyID}
	q := entryQuery + ` WHERE i.pharmacy_id = ? AND i.quantity > 0 AND i.active = 1` + unexpired
	if query = strings.TrimSpace(query); query != "" {
		like := "%" + query + "%"
		q += ` AND (m.brand_name LIKE ? OR m.generic_name LIKE ?)`
		args = append(args, like, like)
	}
	q += ` ORDER BY m.brand_name LIMIT 25`

	entries := []domain.InventoryEntry{}
	if err := r.db.SelectContext(ctx, &entries, q, args...); err != nil {
		return nil, fmt.Errorf("failed to search inventory: %w", err)
	}
	return entries, nil
}

type AddInput struct {
	PharmacyID int64           `json:"pharmacy_id"`
	MedicineID int64           `json:"medicine_id"`
	Unit       string          `json:"unit"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	ExpiryDate string          `json:"expiry_date"`
}

func (r *Repository) Add(ctx context.Context, in AddInput) (int64, error) {
	if in.PharmacyID == 0 || in.MedicineID == 0 || in.Quantity <= 0 || !in.Price.IsPositive() {
		return 0, fmt.Errorf("%w: pharmacy_id, medicine_id, quantity and price are required", ErrInvalidEntry)
	}
	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		unit = "unit"
	}
	expiry, err := parseExpiry(in.ExpiryDate)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO inventory (pharmacy_id, medicine_id, unit, quantity, sale_price, expiry_date)
        VALUES (?, ?, ?, ?, ?, ?)`, in.PharmacyID, in.MedicineID, unit, in.Quantity, in.Price, expiry)
	if err != nil {
		return 0, fmt.Errorf("failed to add inventory: %w", err)
	}
	return res.LastInsertId()
}

// UpdateInput changes the listing of an entry. Nil fields are left alone and
// an empty expiry date clears it.
type UpdateInput struct {
	Unit       *string          `json:"unit,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	Active     *bool            `json:"active,omitempty"`
	ExpiryDate *string          `json:"expiry_date,omitempty"`
}

// Update rewrites the listing columns of entry id. Stock goes through
// UpdateStock.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) error {
	var (
		sets []string
		args []any
	)
	if in.Unit != nil {
		unit := strings.TrimSpace(*in.Unit)
		if unit == "" {
			return fmt.Errorf("%w: unit must not be blank", ErrInvalidEntry)
		}
		sets, args = append(sets, "unit = ?"), append(args, unit)
	}
	if in.Price != nil {
		if !in.Price.IsPositive() {
			return fmt.Errorf("%w: price must be positive", ErrInvalidEntry)
		}
		sets, args = append(sets, "sale_price = ?"), append(args, *in.Price)
	}
	if in.Active != nil {
		sets, args = append(sets, "active = ?"), append(args, *in.Active)
	}
	if in.ExpiryDate != nil {
		expiry, err := parseExpiry(*in.ExpiryDate)
		if err != nil {
			return err
		}
		sets, args = append(sets, "expiry_date = ?"), append(args, expiry)
	}
	if len(sets) == 0 {
		return fmt.Errorf("%w: nothing to update", ErrInvalidEntry)
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, `UPDATE inventory SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update inventory: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("inventory entry %d: %w", id, ErrNotFound)
	}
	return nil
}

func parseExpiry(raw string) (*string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if _, err := time.Parse(domain.ExpiryLayout, raw); err != nil {
		return nil, fmt.Errorf("%w: expiry_date must be YYYY-MM-DD", ErrInvalidEntry)
	}
	return &raw, nil
}

func (r *Repository) UpdateStock(ctx context.Context, id, quantity int64) error {
	if quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidEntry)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE inventory SET quantity = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, quantity, id)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Pharmacies(ctx context.Context) ([]domain.Pharmacy, error) {
	pharmacies := []domain.Pharmacy{}
	err := r.db.SelectContext(ctx, &pharmacies, `SELECT id, name, COALESCE(address, '') AS address,
        COALESCE(location, '') AS location, owner_id, created_at FROM pharmacies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pharmacies: %w", err)
	}
	return pharmacies, nil
}

// Medicines searches the seeded catalog by brand or generic name.
func (r *Repository) Medicines(ctx context.Context, query string) ([]domain.Medicine, error) {
	medicines := []domain.Medicine{}
	q := `SELECT id, COALESCE(brand_id, 0) AS brand_id, brand_name, COALESCE(type, '') AS type,
        COALESCE(generic_name, '') AS generic_name, COALESCE(manufacturer, '') AS manufacturer FROM medicines`
	var args []any
	if query = strings.TrimSpace(query); query != "" {
		like := "%" + query + "%"
		q += ` WHERE brand_name LIKE ? OR generic_name LIKE ?`
		args = append(args, like, like)
	}
	q += ` ORDER BY brand_name LIMIT 25`
	if err := r.db.SelectContext(ctx, &medicines, q, args...); err != nil {
		return nil, fmt.Errorf("failed to search medicines: %w", err)
	}
	return medicines, nil
}
