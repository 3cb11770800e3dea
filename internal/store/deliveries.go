package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/lifecycle"
)

const deliveryColumns = `id, order_id, delivery_partner_id, pickup_address, dropoff_address,
        gross_amount, commission_amount, net_amount, status, held_status,
        created_at, updated_at, assigned_at, picked_up_at, delivered_at, cancelled_at`

const insertDelivery = `INSERT INTO deliveries (` + deliveryColumns + `)
        VALUES (:id, :order_id, :delivery_partner_id, :pickup_address, :dropoff_address,
        :gross_amount, :commission_amount, :net_amount, :status, :held_status,
        :created_at, :updated_at, :assigned_at, :picked_up_at, :delivered_at, :cancelled_at)`

// activeDeliveryStatuses count against a partner's concurrent capacity.
var activeDeliveryStatuses = []lifecycle.Status{
	lifecycle.DeliveryAssigned,
	lifecycle.DeliveryPickedUp,
	lifecycle.DeliveryInTransit,
	lifecycle.DeliveryIssueReported,
}

func (s *Store) CreateDelivery(ctx context.Context, d *domain.Delivery) error {
	if d.DeliveryPartnerID != nil {
		return fmt.Errorf("new delivery %s must not carry a partner", d.ID)
	}
	_, err := s.DB.NamedExecContext(ctx, insertDelivery, d)
	if err != nil {
		return fmt.Errorf("failed to insert delivery: %w", err)
	}
	return nil
}

func (s *Store) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	var d domain.Delivery
	if err := s.get(ctx, &d, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) GetDeliveryByOrder(ctx context.Context, orderID string) (*domain.Delivery, error) {
	var d domain.Delivery
	if err := s.get(ctx, &d, `SELECT `+deliveryColumns+` FROM deliveries WHERE order_id = ?`, orderID); err != nil {
		return nil, err
	}
	return &d, nil
}

// ClaimDelivery is the only statement that writes delivery_partner_id. It
// succeeds for exactly one caller: the row must still be unclaimed and
// PENDING when the update runs. It reports whether this caller won.
func (s *Store) ClaimDelivery(ctx context.Context, d *domain.Delivery) (bool, error) {
	if d.DeliveryPartnerID == nil {
		return false, fmt.Errorf("claim of delivery %s has no partner", d.ID)
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE deliveries SET
            delivery_partner_id = ?, status = ?, held_status = '',
            assigned_at = COALESCE(assigned_at, ?), updated_at = ?
        WHERE id = ? AND delivery_partner_id IS NULL AND status = ?`,
		*d.DeliveryPartnerID, d.Status, d.AssignedAt, d.UpdatedAt, d.ID, lifecycle.DeliveryPending)
	if err != nil {
		return false, fmt.Errorf("failed to claim delivery: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

const updateDeliveryStatus = `UPDATE deliveries SET
            status = ?, held_status = ?, updated_at = ?,
            picked_up_at = COALESCE(picked_up_at, ?),
            delivered_at = COALESCE(delivered_at, ?),
            cancelled_at = COALESCE(cancelled_at, ?)
        WHERE id = ? AND status = ?`

func deliveryStatusArgs(d *domain.Delivery, from lifecycle.Status) []any {
	return []any{d.Status, d.Held, d.UpdatedAt, d.PickedUpAt, d.DeliveredAt, d.CancelledAt, d.ID, from}
}

// UpdateDeliveryStatus moves a delivery along its lifecycle. It leaves the
// partner column alone.
func (s *Store) UpdateDeliveryStatus(ctx context.Context, d *domain.Delivery, from lifecycle.Status) error {
	res, err := s.DB.ExecContext(ctx, updateDeliveryStatus, deliveryStatusArgs(d, from)...)
	if err != nil {
		return fmt.Errorf("failed to update delivery status: %w", err)
	}
	return s.guarded(ctx, res, "deliveries", d.ID)
}

// ListOpenDeliveries returns unclaimed PENDING deliveries, oldest first.
func (s *Store) ListOpenDeliveries(ctx context.Context, limit int) ([]domain.Delivery, error) {
	if limit <= 0 {
		limit = 25
	}
	items := []domain.Delivery{}
	err := s.DB.SelectContext(ctx, &items, `SELECT `+deliveryColumns+` FROM deliveries
        WHERE delivery_partner_id IS NULL AND status = ?
        ORDER BY created_at ASC, id ASC LIMIT ?`, lifecycle.DeliveryPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list open deliveries: %w", err)
	}
	return items, nil
}

// CountActiveDeliveries counts deliveries a partner still has in hand.
func (s *Store) CountActiveDeliveries(ctx context.Context, partnerID int64) (int, error) {
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM deliveries WHERE delivery_partner_id = ? AND status IN (?)`,
		partnerID, activeDeliveryStatuses)
	if err != nil {
		return 0, err
	}
	query = s.DB.Rebind(query)
	var n int
	if err := s.DB.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count active deliveries: %w", err)
	}
	return n, nil
}

func (s *Store) GetDeliveryPartner(ctx context.Context, userID int64) (*domain.DeliveryPartner, error) {
	var p domain.DeliveryPartner
	err := s.get(ctx, &p, `SELECT user_id, max_concurrent_deliveries, available FROM delivery_partners WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SaveDeliveryPartner(ctx context.Context, p *domain.DeliveryPartner) error {
	_, err := s.DB.NamedExecContext(ctx, `INSERT INTO delivery_partners (user_id, max_concurrent_deliveries, available)
        VALUES (:user_id, :max_concurrent_deliveries, :available)
        ON CONFLICT (user_id) DO UPDATE SET
            max_concurrent_deliveries = excluded.max_concurrent_deliveries,
            available = excluded.available`, p)
	if err != nil {
		return fmt.Errorf("failed to save delivery partner: %w", err)
	}
	return nil
}
