package store

import (
	"context"
	"fmt"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/lifecycle"
)

const orderColumns = `id, patient_id, pharmacy_id, prescription_id, delivery_address,
        gross_amount, commission_amount, net_amount, status,
        created_at, updated_at, confirmed_at, delivered_at, cancelled_at`

func (s *Store) CreateOrder(ctx context.Context, o *domain.Order) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `INSERT INTO orders (`+orderColumns+`)
        VALUES (:id, :patient_id, :pharmacy_id, :prescription_id, :delivery_address,
        :gross_amount, :commission_amount, :net_amount, :status,
        :created_at, :updated_at, :confirmed_at, :delivered_at, :cancelled_at)`, o)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID
		res, err := tx.NamedExecContext(ctx, `INSERT INTO order_items (order_id, inventory_id, medicine_name, quantity, unit_price, subtotal)
            VALUES (:order_id, :inventory_id, :medicine_name, :quantity, :unit_price, :subtotal)`, item)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
		if item.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read order item id: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	if err := s.get(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id); err != nil {
		return nil, err
	}
	o.Items = []domain.OrderItem{}
	err := s.DB.SelectContext(ctx, &o.Items, `SELECT id, order_id, inventory_id, medicine_name, quantity, unit_price, subtotal
        FROM order_items WHERE order_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	return &o, nil
}

// ReadyOrder moves the order out of from and opens its delivery in one
// transaction, so a ready order never lacks a delivery.
func (s *Store) ReadyOrder(ctx context.Context, o *domain.Order, from lifecycle.Status, d *domain.Delivery) error {
	if d.DeliveryPartnerID != nil {
		return fmt.Errorf("new delivery %s must not carry a partner", d.ID)
	}
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		o.Status, o.UpdatedAt, o.ID, from)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if err := guardedTx(ctx, tx, res, "orders", o.ID); err != nil {
		return err
	}
	if _, err := tx.NamedExecContext(ctx, insertDelivery, d); err != nil {
		return fmt.Errorf("failed to insert delivery: %w", err)
	}
	return tx.Commit()
}

const updateOrderStatus = `UPDATE orders SET
            status = ?, updated_at = ?,
            confirmed_at = COALESCE(confirmed_at, ?),
            delivered_at = COALESCE(delivered_at, ?),
            cancelled_at = COALESCE(cancelled_at, ?)
        WHERE id = ? AND status = ?`

func orderStatusArgs(o *domain.Order, from lifecycle.Status) []any {
	return []any{o.Status, o.UpdatedAt, o.ConfirmedAt, o.DeliveredAt, o.CancelledAt, o.ID, from}
}

// UpdateOrderStatus writes the lifecycle columns if the row is still in from.
// Amount columns are never updated.
func (s *Store) UpdateOrderStatus(ctx context.Context, o *domain.Order, from lifecycle.Status) error {
	res, err := s.DB.ExecContext(ctx, updateOrderStatus, orderStatusArgs(o, from)...)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return s.guarded(ctx, res, "orders", o.ID)
}

// CancelOrder writes the cancelled order and its cancelled delivery in one
// transaction. Either row having moved on rolls both back, so a delivery
// claimed in the meantime keeps its order.
func (s *Store) CancelOrder(ctx context.Context, o *domain.Order, from lifecycle.Status, d *domain.Delivery, deliveryFrom lifecycle.Status) error {
	if d.OrderID != o.ID {
		return fmt.Errorf("delivery %s belongs to order %s, not %s", d.ID, d.OrderID, o.ID)
	}
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, updateOrderStatus, orderStatusArgs(o, from)...)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if err := guardedTx(ctx, tx, res, "orders", o.ID); err != nil {
		return err
	}
	res, err = tx.ExecContext(ctx, updateDeliveryStatus, deliveryStatusArgs(d, deliveryFrom)...)
	if err != nil {
		return fmt.Errorf("failed to update delivery status: %w", err)
	}
	if err := guardedTx(ctx, tx, res, "deliveries", d.ID); err != nil {
		return err
	}
	return tx.Commit()
}
