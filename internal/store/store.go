// Package store persists fulfillment records with sqlx.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"medeasy/marketplace/domain"
)

var (
	ErrNotFound = domain.ErrNotFound

	// ErrStaleStatus means the row left the expected status between read and
	// write, so the transition was not applied.
	ErrStaleStatus = domain.ErrConcurrentUpdate
)

type Store struct {
	DB *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) GetPharmacy(ctx context.Context, id int64) (*domain.Pharmacy, error) {
	var p domain.Pharmacy
	err := s.get(ctx, &p, `SELECT id, name, COALESCE(address, '') AS address, COALESCE(location, '') AS location,
        owner_id, created_at FROM pharmacies WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) get(ctx context.Context, dest any, query string, args ...any) error {
	err := s.DB.GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// guardedTx is guarded for statements run inside tx.
func guardedTx(ctx context.Context, tx *sqlx.Tx, res sql.Result, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}
	var exists int
	err = tx.GetContext(ctx, &exists, `SELECT 1 FROM `+table+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrStaleStatus
}

// guarded inspects a status-guarded update. When nothing changed it tells a
// missing row apart from one that moved on.
func (s *Store) guarded(ctx context.Context, res sql.Result, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}
	var exists int
	if err := s.get(ctx, &exists, `SELECT 1 FROM `+table+` WHERE id = ?`, id); err != nil {
		return err
	}
	return ErrStaleStatus
}
