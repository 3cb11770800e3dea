// Package seed loads the medicine catalog that inventory entries and
// prescription matching refer to.
package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Column positions in the medicine CSV export.
const (
	colBrandID      = 0
	colBrandName    = 1
	colType         = 2
	colGenericName  = 5
	colManufacturer = 7
	minColumns      = 9
)

// LoadMedicinesFile opens csvPath and loads it. A missing file is not an
// error; the catalog simply stays as it is.
func LoadMedicinesFile(ctx context.Context, db *sqlx.DB, csvPath string, logger *zap.Logger) (int, error) {
	file, err := os.Open(csvPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("medicine catalog not found, skipping seed", zap.String("path", csvPath))
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("unable to open medicine catalog %s: %w", csvPath, err)
	}
	defer file.Close()
	return LoadMedicines(ctx, db, file, logger)
}

// LoadMedicines ingests the CSV into the medicines table, ignoring rows that
// are short, blank or already present. It returns the number of new rows.
func LoadMedicines(ctx context.Context, db *sqlx.DB, r io.Reader, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	// Skip header
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("unable to read medicine header: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("unable to start medicine transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `INSERT OR IGNORE INTO medicines (brand_id, brand_name, type, generic_name, manufacturer) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("unable to prepare medicine insert: %w", err)
	}
	defer stmt.Close()

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("skipping unreadable medicine row", zap.Error(err))
			continue
		}
		if len(record) < minColumns {
			continue
		}
		brandName := strings.TrimSpace(record[colBrandName])
		if brandName == "" {
			continue
		}

		res, err := stmt.ExecContext(ctx,
			strings.TrimSpace(record[colBrandID]),
			brandName,
			strings.TrimSpace(record[colType]),
			strings.TrimSpace(record[colGenericName]),
			strings.TrimSpace(record[colManufacturer]),
		)
		if err != nil {
			logger.Warn("unable to insert medicine", zap.String("brand_name", brandName), zap.Error(err))
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("unable to commit medicine seed: %w", err)
	}
	logger.Info("seeded medicine catalog", zap.Int("rows", rows))
	return rows, nil
}
