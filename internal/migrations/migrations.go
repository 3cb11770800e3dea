package migrations

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Run creates the database schema required by the marketplace backend.
func Run(db *sqlx.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS pharmacies (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            address TEXT,
            location TEXT,
            owner_id INTEGER,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(owner_id) REFERENCES users(id)
        );`,
		`CREATE TABLE IF NOT EXISTS medicines (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            brand_id INTEGER,
            brand_name TEXT NOT NULL,
            type TEXT,
            generic_name TEXT,
            manufacturer TEXT,
            UNIQUE(brand_id)
        );`,
		`CREATE TABLE IF NOT EXISTS inventory (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            pharmacy_id INTEGER NOT NULL,
            medicine_id INTEGER NOT NULL,
            unit TEXT NOT NULL DEFAULT 'unit',
            quantity INTEGER NOT NULL,
            sale_price TEXT NOT NULL,
            active INTEGER NOT NULL DEFAULT 1,
            expiry_date TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(pharmacy_id) REFERENCES pharmacies(id),
            FOREIGN KEY(medicine_id) REFERENCES medicines(id)
        );`,
		`CREATE TABLE IF NOT EXISTS delivery_partners (
            user_id INTEGER PRIMARY KEY,
            max_concurrent_deliveries INTEGER NOT NULL DEFAULT 3,
            available INTEGER NOT NULL DEFAULT 1,
            FOREIGN KEY(user_id) REFERENCES users(id)
        );`,
		`CREATE TABLE IF NOT EXISTS orders (
            id TEXT PRIMARY KEY,
            patient_id INTEGER NOT NULL,
            pharmacy_id INTEGER NOT NULL,
            prescription_id TEXT,
            delivery_address TEXT NOT NULL DEFAULT '',
            gross_amount TEXT NOT NULL,
            commission_amount TEXT NOT NULL,
            net_amount TEXT NOT NULL,
            status TEXT NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            confirmed_at DATETIME,
            delivered_at DATETIME,
            cancelled_at DATETIME,
            FOREIGN KEY(pharmacy_id) REFERENCES pharmacies(id)
        );`,
		`CREATE TABLE IF NOT EXISTS order_items (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            order_id TEXT NOT NULL,
            inventory_id INTEGER NOT NULL,
            medicine_name TEXT NOT NULL,
            quantity INTEGER NOT NULL,
            unit_price TEXT NOT NULL,
            subtotal TEXT NOT NULL,
            FOREIGN KEY(order_id) REFERENCES orders(id),
            FOREIGN KEY(inventory_id) REFERENCES inventory(id)
        );`,
		`CREATE TABLE IF NOT EXISTS appointments (
            id TEXT PRIMARY KEY,
            patient_id INTEGER NOT NULL,
            doctor_id INTEGER NOT NULL,
            scheduled_at DATETIME NOT NULL,
            mode TEXT NOT NULL DEFAULT 'in_person',
            notes TEXT NOT NULL DEFAULT '',
            gross_amount TEXT NOT NULL,
            commission_amount TEXT NOT NULL,
            net_amount TEXT NOT NULL,
            status TEXT NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            confirmed_at DATETIME,
            completed_at DATETIME,
            cancelled_at DATETIME
        );`,
		`CREATE TABLE IF NOT EXISTS lab_bookings (
            id TEXT PRIMARY KEY,
            patient_id INTEGER NOT NULL,
            laboratory_id INTEGER NOT NULL,
            test_code TEXT NOT NULL,
            test_name TEXT NOT NULL DEFAULT '',
            scheduled_at DATETIME NOT NULL,
            report_url TEXT,
            gross_amount TEXT NOT NULL,
            commission_amount TEXT NOT NULL,
            net_amount TEXT NOT NULL,
            status TEXT NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            completed_at DATETIME,
            rejected_at DATETIME,
            cancelled_at DATETIME
        );`,
		`CREATE TABLE IF NOT EXISTS deliveries (
            id TEXT PRIMARY KEY,
            order_id TEXT NOT NULL UNIQUE,
            delivery_partner_id INTEGER,
            pickup_address TEXT NOT NULL DEFAULT '',
            dropoff_address TEXT NOT NULL DEFAULT '',
            gross_amount TEXT NOT NULL,
            commission_amount TEXT NOT NULL,
            net_amount TEXT NOT NULL,
            status TEXT NOT NULL,
            held_status TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            assigned_at DATETIME,
            picked_up_at DATETIME,
            delivered_at DATETIME,
            cancelled_at DATETIME,
            FOREIGN KEY(order_id) REFERENCES orders(id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_open ON deliveries(status, created_at) WHERE delivery_partner_id IS NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_partner ON deliveries(delivery_partner_id, status);`,
		`CREATE TABLE IF NOT EXISTS prescriptions (
            id TEXT PRIMARY KEY,
            patient_id INTEGER NOT NULL,
            image_name TEXT NOT NULL DEFAULT '',
            extracted_medicines TEXT NOT NULL DEFAULT '[]',
            extracted_text TEXT NOT NULL DEFAULT '',
            note TEXT NOT NULL DEFAULT '',
            failure_reason TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            processed_at DATETIME,
            rejected_at DATETIME
        );`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
