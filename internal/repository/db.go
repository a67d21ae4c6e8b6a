package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			order_number TEXT NOT NULL,
			customer TEXT NOT NULL,
			order_date TEXT NOT NULL,
			transport_type TEXT NOT NULL,
			service_type TEXT NOT NULL,
			carrier TEXT NOT NULL,
			lane TEXT NOT NULL,
			origin_country TEXT NOT NULL,
			destination_country TEXT NOT NULL,
			selling_price_cad REAL NOT NULL,
			billed_price_cad REAL NOT NULL,
			margin REAL NOT NULL,
			margin_pct REAL NOT NULL,
			PRIMARY KEY (order_number, customer)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_date ON orders(order_date)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}

	return nil
}
