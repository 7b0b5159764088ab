// Package database opens the MySQL connection pool and bootstraps the schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"

	"transaction-service/config"
)

// DSN builds a driver DSN with parseTime so DATETIME columns scan into time.Time.
func DSN(cfg *config.Config) string {
	mc := mysql.NewConfig()
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPassword
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN()
}

func Open(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		category VARCHAR(255) NOT NULL DEFAULT '',
		stock INT NOT NULL,
		price DECIMAL(15,2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		customer_id VARCHAR(255) NOT NULL,
		amount DECIMAL(15,2) NOT NULL,
		method VARCHAR(64) NOT NULL,
		status VARCHAR(16) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_payments_customer (customer_id)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		customer_id VARCHAR(255) NOT NULL,
		total_amount DECIMAL(15,2) NOT NULL,
		payment_method VARCHAR(64) NOT NULL,
		status VARCHAR(16) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		payment_id VARCHAR(36) NULL,
		INDEX idx_transactions_customer (customer_id),
		INDEX idx_transactions_status (status),
		CONSTRAINT fk_transactions_payment FOREIGN KEY (payment_id) REFERENCES payments (id) ON DELETE SET NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transaction_items (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		transaction_id VARCHAR(36) NOT NULL,
		position INT NOT NULL,
		product_id VARCHAR(36) NOT NULL,
		product_name VARCHAR(255) NOT NULL,
		unit_price DECIMAL(15,2) NOT NULL,
		quantity INT NOT NULL,
		subtotal DECIMAL(15,2) NOT NULL,
		INDEX idx_items_transaction (transaction_id, position),
		CONSTRAINT fk_items_transaction FOREIGN KEY (transaction_id) REFERENCES transactions (id) ON DELETE CASCADE
	)`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
