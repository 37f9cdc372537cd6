package database

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		gateway VARCHAR(64) NOT NULL,
		action VARCHAR(16) NOT NULL,
		amount BIGINT NOT NULL,
		currency CHAR(3) NOT NULL,
		masked_card VARCHAR(32) NOT NULL DEFAULT '',
		order_id VARCHAR(64) NOT NULL DEFAULT '',
		authorization_token VARCHAR(255) NOT NULL DEFAULT '',
		success BOOLEAN NOT NULL,
		message VARCHAR(512) NOT NULL DEFAULT '',
		error_code VARCHAR(64) NOT NULL DEFAULT '',
		avs_code VARCHAR(4) NOT NULL DEFAULT '',
		cvv_code VARCHAR(4) NOT NULL DEFAULT '',
		network_transaction_id VARCHAR(128) NOT NULL DEFAULT '',
		fraud_review BOOLEAN NOT NULL DEFAULT FALSE,
		test BOOLEAN NOT NULL DEFAULT TRUE,
		idempotency_key VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL,
		INDEX idx_transactions_gateway (gateway, created_at),
		INDEX idx_transactions_order (order_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS stored_cards (
		gateway VARCHAR(64) NOT NULL,
		token VARCHAR(255) NOT NULL,
		masked_card VARCHAR(32) NOT NULL,
		brand VARCHAR(32) NOT NULL DEFAULT '',
		fingerprint CHAR(64) NOT NULL,
		exp_month INT NOT NULL,
		exp_year INT NOT NULL,
		customer_id VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL,
		PRIMARY KEY (gateway, token),
		INDEX idx_stored_cards_fingerprint (fingerprint)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id VARCHAR(36) PRIMARY KEY,
		gateway VARCHAR(64) NOT NULL,
		action VARCHAR(16) NOT NULL,
		amount BIGINT NOT NULL,
		currency CHAR(3) NOT NULL,
		masked_card VARCHAR(32) NOT NULL DEFAULT '',
		order_id VARCHAR(64) NOT NULL DEFAULT '',
		authorization_token VARCHAR(255) NOT NULL DEFAULT '',
		success BOOLEAN NOT NULL,
		message VARCHAR(512) NOT NULL DEFAULT '',
		error_code VARCHAR(64) NOT NULL DEFAULT '',
		avs_code VARCHAR(4) NOT NULL DEFAULT '',
		cvv_code VARCHAR(4) NOT NULL DEFAULT '',
		network_transaction_id VARCHAR(128) NOT NULL DEFAULT '',
		fraud_review BOOLEAN NOT NULL DEFAULT FALSE,
		test BOOLEAN NOT NULL DEFAULT TRUE,
		idempotency_key VARCHAR(255) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_gateway ON transactions (gateway, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_order ON transactions (order_id)`,
	`CREATE TABLE IF NOT EXISTS stored_cards (
		gateway VARCHAR(64) NOT NULL,
		token VARCHAR(255) NOT NULL,
		masked_card VARCHAR(32) NOT NULL,
		brand VARCHAR(32) NOT NULL DEFAULT '',
		fingerprint CHAR(64) NOT NULL,
		exp_month INT NOT NULL,
		exp_year INT NOT NULL,
		customer_id VARCHAR(255) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (gateway, token)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stored_cards_fingerprint ON stored_cards (fingerprint)`,
}

// Migrate creates the tables if they do not exist.
func (c *Connection) Migrate(ctx context.Context) error {
	statements := mysqlSchema
	if c.driver == DriverPostgres {
		statements = postgresSchema
	}
	for i, stmt := range statements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	c.logger.Info("schema applied", zap.Int("statements", len(statements)))
	return nil
}
