package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"multigateway-api/models"
)

const transactionColumns = `id, gateway, action, amount, currency, masked_card, order_id,
	authorization_token, success, message, error_code, avs_code, cvv_code,
	network_transaction_id, fraud_review, test, idempotency_key, created_at`

func (c *Connection) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := c.rebind(`INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := c.db.ExecContext(ctx, query,
		tx.ID, tx.Gateway, string(tx.Action), tx.Amount, tx.Currency, tx.MaskedCard, tx.OrderID,
		tx.Authorization, tx.Success, tx.Message, tx.ErrorCode, tx.AVSCode, tx.CVVCode,
		tx.NetworkTransactionID, tx.FraudReview, tx.Test, tx.IdempotencyKey, tx.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("transaction %s: %w", tx.ID, ErrConflict)
		}
		c.logger.Error("failed to save transaction", zap.String("transaction_id", tx.ID), zap.Error(err))
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

func (c *Connection) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := c.db.QueryRowContext(ctx, c.rebind(`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`), id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

func (c *Connection) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var where []string
	var args []interface{}
	if filter.Gateway != "" {
		where = append(where, "gateway = ?")
		args = append(args, filter.Gateway)
	}
	if filter.OrderID != "" {
		where = append(where, "order_id = ?")
		args = append(args, filter.OrderID)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %d", normalizeLimit(filter.Limit))

	rows, err := c.db.QueryContext(ctx, c.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]models.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var tx models.Transaction
	var action string
	err := row.Scan(
		&tx.ID, &tx.Gateway, &action, &tx.Amount, &tx.Currency, &tx.MaskedCard, &tx.OrderID,
		&tx.Authorization, &tx.Success, &tx.Message, &tx.ErrorCode, &tx.AVSCode, &tx.CVVCode,
		&tx.NetworkTransactionID, &tx.FraudReview, &tx.Test, &tx.IdempotencyKey, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Action = models.Action(action)
	return &tx, nil
}

func (c *Connection) SaveStoredCard(ctx context.Context, card *models.StoredCard) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := c.rebind(`INSERT INTO stored_cards
		(gateway, token, masked_card, brand, fingerprint, exp_month, exp_year, customer_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := c.db.ExecContext(ctx, query,
		card.Gateway, card.Token, card.MaskedCard, card.Brand, card.Fingerprint,
		card.ExpMonth, card.ExpYear, card.CustomerID, card.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("stored card %s/%s: %w", card.Gateway, card.Token, ErrConflict)
		}
		return fmt.Errorf("failed to save stored card: %w", err)
	}
	return nil
}

func (c *Connection) GetStoredCard(ctx context.Context, gateway, token string) (*models.StoredCard, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := c.db.QueryRowContext(ctx, c.rebind(`SELECT gateway, token, masked_card, brand, fingerprint,
		exp_month, exp_year, customer_id, created_at
		FROM stored_cards WHERE gateway = ? AND token = ?`), gateway, token)

	var card models.StoredCard
	err := row.Scan(&card.Gateway, &card.Token, &card.MaskedCard, &card.Brand, &card.Fingerprint,
		&card.ExpMonth, &card.ExpYear, &card.CustomerID, &card.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stored card: %w", err)
	}
	return &card, nil
}

func (c *Connection) DeleteStoredCard(ctx context.Context, gateway, token string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := c.db.ExecContext(ctx,
		c.rebind(`DELETE FROM stored_cards WHERE gateway = ? AND token = ?`), gateway, token)
	if err != nil {
		return fmt.Errorf("failed to delete stored card: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
