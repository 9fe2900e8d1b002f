package payments

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const uniqueViolation = "23505"

func (r *PGRepo) Create(ctx context.Context, order Order) error {
	const query = `
INSERT INTO orders (order_id, user_id, amount, currency, payment_status, transaction_id, gateway_response, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
	payload, err := marshalJSONB(order.GatewayResponse)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		order.OrderID,
		order.UserID,
		order.Amount,
		order.Currency,
		order.PaymentStatus,
		nullableString(order.TransactionID),
		payload,
		order.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateOrder
	}
	return err
}

func (r *PGRepo) GetByOrderID(ctx context.Context, orderID string) (Order, error) {
	const query = `
SELECT order_id, user_id, amount, currency, payment_status, transaction_id, gateway_response, created_at, updated_at
FROM orders
WHERE order_id = $1`
	var o Order
	var transactionID sql.NullString
	var gateway sql.NullString
	err := r.DB.QueryRowContext(ctx, query, orderID).Scan(
		&o.OrderID,
		&o.UserID,
		&o.Amount,
		&o.Currency,
		&o.PaymentStatus,
		&transactionID,
		&gateway,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.TransactionID = transactionID.String
	if gateway.Valid {
		if err := json.Unmarshal([]byte(gateway.String), &o.GatewayResponse); err != nil {
			o.GatewayResponse = nil
		}
	}
	return o, nil
}

func (r *PGRepo) UpdateStatus(ctx context.Context, orderID, status, transactionID string, gatewayResponse map[string]any) error {
	const query = `
UPDATE orders
SET payment_status = $2,
    transaction_id = COALESCE($3, transaction_id),
    gateway_response = COALESCE($4, gateway_response),
    updated_at = NOW()
WHERE order_id = $1`
	var payload any
	if gatewayResponse != nil {
		raw, err := json.Marshal(gatewayResponse)
		if err != nil {
			return err
		}
		payload = raw
	}
	res, err := r.DB.ExecContext(ctx, query, orderID, status, nullableString(transactionID), payload)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)

func marshalJSONB(value map[string]any) ([]byte, error) {
	if value == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(value)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
