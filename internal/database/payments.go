package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gatepass/internal/models"
)

func (db *DB) CreatePaymentOrder(ctx context.Context, order *models.PaymentOrder) error {
	query := `INSERT INTO payment_orders (
				booking_id, gateway_order_id, payment_id, amount_paise,
				currency, receipt, status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		order.BookingID,
		order.GatewayOrderID,
		order.PaymentID,
		order.AmountPaise,
		order.Currency,
		order.Receipt,
		models.OrderStatusCreated,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	order.ID = id
	order.Status = models.OrderStatusCreated
	order.CreatedAt = now
	order.UpdatedAt = now
	return nil
}

// GetActiveOrderByBooking returns the booking's order in status "created",
// if any. Used to make order creation idempotent.
func (db *DB) GetActiveOrderByBooking(ctx context.Context, bookingID int64) (*models.PaymentOrder, error) {
	query := `SELECT id, booking_id, gateway_order_id, payment_id, amount_paise,
	                 currency, receipt, status, created_at, updated_at
	          FROM payment_orders WHERE booking_id = ? AND status = ?
	          ORDER BY id DESC LIMIT 1`
	return db.scanOrder(db.QueryRowContext(ctx, query, bookingID, models.OrderStatusCreated))
}

func (db *DB) GetOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error) {
	query := `SELECT id, booking_id, gateway_order_id, payment_id, amount_paise,
	                 currency, receipt, status, created_at, updated_at
	          FROM payment_orders WHERE gateway_order_id = ?`
	return db.scanOrder(db.QueryRowContext(ctx, query, gatewayOrderID))
}

func (db *DB) scanOrder(row *sql.Row) (*models.PaymentOrder, error) {
	var o models.PaymentOrder
	err := row.Scan(
		&o.ID, &o.BookingID, &o.GatewayOrderID, &o.PaymentID, &o.AmountPaise,
		&o.Currency, &o.Receipt, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment order: %w", err)
	}
	return &o, nil
}

// MarkOrderVerified records the payment id and moves the order from
// "created" to "verified" in one conditional update. A replayed
// confirmation hits the zero-rows branch and is reported as
// ErrOrderVerified so the caller can treat it as idempotent success.
func (db *DB) MarkOrderVerified(ctx context.Context, gatewayOrderID, paymentID string) error {
	query := `UPDATE payment_orders SET status = ?, payment_id = ?, updated_at = ?
	          WHERE gateway_order_id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query,
		models.OrderStatusVerified, paymentID, time.Now(),
		gatewayOrderID, models.OrderStatusCreated)
	if err != nil {
		return fmt.Errorf("failed to mark order verified: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	order, err := db.GetOrderByGatewayID(ctx, gatewayOrderID)
	if err != nil {
		return err
	}
	if order.Status == models.OrderStatusVerified {
		return ErrOrderVerified
	}
	return ErrInvalidTransition
}
