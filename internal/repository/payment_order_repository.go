package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

// PaymentOrderRepository persists capture intents.
type PaymentOrderRepository struct {
	db *sqlx.DB
}

// NewPaymentOrderRepository constructs the repository.
func NewPaymentOrderRepository(db *sqlx.DB) *PaymentOrderRepository {
	return &PaymentOrderRepository{db: db}
}

// Create records the order opened for a capture.
func (r *PaymentOrderRepository) Create(ctx context.Context, order *models.PaymentOrder) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO payment_orders (order_id, student_id, course_ids, amount, currency, receipt, created_at)
	VALUES (:order_id, :student_id, :course_ids, :amount, :currency, :receipt, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, order); err != nil {
		return fmt.Errorf("create payment order: %w", err)
	}
	return nil
}

// GetByOrderID fetches an order, returning sql.ErrNoRows when it was never captured.
func (r *PaymentOrderRepository) GetByOrderID(ctx context.Context, orderID string) (*models.PaymentOrder, error) {
	const query = `SELECT order_id, student_id, course_ids, amount, currency, receipt, payment_id, paid_at, created_at
	FROM payment_orders WHERE order_id = $1`
	var order models.PaymentOrder
	if err := r.db.GetContext(ctx, &order, query, orderID); err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkPaid settles the order with a payment id. Re-settling with the same payment id
// is a no-op success; a different payment id yields sql.ErrNoRows.
func (r *PaymentOrderRepository) MarkPaid(ctx context.Context, orderID, paymentID string, paidAt time.Time) error {
	const query = `UPDATE payment_orders SET payment_id = $2, paid_at = COALESCE(paid_at, $3)
	WHERE order_id = $1 AND (payment_id IS NULL OR payment_id = $2)`
	res, err := r.db.ExecContext(ctx, query, orderID, paymentID, paidAt)
	if err != nil {
		return fmt.Errorf("mark payment order paid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark payment order paid: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
