package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/captionly/metering/internal/core/domain/payment"
	"github.com/captionly/metering/internal/core/ports"
	"github.com/captionly/metering/internal/infrastructure/db"
)

// PaymentRepository implements the payment ledger storage on Postgres. The
// intent id primary key plus ON CONFLICT DO NOTHING makes creation idempotent
// at the storage level, whatever the delivery count.
type PaymentRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(database *db.Database, logger *logrus.Logger) ports.PaymentRepository {
	return &PaymentRepository{
		db:     database,
		logger: logger,
	}
}

func (r *PaymentRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.DB.DB.BeginTx(ctx, nil)
}

const paymentColumns = `payment_intent_id, customer_id, amount, currency, status, invoice_id, created_at, updated_at`

// Insert creates the payment row; created=false when the id was already seen.
func (r *PaymentRepository) Insert(ctx context.Context, p *payment.Payment) (bool, error) {
	query := `
		INSERT INTO payments (payment_intent_id, customer_id, amount, currency, status, invoice_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (payment_intent_id) DO NOTHING`

	result, err := r.db.DB.ExecContext(ctx, query,
		p.PaymentIntentID, p.CustomerID, p.Amount, p.Currency, p.Status, p.InvoiceID)
	if err != nil {
		return false, fmt.Errorf("failed to create payment %s: %w", p.PaymentIntentID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if r.logger != nil {
			r.logger.WithField("payment_intent_id", p.PaymentIntentID).Debug("db: payment already exists, create skipped")
		}
		return false, nil
	}
	return true, nil
}

// GetForUpdate locks and returns the payment row for the duration of tx.
func (r *PaymentRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, paymentIntentID string) (*payment.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE payment_intent_id = $1
		FOR UPDATE`

	p, err := scanPayment(tx.QueryRowContext(ctx, query, paymentIntentID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock payment %s: %w", paymentIntentID, err)
	}
	return p, nil
}

// UpdateStatus writes the new status for the locked row.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, paymentIntentID string, status payment.Status) error {
	query := `
		UPDATE payments
		SET status = $2, updated_at = NOW()
		WHERE payment_intent_id = $1`

	_, err := tx.ExecContext(ctx, query, paymentIntentID, status)
	if err != nil {
		return fmt.Errorf("failed to update payment %s: %w", paymentIntentID, err)
	}
	return nil
}

// GetByID retrieves a payment outside any transaction.
func (r *PaymentRepository) GetByID(ctx context.Context, paymentIntentID string) (*payment.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE payment_intent_id = $1`

	p, err := scanPayment(r.db.DB.QueryRowContext(ctx, query, paymentIntentID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment %s: %w", paymentIntentID, err)
	}
	return p, nil
}

func scanPayment(row rowScanner) (*payment.Payment, error) {
	var p payment.Payment
	var invoiceID sql.NullString

	err := row.Scan(
		&p.PaymentIntentID, &p.CustomerID, &p.Amount, &p.Currency, &p.Status,
		&invoiceID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if invoiceID.Valid {
		p.InvoiceID = &invoiceID.String
	}
	return &p, nil
}
