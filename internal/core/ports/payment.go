package ports

import (
	"context"
	"database/sql"

	"github.com/captionly/metering/internal/core/domain/payment"
)

// PaymentRepository defines the interface for payment ledger data operations.
type PaymentRepository interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// Insert creates the payment row if the intent id is unseen. Returns
	// created=false (and no error) when the row already exists.
	Insert(ctx context.Context, p *payment.Payment) (created bool, err error)

	// GetForUpdate locks and returns the payment row inside tx.
	// Returns payment.ErrNotFound for an unknown intent id.
	GetForUpdate(ctx context.Context, tx *sql.Tx, paymentIntentID string) (*payment.Payment, error)

	// UpdateStatus writes the new status inside tx.
	UpdateStatus(ctx context.Context, tx *sql.Tx, paymentIntentID string, status payment.Status) error

	// GetByID is a plain read outside any transaction.
	GetByID(ctx context.Context, paymentIntentID string) (*payment.Payment, error)
}

// PaymentLedgerService defines the payment lifecycle business logic.
type PaymentLedgerService interface {
	// Create records a payment intent. Duplicate creation for the same id is
	// a no-op, not an error (at-least-once delivery of the creating event).
	Create(ctx context.Context, req *payment.CreatePaymentRequest) (*payment.Payment, error)

	// UpdateStatus applies a forward-only transition. Fails with
	// payment.ErrNotFound or *payment.InvalidTransitionError.
	UpdateStatus(ctx context.Context, paymentIntentID string, status payment.Status) (*payment.Payment, error)

	// GetPayment returns the ledger record for an intent id.
	GetPayment(ctx context.Context, paymentIntentID string) (*payment.Payment, error)
}
