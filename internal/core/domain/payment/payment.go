package payment

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Payment tracks the lifecycle of a single provider payment intent. The
// provider-assigned intent id is the primary key; a record is created at most
// once per id and its status only moves forward.
type Payment struct {
	PaymentIntentID string    `json:"payment_intent_id" db:"payment_intent_id"`
	CustomerID      string    `json:"customer_id" db:"customer_id"`
	Amount          int64     `json:"amount" db:"amount"` // minor units (cents)
	Currency        string    `json:"currency" db:"currency"`
	Status          Status    `json:"status" db:"status"`
	InvoiceID       *string   `json:"invoice_id,omitempty" db:"invoice_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// ValidTransitions returns the statuses reachable from the current status.
func (s Status) ValidTransitions() []Status {
	switch s {
	case StatusProcessing:
		return []Status{StatusSucceeded, StatusFailed}
	case StatusSucceeded, StatusFailed:
		return []Status{} // terminal
	default:
		return []Status{}
	}
}

// IsValidTransition checks if transition to newStatus is valid.
func (s Status) IsValidTransition(newStatus Status) bool {
	return slices.Contains(s.ValidTransitions(), newStatus)
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusSucceeded, StatusFailed:
		return true
	}
	return false
}

// ErrNotFound is returned when a payment intent id is unknown to the ledger.
var ErrNotFound = errors.New("payment not found")

// InvalidTransitionError rejects a backward or unknown status transition.
// Out-of-order webhook delivery makes these attempts routine; rejecting them
// keeps the stored lifecycle a forward-only sequence.
type InvalidTransitionError struct {
	PaymentIntentID string
	From            Status
	To              Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid payment status transition %s -> %s for %s", e.From, e.To, e.PaymentIntentID)
}

// CreatePaymentRequest carries the fields for an idempotent ledger create.
type CreatePaymentRequest struct {
	PaymentIntentID string  `json:"payment_intent_id" validate:"required"`
	CustomerID      string  `json:"customer_id"`
	Amount          int64   `json:"amount"`
	Currency        string  `json:"currency"`
	InvoiceID       *string `json:"invoice_id,omitempty"`
}
