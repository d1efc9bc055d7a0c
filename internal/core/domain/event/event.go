package event

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Envelope is the signed payload posted by the payment provider. The id is
// provider-assigned and unique per logical event; redeliveries reuse it.
type Envelope struct {
	ID   string          `json:"id"`
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Type string

const (
	TypeCheckoutCompleted    Type = "checkout.session.completed"
	TypeSubscriptionUpdated  Type = "customer.subscription.updated"
	TypeSubscriptionDeleted  Type = "customer.subscription.deleted"
	TypePaymentIntentCreated Type = "payment_intent.created"
	TypePaymentSucceeded     Type = "payment_intent.succeeded"
	TypePaymentFailed        Type = "payment_intent.payment_failed"
)

// ErrInvalidSignature rejects an envelope whose signature does not match the
// shared webhook secret. Never retried.
var ErrInvalidSignature = errors.New("webhook signature verification failed")

// ErrDuplicateEvent marks an event id already present in the audit log.
var ErrDuplicateEvent = errors.New("event already processed")

type ProcessingStatus string

const (
	StatusAccepted  ProcessingStatus = "accepted"
	StatusDuplicate ProcessingStatus = "duplicate"
	StatusRejected  ProcessingStatus = "rejected"
	StatusError     ProcessingStatus = "error"
)

// AuditEntry records one inbound delivery attempt together with its outcome.
// EventID is unique in the durable log, which is what turns at-least-once
// delivery into at-most-once effect.
type AuditEntry struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	EventID         string           `json:"event_id" db:"event_id"`
	Type            Type             `json:"type" db:"type"`
	ReceivedAt      time.Time        `json:"received_at" db:"received_at"`
	Payload         json.RawMessage  `json:"payload" db:"payload"`
	Status          ProcessingStatus `json:"status" db:"status"`
	ProcessingError *string          `json:"processing_error,omitempty" db:"processing_error"`
}

// AuditFilter represents filters for querying the audit trail.
type AuditFilter struct {
	EventID   *string           `json:"event_id,omitempty" query:"event_id"`
	Type      *Type             `json:"type,omitempty" query:"type"`
	Status    *ProcessingStatus `json:"status,omitempty" query:"status"`
	StartTime *time.Time        `json:"start_time,omitempty" query:"start_time"`
	EndTime   *time.Time        `json:"end_time,omitempty" query:"end_time"`
	Limit     int               `json:"limit" query:"limit"`
	Offset    int               `json:"offset" query:"offset"`
}

// Outcome is returned to the webhook handler after an envelope has been
// ingested. A downstream processing error is carried here rather than as an
// error return so the delivery can still be acknowledged.
type Outcome struct {
	EventID string           `json:"event_id"`
	Type    Type             `json:"type"`
	Status  ProcessingStatus `json:"status"`
	Err     error            `json:"-"`
}
