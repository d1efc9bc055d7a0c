package ports

import (
	"context"
	"time"

	"github.com/captionly/metering/internal/core/domain/account"
	"github.com/captionly/metering/internal/core/domain/event"
)

// EventAuditRepository persists the durable audit trail of webhook
// deliveries. Insert is the dedup authority: the event id carries a unique
// constraint and a second accepted/error insert for the same id must fail
// with event.ErrDuplicateEvent.
type EventAuditRepository interface {
	// Insert writes the entry. Returns event.ErrDuplicateEvent when an entry
	// with a non-duplicate status already holds the event id.
	Insert(ctx context.Context, entry *event.AuditEntry) error

	// SetOutcome records the final processing status (and optional error)
	// for the effectful entry of the given event id.
	SetOutcome(ctx context.Context, eventID string, status event.ProcessingStatus, processingErr *string) error

	// List retrieves audit entries matching the filter, newest first.
	List(ctx context.Context, filter *event.AuditFilter) ([]*event.AuditEntry, error)

	// Count returns the number of entries matching the filter.
	Count(ctx context.Context, filter *event.AuditFilter) (int, error)
}

// EventGuard is a fast-path dedup check in front of the durable log.
// A false negative is harmless (the unique constraint still catches the
// duplicate); a false positive must be impossible, so the guard is marked
// only once the durable log holds a claim for the event id.
type EventGuard interface {
	// Seen reports whether the event id is already marked. Never marks.
	Seen(ctx context.Context, eventID string) (bool, error)

	// Mark records the event id for the retention window. Must not be
	// called before the durable log holds a claim for the id.
	Mark(ctx context.Context, eventID string, ttl time.Duration) error
}

// SubscriptionService maps provider subscription payloads onto account tiers.
type SubscriptionService interface {
	// Apply reconciles the payload into the account record. Idempotent, and
	// ignores payloads older than the account's stored period end.
	Apply(ctx context.Context, customerID string, sub *event.SubscriptionObject) (account.Tier, error)

	// Cancel downgrades the customer to the free tier after a subscription
	// deletion. A no-op for unknown customers.
	Cancel(ctx context.Context, customerID string) error
}

// AuditTrailService exposes the durable delivery log to operators.
type AuditTrailService interface {
	GetEntries(ctx context.Context, filter *event.AuditFilter) ([]*event.AuditEntry, int, error)
}

// EventIngestorService is the entry point for provider webhook deliveries.
type EventIngestorService interface {
	// Process verifies the signature, deduplicates by event id, dispatches by
	// type and records the outcome. A downstream processing failure is
	// reported inside the Outcome, not as the error return, so the caller
	// can still acknowledge the delivery.
	Process(ctx context.Context, body []byte, signature string) (*event.Outcome, error)
}
