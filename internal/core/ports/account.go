package ports

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/captionly/metering/internal/core/domain/account"
)

// ErrStoreUnavailable wraps a transient storage failure (lock wait timeout,
// connection loss). Callers may retry with backoff.
var ErrStoreUnavailable = errors.New("store temporarily unavailable")

// AccountRepository defines the interface for account data operations.
// The transactional methods take an explicit *sql.Tx so services can compose
// a read-modify-write against a single customer row; GetForUpdate holds the
// row lock until the transaction ends.
type AccountRepository interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// GetForUpdate locks and returns the account row inside tx.
	// Returns account.ErrNotFound when the customer has no record yet.
	GetForUpdate(ctx context.Context, tx *sql.Tx, customerID string) (*account.Account, error)

	// Insert creates the account row inside tx (first-touch provisioning).
	Insert(ctx context.Context, tx *sql.Tx, a *account.Account) error

	// UpdateLastRequest advances last_request_at inside tx.
	UpdateLastRequest(ctx context.Context, tx *sql.Tx, customerID string, at time.Time) error

	// UpdateUsage writes the usage counters and period window inside tx.
	UpdateUsage(ctx context.Context, tx *sql.Tx, a *account.Account) error

	// UpdateSubscription writes tier and period end inside tx.
	UpdateSubscription(ctx context.Context, tx *sql.Tx, customerID string, tier account.Tier, periodEnd time.Time) error

	// GetByID is a plain read outside any transaction.
	GetByID(ctx context.Context, customerID string) (*account.Account, error)
}

// RateLimiterService enforces per-customer minimum inter-request delays.
// Implementations MUST guarantee that two concurrent checks for the same
// customer inside one minimum-delay window cannot both be allowed.
type RateLimiterService interface {
	// CheckRateLimit consumes the customer's turn if permitted. A rejected
	// request leaves last_request_at untouched and returns
	// *account.ThrottledError carrying the remaining wait.
	CheckRateLimit(ctx context.Context, customerID string) (*account.RateLimitDecision, error)
}

// UsageService tracks consumed requests/tokens against the tier ceilings.
type UsageService interface {
	// RecordUsage rolls the period over if elapsed, then applies the
	// increments. Returns *account.QuotaExceededError without mutating
	// counters when a non-enterprise ceiling would be crossed.
	RecordUsage(ctx context.Context, req *account.RecordUsageRequest) (*account.UsageCounters, error)

	// GetUsage returns the current counters without mutating anything.
	GetUsage(ctx context.Context, customerID string) (*account.UsageCounters, error)
}
