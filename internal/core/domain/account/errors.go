package account

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no account exists for a customer id.
var ErrNotFound = errors.New("account not found")

// ThrottledError rejects a request issued before the tier's minimum
// inter-request delay has elapsed. RetryAfter tells the caller how long to
// wait; the rejected request does not consume the customer's turn.
type ThrottledError struct {
	Tier       Tier
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("rate limited on %s tier: retry after %dms", e.Tier, e.RetryAfter.Milliseconds())
}

// QuotaExceededError rejects a usage increment that would push a
// non-enterprise account past its per-period ceiling. It is terminal for the
// current period; the actionable remedy is an upgrade.
type QuotaExceededError struct {
	Tier      Tier
	Limit     int64
	PeriodEnd time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s tier (%d requests per period)", e.Tier, e.Limit)
}

// IsThrottled reports whether err is a ThrottledError and returns it.
func IsThrottled(err error) (*ThrottledError, bool) {
	var te *ThrottledError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsQuotaExceeded reports whether err is a QuotaExceededError and returns it.
func IsQuotaExceeded(err error) (*QuotaExceededError, bool) {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}
