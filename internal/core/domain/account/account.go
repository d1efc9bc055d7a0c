package account

import "time"

// Account is the per-customer record shared by the rate limiter, the usage
// accountant and the subscription reconciler. The customer id is assigned by
// the upstream identity provider and is never generated here.
type Account struct {
	CustomerID    string    `json:"customer_id" db:"customer_id"`
	Tier          Tier      `json:"tier" db:"tier"`
	LastRequestAt time.Time `json:"last_request_at" db:"last_request_at"`
	PeriodStart   time.Time `json:"period_start" db:"period_start"`
	PeriodEnd     time.Time `json:"period_end" db:"period_end"`
	RequestsUsed  int64     `json:"requests_used" db:"requests_used"`
	TokensUsed    int64     `json:"tokens_used" db:"tokens_used"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// NewAccount returns a first-touch account provisioned at the free tier with
// a usage period opening now.
func NewAccount(customerID string, now time.Time) *Account {
	return &Account{
		CustomerID:    customerID,
		Tier:          TierFree,
		LastRequestAt: now,
		PeriodStart:   now,
		PeriodEnd:     now.AddDate(0, 1, 0),
	}
}

// PeriodElapsed reports whether the current usage window has expired.
func (a *Account) PeriodElapsed(now time.Time) bool {
	return now.After(a.PeriodEnd)
}

// Rollover opens a fresh usage window and zeroes the counters.
func (a *Account) Rollover(now time.Time) {
	a.PeriodStart = now
	a.PeriodEnd = now.AddDate(0, 1, 0)
	a.RequestsUsed = 0
	a.TokensUsed = 0
}

// RateLimitDecision is the outcome of a rate-limit check for an allowed
// request.
type RateLimitDecision struct {
	Allowed     bool          `json:"allowed"`
	Tier        Tier          `json:"tier"`
	Provisioned bool          `json:"provisioned,omitempty"`
	MinDelay    time.Duration `json:"-"`
}

// UsageCounters is returned from a successful usage-recording call.
type UsageCounters struct {
	Tier            Tier      `json:"tier"`
	RequestsUsed    int64     `json:"requests_used"`
	TokensUsed      int64     `json:"tokens_used"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	OverageIncurred bool      `json:"overage_incurred,omitempty"`
}

// RecordUsageRequest is the input to the usage accountant.
type RecordUsageRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	Requests   int64  `json:"requests"`
	Tokens     int64  `json:"tokens"`
}
