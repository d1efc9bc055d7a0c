package account

import "time"

type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierBasic, TierPro, TierEnterprise:
		return true
	}
	return false
}

// TierPolicy holds the throttling and quota constants for one tier.
type TierPolicy struct {
	MinDelay          time.Duration `json:"min_delay"`
	RequestsPerPeriod int64         `json:"requests_per_period"`
	TokensPerPeriod   int64         `json:"tokens_per_period"`
	AllowOverage      bool          `json:"allow_overage"`
}

// Catalog maps every tier to its policy. The mapping is closed: Lookup on an
// unknown tier falls back to the free policy so a corrupt stored tier can
// never grant more than free access.
type Catalog struct {
	policies map[Tier]TierPolicy
}

// DefaultCatalog returns the catalog with the production policy constants.
func DefaultCatalog() *Catalog {
	return &Catalog{policies: map[Tier]TierPolicy{
		TierFree: {
			MinDelay:          300 * time.Millisecond,
			RequestsPerPeriod: 5,
			TokensPerPeriod:   1500,
		},
		TierBasic: {
			MinDelay:          200 * time.Millisecond,
			RequestsPerPeriod: 200,
			TokensPerPeriod:   2000,
		},
		TierPro: {
			MinDelay:          200 * time.Millisecond,
			RequestsPerPeriod: 750,
			TokensPerPeriod:   3000,
		},
		TierEnterprise: {
			MinDelay:          100 * time.Millisecond,
			RequestsPerPeriod: 2000,
			TokensPerPeriod:   4000,
			AllowOverage:      true,
		},
	}}
}

// Lookup returns the policy for tier, falling back to free for unknown tiers.
func (c *Catalog) Lookup(tier Tier) TierPolicy {
	if p, ok := c.policies[tier]; ok {
		return p
	}
	return c.policies[TierFree]
}

// FromLabel maps a price nickname / tier label from a subscription payload to
// a tier. Unknown or empty labels map to free; the caller decides whether that
// deserves a degraded-input warning.
func FromLabel(label string) (Tier, bool) {
	t := Tier(label)
	if t.Valid() {
		return t, true
	}
	return TierFree, false
}
