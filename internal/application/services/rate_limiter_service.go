package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/captionly/metering/internal/core/domain/account"
	"github.com/captionly/metering/internal/core/ports"
)

// RateLimiterService enforces per-customer minimum inter-request delays. The
// whole check is one read-modify-write on the locked account row, so two
// concurrent checks for the same customer inside one delay window can never
// both pass: the second observes the first's last_request_at.
type RateLimiterService struct {
	repo        ports.AccountRepository
	catalog     *account.Catalog
	lockTimeout time.Duration
	logger      *logrus.Logger
}

// RateLimiterConfig groups configuration parameters for the rate limiter.
type RateLimiterConfig struct {
	LockTimeout time.Duration
}

func NewRateLimiterService(repo ports.AccountRepository, catalog *account.Catalog, cfg *RateLimiterConfig, logger *logrus.Logger) *RateLimiterService {
	lt := 2 * time.Second
	if cfg != nil && cfg.LockTimeout > 0 {
		lt = cfg.LockTimeout
	}
	if catalog == nil {
		catalog = account.DefaultCatalog()
	}
	return &RateLimiterService{repo: repo, catalog: catalog, lockTimeout: lt, logger: logger}
}

// CheckRateLimit consumes the customer's turn if permitted.
func (s *RateLimiterService) CheckRateLimit(ctx context.Context, customerID string) (*account.RateLimitDecision, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer id is required")
	}

	// Bound the row-lock wait; a stuck check must fail retryable, not hang.
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, storeFailure("begin rate limit tx", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	a, err := s.repo.GetForUpdate(ctx, tx, customerID)
	if errors.Is(err, account.ErrNotFound) {
		// First touch: provision at the free tier and allow the request.
		a = account.NewAccount(customerID, now)
		if err := s.repo.Insert(ctx, tx, a); err != nil {
			return nil, storeFailure("provision account", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, storeFailure("commit rate limit tx", err)
		}
		if s.logger != nil {
			s.logger.WithField("customer_id", customerID).Info("account provisioned on first request")
		}
		return &account.RateLimitDecision{
			Allowed:     true,
			Tier:        a.Tier,
			Provisioned: true,
			MinDelay:    s.catalog.Lookup(a.Tier).MinDelay,
		}, nil
	}
	if err != nil {
		return nil, storeFailure("lock account", err)
	}

	policy := s.catalog.Lookup(a.Tier)
	elapsed := now.Sub(a.LastRequestAt)
	if elapsed < policy.MinDelay {
		// Rejected without touching last_request_at: a throttled call must
		// not consume the customer's turn. The deferred rollback releases
		// the row lock.
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"customer_id": customerID, "tier": a.Tier, "elapsed_ms": elapsed.Milliseconds()}).Debug("request throttled")
		}
		return nil, &account.ThrottledError{Tier: a.Tier, RetryAfter: policy.MinDelay - elapsed}
	}

	if err := s.repo.UpdateLastRequest(ctx, tx, customerID, now); err != nil {
		return nil, storeFailure("update last request", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storeFailure("commit rate limit tx", err)
	}

	return &account.RateLimitDecision{Allowed: true, Tier: a.Tier, MinDelay: policy.MinDelay}, nil
}

// storeFailure wraps storage errors as retryable. Includes lock waits cut
// short by the bounded context.
func storeFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ports.ErrStoreUnavailable, op, err)
}
