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

// UsageService tracks consumed requests and tokens against the tier ceilings.
// Rollover and increment happen inside the same transaction on the locked
// account row, so a rollover can never interleave with a concurrent
// increment.
type UsageService struct {
	repo    ports.AccountRepository
	catalog *account.Catalog
	logger  *logrus.Logger
}

func NewUsageService(repo ports.AccountRepository, catalog *account.Catalog, logger *logrus.Logger) *UsageService {
	if catalog == nil {
		catalog = account.DefaultCatalog()
	}
	return &UsageService{repo: repo, catalog: catalog, logger: logger}
}

// RecordUsage applies the increments after an elapsed-period rollover check.
func (s *UsageService) RecordUsage(ctx context.Context, req *account.RecordUsageRequest) (*account.UsageCounters, error) {
	if req == nil || req.CustomerID == "" {
		return nil, fmt.Errorf("customer id is required")
	}
	if req.Requests < 0 || req.Tokens < 0 {
		return nil, fmt.Errorf("usage increments must not be negative")
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, storeFailure("begin usage tx", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	a, err := s.repo.GetForUpdate(ctx, tx, req.CustomerID)
	if errors.Is(err, account.ErrNotFound) {
		// Usage for an unseen customer provisions the account the same way
		// a first rate-limit check does, without consuming a rate turn.
		a = account.NewAccount(req.CustomerID, now)
		a.LastRequestAt = time.Time{}
		if err := s.repo.Insert(ctx, tx, a); err != nil {
			return nil, storeFailure("provision account", err)
		}
	} else if err != nil {
		return nil, storeFailure("lock account", err)
	}

	if a.PeriodElapsed(now) {
		a.Rollover(now)
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"customer_id": a.CustomerID, "period_end": a.PeriodEnd}).Info("usage period rolled over")
		}
	}

	policy := s.catalog.Lookup(a.Tier)
	newRequests := a.RequestsUsed + req.Requests
	newTokens := a.TokensUsed + req.Tokens
	overCeiling := newRequests > policy.RequestsPerPeriod || newTokens > policy.TokensPerPeriod

	if overCeiling && !policy.AllowOverage {
		// Counters stay untouched; the deferred rollback also discards any
		// in-memory rollover, which the next call will redo.
		return nil, &account.QuotaExceededError{
			Tier:      a.Tier,
			Limit:     policy.RequestsPerPeriod,
			PeriodEnd: a.PeriodEnd,
		}
	}

	a.RequestsUsed = newRequests
	a.TokensUsed = newTokens
	if err := s.repo.UpdateUsage(ctx, tx, a); err != nil {
		return nil, storeFailure("update usage", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storeFailure("commit usage tx", err)
	}

	counters := countersFromAccount(a)
	counters.OverageIncurred = overCeiling
	if overCeiling && s.logger != nil {
		s.logger.WithFields(logrus.Fields{"customer_id": a.CustomerID, "requests_used": a.RequestsUsed, "tokens_used": a.TokensUsed}).Info("overage incurred for enterprise account")
	}
	return counters, nil
}

// GetUsage returns the stored counters without mutating anything. A pending
// rollover is applied by the next RecordUsage call, not by reads.
func (s *UsageService) GetUsage(ctx context.Context, customerID string) (*account.UsageCounters, error) {
	a, err := s.repo.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return countersFromAccount(a), nil
}

func countersFromAccount(a *account.Account) *account.UsageCounters {
	return &account.UsageCounters{
		Tier:         a.Tier,
		RequestsUsed: a.RequestsUsed,
		TokensUsed:   a.TokensUsed,
		PeriodStart:  a.PeriodStart,
		PeriodEnd:    a.PeriodEnd,
	}
}
