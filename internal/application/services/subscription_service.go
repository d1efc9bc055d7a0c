package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/captionly/metering/internal/core/domain/account"
	"github.com/captionly/metering/internal/core/domain/event"
	"github.com/captionly/metering/internal/core/ports"
)

// SubscriptionService reconciles provider subscription payloads onto account
// tiers. Applying a payload is idempotent, and a payload whose period ends
// before the stored period end is ignored so out-of-order redelivery cannot
// downgrade an already-upgraded customer.
type SubscriptionService struct {
	repo   ports.AccountRepository
	logger *logrus.Logger
}

func NewSubscriptionService(repo ports.AccountRepository, logger *logrus.Logger) *SubscriptionService {
	return &SubscriptionService{repo: repo, logger: logger}
}

// Apply maps the payload to a tier and persists it.
func (s *SubscriptionService) Apply(ctx context.Context, customerID string, sub *event.SubscriptionObject) (account.Tier, error) {
	if customerID == "" {
		return "", fmt.Errorf("customer id is required")
	}
	if sub == nil {
		return "", fmt.Errorf("subscription payload is required")
	}

	label := sub.TierLabel()
	tier, known := account.FromLabel(label)
	if !known && s.logger != nil {
		// Deliberately loud: a missing or unknown price label may be a
		// misconfigured price upstream rather than a free-tier customer.
		s.logger.WithFields(logrus.Fields{
			"customer_id":     customerID,
			"subscription_id": sub.ID,
			"price_label":     label,
		}).Warn("degraded subscription payload: unknown price tier label, defaulting to free")
	}
	payloadEnd := sub.PeriodEnd()

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return "", storeFailure("begin subscription tx", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	a, err := s.repo.GetForUpdate(ctx, tx, customerID)
	if errors.Is(err, account.ErrNotFound) {
		a = account.NewAccount(customerID, now)
		// The customer has not made a request yet; leave them a free first
		// rate-limit turn.
		a.LastRequestAt = time.Time{}
		a.Tier = tier
		if !payloadEnd.IsZero() {
			a.PeriodEnd = payloadEnd
		}
		if err := s.repo.Insert(ctx, tx, a); err != nil {
			return "", storeFailure("provision account", err)
		}
		if err := tx.Commit(); err != nil {
			return "", storeFailure("commit subscription tx", err)
		}
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"customer_id": customerID, "tier": tier}).Info("account provisioned from subscription event")
		}
		return tier, nil
	}
	if err != nil {
		return "", storeFailure("lock account", err)
	}

	if !payloadEnd.IsZero() && payloadEnd.Before(a.PeriodEnd) {
		// Stale redelivery: a later event has already advanced the period.
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{
				"customer_id":        customerID,
				"subscription_id":    sub.ID,
				"payload_period_end": payloadEnd,
				"stored_period_end":  a.PeriodEnd,
			}).Info("ignoring stale subscription payload")
		}
		return a.Tier, nil
	}

	newEnd := payloadEnd
	if newEnd.IsZero() {
		newEnd = a.PeriodEnd
	}
	if err := s.repo.UpdateSubscription(ctx, tx, customerID, tier, newEnd); err != nil {
		return "", storeFailure("update subscription", err)
	}
	if err := tx.Commit(); err != nil {
		return "", storeFailure("commit subscription tx", err)
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"customer_id": customerID, "tier": tier, "period_end": newEnd}).Info("subscription reconciled")
	}
	return tier, nil
}

// Cancel downgrades the account to the free tier after a subscription
// deletion. Unknown customers are a no-op: there is nothing to downgrade.
func (s *SubscriptionService) Cancel(ctx context.Context, customerID string) error {
	if customerID == "" {
		return fmt.Errorf("customer id is required")
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return storeFailure("begin cancel tx", err)
	}
	defer tx.Rollback()

	a, err := s.repo.GetForUpdate(ctx, tx, customerID)
	if errors.Is(err, account.ErrNotFound) {
		if s.logger != nil {
			s.logger.WithField("customer_id", customerID).Debug("cancel for unknown customer ignored")
		}
		return nil
	}
	if err != nil {
		return storeFailure("lock account", err)
	}

	if err := s.repo.UpdateSubscription(ctx, tx, customerID, account.TierFree, a.PeriodEnd); err != nil {
		return storeFailure("update subscription", err)
	}
	if err := tx.Commit(); err != nil {
		return storeFailure("commit cancel tx", err)
	}

	if s.logger != nil {
		s.logger.WithField("customer_id", customerID).Info("subscription canceled, account downgraded to free")
	}
	return nil
}
