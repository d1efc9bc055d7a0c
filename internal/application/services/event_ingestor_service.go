package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/captionly/metering/internal/core/domain/event"
	"github.com/captionly/metering/internal/core/domain/payment"
	"github.com/captionly/metering/internal/core/ports"
)

// EventIngestorService is the entry point for provider webhook deliveries:
// verify signature, claim the event id in the durable audit log, dispatch by
// type, record the outcome. The claim happens before any state mutation, so
// a redelivered event id is short-circuited with zero additional effect.
type EventIngestorService struct {
	auditRepo ports.EventAuditRepository
	guard     ports.EventGuard
	subs      ports.SubscriptionService
	ledger    ports.PaymentLedgerService
	secret    string
	guardTTL  time.Duration
	logger    *logrus.Logger
}

// EventIngestorConfig groups configuration parameters for the ingestor.
type EventIngestorConfig struct {
	Secret   string
	GuardTTL time.Duration
}

func NewEventIngestorService(auditRepo ports.EventAuditRepository, guard ports.EventGuard, subs ports.SubscriptionService, ledger ports.PaymentLedgerService, cfg *EventIngestorConfig, logger *logrus.Logger) *EventIngestorService {
	ttl := 24 * time.Hour
	secret := ""
	if cfg != nil {
		if cfg.GuardTTL > 0 {
			ttl = cfg.GuardTTL
		}
		secret = cfg.Secret
	}
	return &EventIngestorService{
		auditRepo: auditRepo,
		guard:     guard,
		subs:      subs,
		ledger:    ledger,
		secret:    secret,
		guardTTL:  ttl,
		logger:    logger,
	}
}

// Process handles one inbound delivery.
func (s *EventIngestorService) Process(ctx context.Context, body []byte, signature string) (*event.Outcome, error) {
	if !event.VerifySignature(body, signature, s.secret) {
		s.recordRejected(ctx, body)
		return nil, event.ErrInvalidSignature
	}

	var env event.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed event envelope: %w", err)
	}
	if env.ID == "" {
		return nil, fmt.Errorf("event envelope has no id")
	}

	// Fast-path dedup. The check never marks; an unavailable guard falls
	// through to the durable claim below.
	if s.guard != nil {
		seen, err := s.guard.Seen(ctx, env.ID)
		if err == nil && seen {
			return s.recordDuplicate(ctx, &env, body), nil
		}
		if err != nil && s.logger != nil {
			s.logger.WithError(err).WithField("event_id", env.ID).Warn("dedup guard unavailable, relying on durable log")
		}
	}

	// Claim the event id before applying any effect. A lost claim means a
	// concurrent or earlier delivery already owns this event.
	entry := &event.AuditEntry{
		EventID: env.ID,
		Type:    env.Type,
		Payload: body,
		Status:  event.StatusAccepted,
	}
	if err := s.auditRepo.Insert(ctx, entry); err != nil {
		if errors.Is(err, event.ErrDuplicateEvent) {
			s.markGuard(ctx, env.ID)
			return s.recordDuplicate(ctx, &env, body), nil
		}
		// Without the claim there is no dedup guarantee: refuse to ack and
		// let the provider redeliver. The guard stays unmarked so the
		// redelivery reaches this point again.
		return nil, fmt.Errorf("%w: failed to record event %s: %v", ports.ErrStoreUnavailable, env.ID, err)
	}
	// Only a durably claimed event id may enter the fast path.
	s.markGuard(ctx, env.ID)

	if err := s.dispatch(ctx, &env); err != nil {
		// Acknowledge anyway to stop redelivery storms; the audit log keeps
		// the failure for operator follow-up.
		msg := err.Error()
		if auditErr := s.auditRepo.SetOutcome(ctx, env.ID, event.StatusError, &msg); auditErr != nil && s.logger != nil {
			s.logger.WithError(auditErr).WithField("event_id", env.ID).Error("failed to record processing error")
		}
		if s.logger != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{"event_id": env.ID, "type": env.Type}).Error("event processing failed, delivery acknowledged")
		}
		return &event.Outcome{EventID: env.ID, Type: env.Type, Status: event.StatusError, Err: err}, nil
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"event_id": env.ID, "type": env.Type}).Info("event processed")
	}
	return &event.Outcome{EventID: env.ID, Type: env.Type, Status: event.StatusAccepted}, nil
}

func (s *EventIngestorService) markGuard(ctx context.Context, eventID string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Mark(ctx, eventID, s.guardTTL); err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("event_id", eventID).Warn("failed to mark dedup guard")
	}
}

func (s *EventIngestorService) dispatch(ctx context.Context, env *event.Envelope) error {
	switch env.Type {
	case event.TypeSubscriptionUpdated:
		sub, err := event.ParseSubscription(env.Data)
		if err != nil {
			return err
		}
		if sub.Customer == "" {
			return fmt.Errorf("subscription event %s has no customer", env.ID)
		}
		_, err = s.subs.Apply(ctx, sub.Customer, sub)
		return err

	case event.TypeSubscriptionDeleted:
		sub, err := event.ParseSubscription(env.Data)
		if err != nil {
			return err
		}
		if sub.Customer == "" {
			return fmt.Errorf("subscription event %s has no customer", env.ID)
		}
		return s.subs.Cancel(ctx, sub.Customer)

	case event.TypeCheckoutCompleted:
		cs, err := event.ParseCheckoutSession(env.Data)
		if err != nil {
			return err
		}
		// The subscription object arrives in its own event; the completed
		// session is recorded for the audit trail only.
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"event_id": env.ID, "customer_id": cs.Customer, "mode": cs.Mode}).Info("checkout session completed")
		}
		return nil

	case event.TypePaymentIntentCreated:
		pi, err := event.ParsePaymentIntent(env.Data)
		if err != nil {
			return err
		}
		_, err = s.ledger.Create(ctx, createRequestFromIntent(pi))
		return err

	case event.TypePaymentSucceeded:
		return s.settlePayment(ctx, env, payment.StatusSucceeded)

	case event.TypePaymentFailed:
		return s.settlePayment(ctx, env, payment.StatusFailed)

	default:
		// Monitor-only event types are accepted without side effects.
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"event_id": env.ID, "type": env.Type}).Info("unhandled event type")
		}
		return nil
	}
}

// settlePayment moves an intent to a terminal status, creating the ledger
// record first in case the creating event was never delivered.
func (s *EventIngestorService) settlePayment(ctx context.Context, env *event.Envelope, status payment.Status) error {
	pi, err := event.ParsePaymentIntent(env.Data)
	if err != nil {
		return err
	}
	if _, err := s.ledger.Create(ctx, createRequestFromIntent(pi)); err != nil {
		return err
	}
	_, err = s.ledger.UpdateStatus(ctx, pi.ID, status)
	return err
}

func createRequestFromIntent(pi *event.PaymentIntentObject) *payment.CreatePaymentRequest {
	return &payment.CreatePaymentRequest{
		PaymentIntentID: pi.ID,
		CustomerID:      pi.Customer,
		Amount:          pi.Amount,
		Currency:        pi.Currency,
		InvoiceID:       pi.Invoice,
	}
}

func (s *EventIngestorService) recordDuplicate(ctx context.Context, env *event.Envelope, body []byte) *event.Outcome {
	entry := &event.AuditEntry{
		EventID: env.ID,
		Type:    env.Type,
		Payload: body,
		Status:  event.StatusDuplicate,
	}
	if err := s.auditRepo.Insert(ctx, entry); err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("event_id", env.ID).Error("failed to record duplicate delivery")
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"event_id": env.ID, "type": env.Type}).Info("duplicate delivery short-circuited")
	}
	return &event.Outcome{EventID: env.ID, Type: env.Type, Status: event.StatusDuplicate}
}

func (s *EventIngestorService) recordRejected(ctx context.Context, body []byte) {
	var env event.Envelope
	if err := json.Unmarshal(body, &env); err != nil || env.ID == "" {
		if s.logger != nil {
			s.logger.Warn("rejected unsigned delivery with unreadable envelope")
		}
		return
	}
	entry := &event.AuditEntry{
		EventID: env.ID,
		Type:    env.Type,
		Payload: body,
		Status:  event.StatusRejected,
	}
	if err := s.auditRepo.Insert(ctx, entry); err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("event_id", env.ID).Error("failed to record rejected delivery")
	}
	if s.logger != nil {
		s.logger.WithField("event_id", env.ID).Warn("delivery rejected: signature verification failed")
	}
}
