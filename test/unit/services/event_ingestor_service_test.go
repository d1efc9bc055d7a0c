package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	impl "github.com/captionly/metering/internal/application/services"
	"github.com/captionly/metering/internal/core/domain/account"
	"github.com/captionly/metering/internal/core/domain/event"
	"github.com/captionly/metering/internal/core/domain/payment"
	"github.com/captionly/metering/internal/core/ports"
	"github.com/captionly/metering/test/mocks"
)

const testWebhookSecret = "whsec_test"

func signedEnvelope(eventID string, eventType event.Type, object string) ([]byte, string) {
	body := []byte(fmt.Sprintf(`{"id":%q,"type":%q,"data":{"object":%s}}`, eventID, eventType, object))
	return body, event.Sign(body, testWebhookSecret)
}

func newIngestor(auditRepo *mocks.EventAuditRepositoryMock, guard *mocks.EventGuardMock, subs *mocks.SubscriptionServiceMock, ledger *mocks.PaymentLedgerServiceMock) *impl.EventIngestorService {
	return impl.NewEventIngestorService(auditRepo, guard, subs, ledger, &impl.EventIngestorConfig{Secret: testWebhookSecret}, nil)
}

func TestProcess_InvalidSignature(t *testing.T) {
	recorded := false
	auditRepo := &mocks.EventAuditRepositoryMock{
		InsertFn: func(ctx context.Context, entry *event.AuditEntry) error {
			if entry.Status != event.StatusRejected {
				t.Fatalf("expected a rejected entry, got %s", entry.Status)
			}
			recorded = true
			return nil
		},
	}
	svc := newIngestor(auditRepo, &mocks.EventGuardMock{}, &mocks.SubscriptionServiceMock{}, &mocks.PaymentLedgerServiceMock{})

	body, _ := signedEnvelope("evt_1", event.TypeSubscriptionUpdated, `{"id":"sub_1","customer":"cus_1"}`)
	_, err := svc.Process(context.Background(), body, "sha256=deadbeef")
	if !errors.Is(err, event.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if !recorded {
		t.Fatalf("expected the rejected delivery in the audit trail")
	}
}

func TestProcess_SubscriptionUpdatedApplied(t *testing.T) {
	var claimed *event.AuditEntry
	auditRepo := &mocks.EventAuditRepositoryMock{
		InsertFn: func(ctx context.Context, entry *event.AuditEntry) error {
			claimed = entry
			return nil
		},
	}
	var appliedCustomer string
	subs := &mocks.SubscriptionServiceMock{
		ApplyFn: func(ctx context.Context, customerID string, sub *event.SubscriptionObject) (account.Tier, error) {
			appliedCustomer = customerID
			return account.TierPro, nil
		},
	}
	svc := newIngestor(auditRepo, &mocks.EventGuardMock{}, subs, &mocks.PaymentLedgerServiceMock{})

	body, sig := signedEnvelope("evt_1", event.TypeSubscriptionUpdated,
		`{"id":"sub_1","customer":"cus_1","current_period_end":1893456000,"items":{"data":[{"price":{"nickname":"pro"}}]}}`)
	outcome, err := svc.Process(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != event.StatusAccepted || outcome.EventID != "evt_1" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if appliedCustomer != "cus_1" {
		t.Fatalf("expected apply for cus_1, got %q", appliedCustomer)
	}
	if claimed == nil || claimed.Status != event.StatusAccepted {
		t.Fatalf("expected an accepted claim in the audit log, got %+v", claimed)
	}
}

func TestProcess_DuplicateClaimShortCircuits(t *testing.T) {
	inserts := 0
	auditRepo := &mocks.EventAuditRepositoryMock{
		InsertFn: func(ctx context.Context, entry *event.AuditEntry) error {
			inserts++
			if inserts == 1 {
				// The durable log already holds the accepted claim.
				return event.ErrDuplicateEvent
			}
			if entry.Status != event.StatusDuplicate {
				t.Fatalf("redelivery must be logged as duplicate, got %s", entry.Status)
			}
			return nil
		},
	}
	subs := &mocks.SubscriptionServiceMock{
		ApplyFn: func(ctx context.Context, customerID string, sub *event.SubscriptionObject) (account.Tier, error) {
			t.Fatalf("a duplicate delivery must not reach the reconciler")
			return account.TierFree, nil
		},
	}
	svc := newIngestor(auditRepo, &mocks.EventGuardMock{}, subs, &mocks.PaymentLedgerServiceMock{})

	body, sig := signedEnvelope("evt_1", event.TypeSubscriptionUpdated,
		`{"id":"sub_1","customer":"cus_1","items":{"data":[{"price":{"nickname":"pro"}}]}}`)
	outcome, err := svc.Process(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("a duplicate must still be acknowledged, got %v", err)
	}
	if outcome.Status != event.StatusDuplicate {
		t.Fatalf("expected duplicate outcome, got %s", outcome.Status)
	}
	if inserts != 2 {
		t.Fatalf("expected the duplicate delivery logged as its own entry, got %d inserts", inserts)
	}
}

func TestProcess_GuardShortCircuitsRedelivery(t *testing.T) {
	// A marked guard implies the durable log already holds the claim.
	guard := &mocks.EventGuardMock{
		SeenFn: func(ctx context.Context, eventID string) (bool, error) {
			return true, nil
		},
	}
	claims := 0
	auditRepo := &mocks.EventAuditRepositoryMock{
		InsertFn: func(ctx context.Context, entry *event.AuditEntry) error {
			if entry.Status == event.StatusAccepted {
				claims++
			}
			return nil
		},
	}
	svc := newIngestor(auditRepo, guard, &mocks.SubscriptionServiceMock{}, &mocks.PaymentLedgerServiceMock{})

	body, sig := signedEnvelope("evt_1", event.TypeCheckoutCompleted, `{"id":"cs_1","customer":"cus_1"}`)
	outcome, err := svc.Process(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != event.StatusDuplicate {
		t.Fatalf("expected duplicate outcome from the guard, got %s", outcome.Status)
	}
	if claims != 0 {
		t.Fatalf("guard hit must not attempt a durable claim")
	}
}

func TestProcess_GuardMarkedOnlyAfterDurableClaim(t *testing.T) {
	claimed := false
	auditRepo := &mocks.EventAuditRepositoryMock{
		InsertFn: func(ctx context.Context, entry *event.AuditEntry) error {
			claimed = true
			return nil
		},
	}
	marked := false
	guard := &mocks.EventGuardMock{
		MarkFn: func(ctx context.Context, eventID string, ttl time.Duration) error {
			if !claimed {
				t.Fatalf("guard marked before the durable claim")
			}
			marked = true
			return nil
		},
	}
	svc := newIngestor(auditRepo, guard, &mocks.SubscriptionServiceMock{}, &mocks.PaymentLedgerServiceMock{})

	body, sig := signedEnvelope("evt_1", event.TypeCheckoutCompleted, `{"id":"cs_1","customer":"cus_1"}`)
	if _, err := svc.Process(context.Background(), body, sig); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !marked {
		t.Fatalf("expected the guard marked after the claim")
	}
}

func TestProcess_StoreFailureDoesNotPoisonDedup(t *testing.T) {
	// The durable insert fails on the first delivery, so the provider is not
	// acked and will redeliver. The redelivery against a recovered store must
	// apply the event's effect, not be swallowed as a duplicate.
	storeDown := true
	claims := 0
	auditRepo := &mocks.EventAuditRepositoryMock{
		InsertFn: func(ctx context.Context, entry *event.AuditEntry) error {
			if storeDown {
				return errors.New("connection refused")
			}
			if entry.Status == event.StatusAccepted {
				claims++
			}
			return nil
		},
	}
	markedIDs := map[string]bool{}
	guard := &mocks.EventGuardMock{
		SeenFn: func(ctx context.Context, eventID string) (bool, error) {
			return markedIDs[eventID], nil
		},
		MarkFn: func(ctx context.Context, eventID string, ttl time.Duration) error {
			markedIDs[eventID] = true
			return nil
		},
	}
	applied := 0
	subs := &mocks.SubscriptionServiceMock{
		ApplyFn: func(ctx context.Context, customerID string, sub *event.SubscriptionObject) (account.Tier, error) {
			applied++
			return account.TierPro, nil
		},
	}
	svc := newIngestor(auditRepo, guard, subs, &mocks.PaymentLedgerServiceMock{})

	body, sig := signedEnvelope("evt_1", event.TypeSubscriptionUpdated,
		`{"id":"sub_1","customer":"cus_1","items":{"data":[{"price":{"nickname":"pro"}}]}}`)

	if _, err := svc.Process(context.Background(), body, sig); !errors.Is(err, ports.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable while the store is down, got %v", err)
	}
	if markedIDs["evt_1"] {
		t.Fatalf("a failed claim must leave the guard unmarked")
	}

	storeDown = false
	outcome, err := svc.Process(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("unexpected error on redelivery: %v", err)
	}
	if outcome.Status != event.StatusAccepted {
		t.Fatalf("expected the redelivery accepted, got %s", outcome.Status)
	}
	if applied != 1 || claims != 1 {
		t.Fatalf("expected exactly one applied effect and one claim, got applied=%d claims=%d", applied, claims)
	}
}

func TestProcess_DispatchFailureStillAcknowledged(t *testing.T) {
	var outcomeStatus event.ProcessingStatus
	var outcomeErr *string
	auditRepo := &mocks.EventAuditRepositoryMock{
		SetOutcomeFn: func(ctx context.Context, eventID string, status event.ProcessingStatus, processingErr *string) error {
			outcomeStatus, outcomeErr = status, processingErr
			return nil
		},
	}
	subs := &mocks.SubscriptionServiceMock{
		ApplyFn: func(ctx context.Context, customerID string, sub *event.SubscriptionObject) (account.Tier, error) {
			return "", errors.New("accounts table is on fire")
		},
	}
	svc := newIngestor(auditRepo, &mocks.EventGuardMock{}, subs, &mocks.PaymentLedgerServiceMock{})

	body, sig := signedEnvelope("evt_1", event.TypeSubscriptionUpdated,
		`{"id":"sub_1","customer":"cus_1","items":{"data":[{"price":{"nickname":"pro"}}]}}`)
	outcome, err := svc.Process(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("a downstream failure must still acknowledge, got %v", err)
	}
	if outcome.Status != event.StatusError || outcome.Err == nil {
		t.Fatalf("expected error outcome, got %+v", outcome)
	}
	if outcomeStatus != event.StatusError || outcomeErr == nil {
		t.Fatalf("expected the failure recorded in the audit trail")
	}
}

func TestProcess_PaymentSucceededSettlesLedger(t *testing.T) {
	created := false
	settled := false
	ledger := &mocks.PaymentLedgerServiceMock{
		CreateFn: func(ctx context.Context, req *payment.CreatePaymentRequest) (*payment.Payment, error) {
			created = true
			if req.PaymentIntentID != "pi_1" || req.Amount != 1999 {
				t.Fatalf("unexpected create request: %+v", req)
			}
			return &payment.Payment{PaymentIntentID: req.PaymentIntentID, Status: payment.StatusProcessing}, nil
		},
		UpdateStatusFn: func(ctx context.Context, paymentIntentID string, status payment.Status) (*payment.Payment, error) {
			settled = true
			if status != payment.StatusSucceeded {
				t.Fatalf("expected succeeded, got %s", status)
			}
			return &payment.Payment{PaymentIntentID: paymentIntentID, Status: status}, nil
		},
	}
	svc := newIngestor(&mocks.EventAuditRepositoryMock{}, &mocks.EventGuardMock{}, &mocks.SubscriptionServiceMock{}, ledger)

	body, sig := signedEnvelope("evt_1", event.TypePaymentSucceeded,
		`{"id":"pi_1","customer":"cus_1","amount":1999,"currency":"usd","status":"succeeded"}`)
	outcome, err := svc.Process(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != event.StatusAccepted {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if !created || !settled {
		t.Fatalf("expected ledger create and settle, got created=%v settled=%v", created, settled)
	}
}

func TestProcess_UnknownTypeAcceptedWithoutEffect(t *testing.T) {
	svc := newIngestor(&mocks.EventAuditRepositoryMock{}, &mocks.EventGuardMock{}, &mocks.SubscriptionServiceMock{}, &mocks.PaymentLedgerServiceMock{})

	body, sig := signedEnvelope("evt_1", "invoice.finalized", `{"id":"in_1"}`)
	outcome, err := svc.Process(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != event.StatusAccepted {
		t.Fatalf("monitor-only events must be accepted, got %s", outcome.Status)
	}
}

func TestProcess_MalformedEnvelope(t *testing.T) {
	svc := newIngestor(&mocks.EventAuditRepositoryMock{}, &mocks.EventGuardMock{}, &mocks.SubscriptionServiceMock{}, &mocks.PaymentLedgerServiceMock{})

	body := []byte(`{"id": `)
	if _, err := svc.Process(context.Background(), body, event.Sign(body, testWebhookSecret)); err == nil {
		t.Fatalf("expected error for malformed envelope")
	}
}
