package mocks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/captionly/metering/internal/core/domain/account"
	"github.com/captionly/metering/internal/core/domain/event"
	"github.com/captionly/metering/internal/core/domain/payment"
)

// AccountRepositoryMock is a lightweight mock for AccountRepository
type AccountRepositoryMock struct {
	BeginTxFn            func(ctx context.Context) (*sql.Tx, error)
	GetForUpdateFn       func(ctx context.Context, tx *sql.Tx, customerID string) (*account.Account, error)
	InsertFn             func(ctx context.Context, tx *sql.Tx, a *account.Account) error
	UpdateLastRequestFn  func(ctx context.Context, tx *sql.Tx, customerID string, at time.Time) error
	UpdateUsageFn        func(ctx context.Context, tx *sql.Tx, a *account.Account) error
	UpdateSubscriptionFn func(ctx context.Context, tx *sql.Tx, customerID string, tier account.Tier, periodEnd time.Time) error
	GetByIDFn            func(ctx context.Context, customerID string) (*account.Account, error)
}

func (m *AccountRepositoryMock) BeginTx(ctx context.Context) (*sql.Tx, error) {
	if m.BeginTxFn != nil {
		return m.BeginTxFn(ctx)
	}
	return nil, fmt.Errorf("BeginTx not configured")
}
func (m *AccountRepositoryMock) GetForUpdate(ctx context.Context, tx *sql.Tx, customerID string) (*account.Account, error) {
	if m.GetForUpdateFn != nil {
		return m.GetForUpdateFn(ctx, tx, customerID)
	}
	return nil, account.ErrNotFound
}
func (m *AccountRepositoryMock) Insert(ctx context.Context, tx *sql.Tx, a *account.Account) error {
	if m.InsertFn != nil {
		return m.InsertFn(ctx, tx, a)
	}
	return nil
}
func (m *AccountRepositoryMock) UpdateLastRequest(ctx context.Context, tx *sql.Tx, customerID string, at time.Time) error {
	if m.UpdateLastRequestFn != nil {
		return m.UpdateLastRequestFn(ctx, tx, customerID, at)
	}
	return nil
}
func (m *AccountRepositoryMock) UpdateUsage(ctx context.Context, tx *sql.Tx, a *account.Account) error {
	if m.UpdateUsageFn != nil {
		return m.UpdateUsageFn(ctx, tx, a)
	}
	return nil
}
func (m *AccountRepositoryMock) UpdateSubscription(ctx context.Context, tx *sql.Tx, customerID string, tier account.Tier, periodEnd time.Time) error {
	if m.UpdateSubscriptionFn != nil {
		return m.UpdateSubscriptionFn(ctx, tx, customerID, tier, periodEnd)
	}
	return nil
}
func (m *AccountRepositoryMock) GetByID(ctx context.Context, customerID string) (*account.Account, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, customerID)
	}
	return nil, account.ErrNotFound
}

// PaymentRepositoryMock is a lightweight mock for PaymentRepository
type PaymentRepositoryMock struct {
	BeginTxFn      func(ctx context.Context) (*sql.Tx, error)
	InsertFn       func(ctx context.Context, p *payment.Payment) (bool, error)
	GetForUpdateFn func(ctx context.Context, tx *sql.Tx, paymentIntentID string) (*payment.Payment, error)
	UpdateStatusFn func(ctx context.Context, tx *sql.Tx, paymentIntentID string, status payment.Status) error
	GetByIDFn      func(ctx context.Context, paymentIntentID string) (*payment.Payment, error)
}

func (m *PaymentRepositoryMock) BeginTx(ctx context.Context) (*sql.Tx, error) {
	if m.BeginTxFn != nil {
		return m.BeginTxFn(ctx)
	}
	return nil, fmt.Errorf("BeginTx not configured")
}
func (m *PaymentRepositoryMock) Insert(ctx context.Context, p *payment.Payment) (bool, error) {
	if m.InsertFn != nil {
		return m.InsertFn(ctx, p)
	}
	return true, nil
}
func (m *PaymentRepositoryMock) GetForUpdate(ctx context.Context, tx *sql.Tx, paymentIntentID string) (*payment.Payment, error) {
	if m.GetForUpdateFn != nil {
		return m.GetForUpdateFn(ctx, tx, paymentIntentID)
	}
	return nil, payment.ErrNotFound
}
func (m *PaymentRepositoryMock) UpdateStatus(ctx context.Context, tx *sql.Tx, paymentIntentID string, status payment.Status) error {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, tx, paymentIntentID, status)
	}
	return nil
}
func (m *PaymentRepositoryMock) GetByID(ctx context.Context, paymentIntentID string) (*payment.Payment, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, paymentIntentID)
	}
	return nil, payment.ErrNotFound
}

// EventAuditRepositoryMock is a lightweight mock for EventAuditRepository
type EventAuditRepositoryMock struct {
	InsertFn     func(ctx context.Context, entry *event.AuditEntry) error
	SetOutcomeFn func(ctx context.Context, eventID string, status event.ProcessingStatus, processingErr *string) error
	ListFn       func(ctx context.Context, filter *event.AuditFilter) ([]*event.AuditEntry, error)
	CountFn      func(ctx context.Context, filter *event.AuditFilter) (int, error)
}

func (m *EventAuditRepositoryMock) Insert(ctx context.Context, entry *event.AuditEntry) error {
	if m.InsertFn != nil {
		return m.InsertFn(ctx, entry)
	}
	return nil
}
func (m *EventAuditRepositoryMock) SetOutcome(ctx context.Context, eventID string, status event.ProcessingStatus, processingErr *string) error {
	if m.SetOutcomeFn != nil {
		return m.SetOutcomeFn(ctx, eventID, status, processingErr)
	}
	return nil
}
func (m *EventAuditRepositoryMock) List(ctx context.Context, filter *event.AuditFilter) ([]*event.AuditEntry, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	return nil, nil
}
func (m *EventAuditRepositoryMock) Count(ctx context.Context, filter *event.AuditFilter) (int, error) {
	if m.CountFn != nil {
		return m.CountFn(ctx, filter)
	}
	return 0, nil
}

// EventGuardMock is a lightweight mock for EventGuard
type EventGuardMock struct {
	SeenFn func(ctx context.Context, eventID string) (bool, error)
	MarkFn func(ctx context.Context, eventID string, ttl time.Duration) error
}

func (m *EventGuardMock) Seen(ctx context.Context, eventID string) (bool, error) {
	if m.SeenFn != nil {
		return m.SeenFn(ctx, eventID)
	}
	return false, nil
}

func (m *EventGuardMock) Mark(ctx context.Context, eventID string, ttl time.Duration) error {
	if m.MarkFn != nil {
		return m.MarkFn(ctx, eventID, ttl)
	}
	return nil
}

// SubscriptionServiceMock is a lightweight mock for SubscriptionService
type SubscriptionServiceMock struct {
	ApplyFn  func(ctx context.Context, customerID string, sub *event.SubscriptionObject) (account.Tier, error)
	CancelFn func(ctx context.Context, customerID string) error
}

func (m *SubscriptionServiceMock) Apply(ctx context.Context, customerID string, sub *event.SubscriptionObject) (account.Tier, error) {
	if m.ApplyFn != nil {
		return m.ApplyFn(ctx, customerID, sub)
	}
	return account.TierFree, nil
}
func (m *SubscriptionServiceMock) Cancel(ctx context.Context, customerID string) error {
	if m.CancelFn != nil {
		return m.CancelFn(ctx, customerID)
	}
	return nil
}

// PaymentLedgerServiceMock is a lightweight mock for PaymentLedgerService
type PaymentLedgerServiceMock struct {
	CreateFn       func(ctx context.Context, req *payment.CreatePaymentRequest) (*payment.Payment, error)
	UpdateStatusFn func(ctx context.Context, paymentIntentID string, status payment.Status) (*payment.Payment, error)
	GetPaymentFn   func(ctx context.Context, paymentIntentID string) (*payment.Payment, error)
}

func (m *PaymentLedgerServiceMock) Create(ctx context.Context, req *payment.CreatePaymentRequest) (*payment.Payment, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, req)
	}
	return &payment.Payment{PaymentIntentID: req.PaymentIntentID, Status: payment.StatusProcessing}, nil
}
func (m *PaymentLedgerServiceMock) UpdateStatus(ctx context.Context, paymentIntentID string, status payment.Status) (*payment.Payment, error) {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, paymentIntentID, status)
	}
	return &payment.Payment{PaymentIntentID: paymentIntentID, Status: status}, nil
}
func (m *PaymentLedgerServiceMock) GetPayment(ctx context.Context, paymentIntentID string) (*payment.Payment, error) {
	if m.GetPaymentFn != nil {
		return m.GetPaymentFn(ctx, paymentIntentID)
	}
	return nil, payment.ErrNotFound
}

// RateLimiterServiceMock is a lightweight mock for RateLimiterService
type RateLimiterServiceMock struct {
	CheckRateLimitFn func(ctx context.Context, customerID string) (*account.RateLimitDecision, error)
}

func (m *RateLimiterServiceMock) CheckRateLimit(ctx context.Context, customerID string) (*account.RateLimitDecision, error) {
	if m.CheckRateLimitFn != nil {
		return m.CheckRateLimitFn(ctx, customerID)
	}
	return &account.RateLimitDecision{Allowed: true, Tier: account.TierFree}, nil
}

// UsageServiceMock is a lightweight mock for UsageService
type UsageServiceMock struct {
	RecordUsageFn func(ctx context.Context, req *account.RecordUsageRequest) (*account.UsageCounters, error)
	GetUsageFn    func(ctx context.Context, customerID string) (*account.UsageCounters, error)
}

func (m *UsageServiceMock) RecordUsage(ctx context.Context, req *account.RecordUsageRequest) (*account.UsageCounters, error) {
	if m.RecordUsageFn != nil {
		return m.RecordUsageFn(ctx, req)
	}
	return &account.UsageCounters{Tier: account.TierFree}, nil
}
func (m *UsageServiceMock) GetUsage(ctx context.Context, customerID string) (*account.UsageCounters, error) {
	if m.GetUsageFn != nil {
		return m.GetUsageFn(ctx, customerID)
	}
	return nil, account.ErrNotFound
}

// EventIngestorServiceMock is a lightweight mock for EventIngestorService
type EventIngestorServiceMock struct {
	ProcessFn func(ctx context.Context, body []byte, signature string) (*event.Outcome, error)
}

func (m *EventIngestorServiceMock) Process(ctx context.Context, body []byte, signature string) (*event.Outcome, error) {
	if m.ProcessFn != nil {
		return m.ProcessFn(ctx, body, signature)
	}
	return &event.Outcome{Status: event.StatusAccepted}, nil
}

// AuditTrailServiceMock is a lightweight mock for AuditTrailService
type AuditTrailServiceMock struct {
	GetEntriesFn func(ctx context.Context, filter *event.AuditFilter) ([]*event.AuditEntry, int, error)
}

func (m *AuditTrailServiceMock) GetEntries(ctx context.Context, filter *event.AuditFilter) ([]*event.AuditEntry, int, error) {
	if m.GetEntriesFn != nil {
		return m.GetEntriesFn(ctx, filter)
	}
	return nil, 0, nil
}
