package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/captionly/metering/internal/core/domain/payment"
	"github.com/captionly/metering/internal/core/ports"
)

// PaymentLedgerService tracks payment-intent lifecycles. Creation is
// idempotent per intent id and status transitions are forward-only, so
// duplicated or reordered provider deliveries cannot corrupt the ledger.
type PaymentLedgerService struct {
	repo   ports.PaymentRepository
	logger *logrus.Logger
}

func NewPaymentLedgerService(repo ports.PaymentRepository, logger *logrus.Logger) *PaymentLedgerService {
	return &PaymentLedgerService{repo: repo, logger: logger}
}

// Create records a payment intent; calling it again for the same id is a
// no-op that returns the stored record.
func (s *PaymentLedgerService) Create(ctx context.Context, req *payment.CreatePaymentRequest) (*payment.Payment, error) {
	if req == nil || req.PaymentIntentID == "" {
		return nil, fmt.Errorf("payment intent id is required")
	}

	p := &payment.Payment{
		PaymentIntentID: req.PaymentIntentID,
		CustomerID:      req.CustomerID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Status:          payment.StatusProcessing,
		InvoiceID:       req.InvoiceID,
	}

	created, err := s.repo.Insert(ctx, p)
	if err != nil {
		return nil, storeFailure("create payment", err)
	}
	if !created {
		// Duplicate delivery of the creating event; keep the stored record.
		if s.logger != nil {
			s.logger.WithField("payment_intent_id", req.PaymentIntentID).Debug("payment already recorded, create ignored")
		}
		return s.repo.GetByID(ctx, req.PaymentIntentID)
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"payment_intent_id": p.PaymentIntentID, "customer_id": p.CustomerID, "amount": p.Amount, "currency": p.Currency}).Info("payment recorded")
	}
	return p, nil
}

// UpdateStatus applies a forward-only transition for the intent id.
func (s *PaymentLedgerService) UpdateStatus(ctx context.Context, paymentIntentID string, status payment.Status) (*payment.Payment, error) {
	if paymentIntentID == "" {
		return nil, fmt.Errorf("payment intent id is required")
	}
	if !status.Valid() {
		return nil, fmt.Errorf("unknown payment status %q", status)
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, storeFailure("begin payment tx", err)
	}
	defer tx.Rollback()

	p, err := s.repo.GetForUpdate(ctx, tx, paymentIntentID)
	if err != nil {
		if err == payment.ErrNotFound {
			return nil, payment.ErrNotFound
		}
		return nil, storeFailure("lock payment", err)
	}

	if p.Status == status {
		// Redelivered transition; already applied.
		return p, nil
	}
	if !p.Status.IsValidTransition(status) {
		return nil, &payment.InvalidTransitionError{
			PaymentIntentID: paymentIntentID,
			From:            p.Status,
			To:              status,
		}
	}

	if err := s.repo.UpdateStatus(ctx, tx, paymentIntentID, status); err != nil {
		return nil, storeFailure("update payment status", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storeFailure("commit payment tx", err)
	}

	p.Status = status
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"payment_intent_id": paymentIntentID, "status": status}).Info("payment status updated")
	}
	return p, nil
}

// GetPayment returns the ledger record for an intent id.
func (s *PaymentLedgerService) GetPayment(ctx context.Context, paymentIntentID string) (*payment.Payment, error) {
	return s.repo.GetByID(ctx, paymentIntentID)
}
