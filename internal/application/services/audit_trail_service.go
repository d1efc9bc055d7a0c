package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/captionly/metering/internal/core/domain/event"
	"github.com/captionly/metering/internal/core/ports"
)

// AuditTrailService exposes the webhook audit trail to operators, mainly to
// follow up on deliveries that were acknowledged with a processing error.
type AuditTrailService struct {
	repo   ports.EventAuditRepository
	logger *logrus.Logger
}

func NewAuditTrailService(repo ports.EventAuditRepository, logger *logrus.Logger) *AuditTrailService {
	return &AuditTrailService{repo: repo, logger: logger}
}

func (s *AuditTrailService) GetEntries(ctx context.Context, filter *event.AuditFilter) ([]*event.AuditEntry, int, error) {
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
