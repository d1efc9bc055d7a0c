package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	impl "github.com/captionly/metering/internal/application/services"
	"github.com/captionly/metering/internal/core/domain/event"
	"github.com/captionly/metering/test/mocks"
)

func TestGetEntries_ForwardsFilterAndTotal(t *testing.T) {
	status := event.StatusError
	repo := &mocks.EventAuditRepositoryMock{
		ListFn: func(ctx context.Context, filter *event.AuditFilter) ([]*event.AuditEntry, error) {
			require.NotNil(t, filter.Status)
			require.Equal(t, event.StatusError, *filter.Status)
			return []*event.AuditEntry{{EventID: "evt_1", Status: event.StatusError}}, nil
		},
		CountFn: func(ctx context.Context, filter *event.AuditFilter) (int, error) {
			return 14, nil
		},
	}

	svc := impl.NewAuditTrailService(repo, nil)
	entries, total, err := svc.GetEntries(context.Background(), &event.AuditFilter{Status: &status, Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "evt_1", entries[0].EventID)
	require.Equal(t, 14, total)
}

func TestGetEntries_PropagatesListError(t *testing.T) {
	repo := &mocks.EventAuditRepositoryMock{
		ListFn: func(ctx context.Context, filter *event.AuditFilter) ([]*event.AuditEntry, error) {
			return nil, context.DeadlineExceeded
		},
	}

	svc := impl.NewAuditTrailService(repo, nil)
	_, _, err := svc.GetEntries(context.Background(), &event.AuditFilter{Limit: 10})
	require.Error(t, err)
}
