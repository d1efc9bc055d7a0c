package repositories

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/captionly/metering/internal/core/domain/event"
	"github.com/captionly/metering/internal/core/ports"
	"github.com/captionly/metering/internal/infrastructure/db"
)

// uniqueViolation is the Postgres error code raised by the partial unique
// index on effectful entries (one accepted/error row per event id).
const uniqueViolation = "23505"

type eventAuditRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

// NewEventAuditRepository creates a new instance of EventAuditRepository
func NewEventAuditRepository(database *db.Database, logger *logrus.Logger) ports.EventAuditRepository {
	return &eventAuditRepository{
		db:     database,
		logger: logger,
	}
}

// Insert writes one delivery-attempt entry. Effectful statuses (accepted,
// error) claim the event id; a second claim fails with ErrDuplicateEvent.
func (r *eventAuditRepository) Insert(ctx context.Context, entry *event.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO webhook_events (
			id, event_id, type, received_at, payload, status, processing_error
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)`

	_, err := r.db.DB.ExecContext(ctx, query,
		entry.ID,
		entry.EventID,
		entry.Type,
		entry.ReceivedAt,
		// Text, not bytes: pq would bind []byte as bytea, which jsonb
		// rejects.
		string(entry.Payload),
		entry.Status,
		entry.ProcessingError,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return event.ErrDuplicateEvent
		}
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"event_id": entry.EventID, "type": entry.Type}).WithError(err).Error("db: failed to insert audit entry")
		}
		return err
	}
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"event_id": entry.EventID, "type": entry.Type, "status": entry.Status}).Debug("db: audit entry inserted")
	}
	return nil
}

// SetOutcome records the final processing status on the effectful entry.
func (r *eventAuditRepository) SetOutcome(ctx context.Context, eventID string, status event.ProcessingStatus, processingErr *string) error {
	query := `
		UPDATE webhook_events
		SET status = $2, processing_error = $3
		WHERE event_id = $1 AND status IN ('accepted', 'error')`

	_, err := r.db.DB.ExecContext(ctx, query, eventID, status, processingErr)
	if err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"event_id": eventID, "status": status}).WithError(err).Error("db: failed to set audit outcome")
		}
		return err
	}
	return nil
}

// List retrieves audit entries based on the provided filter
func (r *eventAuditRepository) List(ctx context.Context, filter *event.AuditFilter) ([]*event.AuditEntry, error) {
	query, args := r.buildListQuery(filter, false)
	rows, err := r.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"query": query}).WithError(err).Error("db: failed to execute audit list query")
		}
		return nil, err
	}
	defer rows.Close()

	var entries []*event.AuditEntry
	for rows.Next() {
		entry := &event.AuditEntry{}
		var payload []byte
		var processingError sql.NullString

		err := rows.Scan(
			&entry.ID,
			&entry.EventID,
			&entry.Type,
			&entry.ReceivedAt,
			&payload,
			&entry.Status,
			&processingError,
		)
		if err != nil {
			return nil, err
		}
		entry.Payload = payload
		if processingError.Valid {
			entry.ProcessingError = &processingError.String
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		if r.logger != nil {
			r.logger.WithError(err).Error("db: error iterating audit list rows")
		}
		return nil, err
	}

	return entries, nil
}

// Count returns the total number of audit entries matching the filter
func (r *eventAuditRepository) Count(ctx context.Context, filter *event.AuditFilter) (int, error) {
	query, args := r.buildListQuery(filter, true)

	var count int
	err := r.db.DB.GetContext(ctx, &count, query, args...)
	if err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"query": query}).WithError(err).Error("db: failed to execute audit count query")
		}
		return 0, err
	}
	return count, nil
}

// buildListQuery constructs the SQL query and arguments for listing/counting audit entries
func (r *eventAuditRepository) buildListQuery(filter *event.AuditFilter, isCount bool) (string, []interface{}) {
	var selectClause string
	if isCount {
		selectClause = "SELECT COUNT(*)"
	} else {
		selectClause = `SELECT id, event_id, type, received_at, payload, status, processing_error`
	}

	query := selectClause + " FROM webhook_events"
	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter != nil {
		if filter.EventID != nil {
			conditions = append(conditions, "event_id = $"+strconv.Itoa(argIndex))
			args = append(args, *filter.EventID)
			argIndex++
		}

		if filter.Type != nil {
			conditions = append(conditions, "type = $"+strconv.Itoa(argIndex))
			args = append(args, string(*filter.Type))
			argIndex++
		}

		if filter.Status != nil {
			conditions = append(conditions, "status = $"+strconv.Itoa(argIndex))
			args = append(args, string(*filter.Status))
			argIndex++
		}

		if filter.StartTime != nil {
			conditions = append(conditions, "received_at >= $"+strconv.Itoa(argIndex))
			args = append(args, *filter.StartTime)
			argIndex++
		}

		if filter.EndTime != nil {
			conditions = append(conditions, "received_at <= $"+strconv.Itoa(argIndex))
			args = append(args, *filter.EndTime)
			argIndex++
		}
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	if !isCount {
		query += " ORDER BY received_at DESC"

		if filter != nil {
			if filter.Limit > 0 {
				query += " LIMIT $" + strconv.Itoa(argIndex)
				args = append(args, filter.Limit)
				argIndex++
			}

			if filter.Offset > 0 {
				query += " OFFSET $" + strconv.Itoa(argIndex)
				args = append(args, filter.Offset)
				argIndex++
			}
		}
	}

	return query, args
}
