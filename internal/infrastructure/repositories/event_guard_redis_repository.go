package repositories

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/captionly/metering/internal/core/ports"
)

// EventGuardRedisRepository implements the dedup fast-path in Redis. It only
// short-circuits redeliveries; the unique index on the audit log remains the
// dedup authority, so a flushed or unavailable Redis never admits a duplicate
// effect. Keys are written by Mark after the durable claim, never by Seen, so
// a key never exists for an event the audit log does not hold.
type EventGuardRedisRepository struct {
	r         redis.Cmdable
	keyPrefix string
}

func NewEventGuardRedisRepository(r redis.Cmdable, keyPrefix string) *EventGuardRedisRepository {
	if keyPrefix == "" {
		keyPrefix = "webhook:event"
	}
	return &EventGuardRedisRepository{r: r, keyPrefix: keyPrefix}
}

var _ ports.EventGuard = (*EventGuardRedisRepository)(nil)

func (repo *EventGuardRedisRepository) key(eventID string) string {
	return repo.keyPrefix + ":" + eventID
}

// Seen reports whether eventID is marked, without marking it.
func (repo *EventGuardRedisRepository) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := repo.r.Exists(ctx, repo.key(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark records eventID for ttl.
func (repo *EventGuardRedisRepository) Mark(ctx context.Context, eventID string, ttl time.Duration) error {
	return repo.r.Set(ctx, repo.key(eventID), 1, ttl).Err()
}
