package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"

	"github.com/captionly/metering/internal/infrastructure/repositories"
)

func newTestRedis(t *testing.T) *goredis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestEventGuard_SeenNeverMarks(t *testing.T) {
	client := newTestRedis(t)
	guard := repositories.NewEventGuardRedisRepository(client, "")

	for i := 0; i < 2; i++ {
		seen, err := guard.Seen(context.Background(), "evt_1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen {
			t.Fatalf("an unmarked event id must stay unseen, read %d saw it", i+1)
		}
	}
}

func TestEventGuard_MarkThenSeen(t *testing.T) {
	client := newTestRedis(t)
	guard := repositories.NewEventGuardRedisRepository(client, "")

	if err := guard.Mark(context.Background(), "evt_1", time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen, err := guard.Seen(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen {
		t.Fatalf("expected the marked event id to be seen")
	}
}

func TestEventGuard_DistinctEventIDs(t *testing.T) {
	client := newTestRedis(t)
	guard := repositories.NewEventGuardRedisRepository(client, "")

	if err := guard.Mark(context.Background(), "evt_1", time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen, _ := guard.Seen(context.Background(), "evt_2"); seen {
		t.Fatalf("a different event id must not be short-circuited")
	}
}
