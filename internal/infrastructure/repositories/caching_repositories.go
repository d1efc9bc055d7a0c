package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/captionly/metering/internal/core/domain/account"
	"github.com/captionly/metering/internal/core/ports"
)

var sf singleflight.Group

// Utility helpers
func cacheSetSilently(c ports.Cache, ctx context.Context, key string, v any, ttl time.Duration) {
	if c == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.Set(ctx, key, b, ttl)
}

func cacheGet[T any](c ports.Cache, ctx context.Context, key string) (*T, bool) {
	if c == nil {
		return nil, false
	}
	b, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, false
	}
	return &v, true
}

func accountCacheKey(customerID string) string {
	return "account:id:" + customerID
}

// CachingAccountRepository decorates an AccountRepository with cache-aside
// reads for GetByID. The transactional methods pass straight through: the
// rate limiter and accountant must always see the locked row, never a cached
// snapshot. Every write path invalidates the snapshot.
type CachingAccountRepository struct {
	inner ports.AccountRepository
	cache ports.Cache
	ttl   time.Duration
}

func NewCachingAccountRepository(inner ports.AccountRepository, cache ports.Cache, ttl time.Duration) ports.AccountRepository {
	return &CachingAccountRepository{inner: inner, cache: cache, ttl: ttl}
}

func (c *CachingAccountRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return c.inner.BeginTx(ctx)
}

func (c *CachingAccountRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, customerID string) (*account.Account, error) {
	return c.inner.GetForUpdate(ctx, tx, customerID)
}

func (c *CachingAccountRepository) Insert(ctx context.Context, tx *sql.Tx, a *account.Account) error {
	if err := c.inner.Insert(ctx, tx, a); err != nil {
		return err
	}
	// The row is not visible until the tx commits; just drop any stale miss.
	if c.cache != nil {
		_ = c.cache.Delete(ctx, accountCacheKey(a.CustomerID))
	}
	return nil
}

func (c *CachingAccountRepository) UpdateLastRequest(ctx context.Context, tx *sql.Tx, customerID string, at time.Time) error {
	if err := c.inner.UpdateLastRequest(ctx, tx, customerID, at); err != nil {
		return err
	}
	if c.cache != nil {
		_ = c.cache.Delete(ctx, accountCacheKey(customerID))
	}
	return nil
}

func (c *CachingAccountRepository) UpdateUsage(ctx context.Context, tx *sql.Tx, a *account.Account) error {
	if err := c.inner.UpdateUsage(ctx, tx, a); err != nil {
		return err
	}
	if c.cache != nil {
		_ = c.cache.Delete(ctx, accountCacheKey(a.CustomerID))
	}
	return nil
}

func (c *CachingAccountRepository) UpdateSubscription(ctx context.Context, tx *sql.Tx, customerID string, tier account.Tier, periodEnd time.Time) error {
	if err := c.inner.UpdateSubscription(ctx, tx, customerID, tier, periodEnd); err != nil {
		return err
	}
	if c.cache != nil {
		_ = c.cache.Delete(ctx, accountCacheKey(customerID))
	}
	return nil
}

func (c *CachingAccountRepository) GetByID(ctx context.Context, customerID string) (*account.Account, error) {
	key := accountCacheKey(customerID)
	if v, ok := cacheGet[account.Account](c.cache, ctx, key); ok {
		return v, nil
	}
	res, err, _ := sf.Do(key, func() (any, error) {
		if v, ok := cacheGet[account.Account](c.cache, ctx, key); ok {
			return v, nil
		}
		a, err := c.inner.GetByID(ctx, customerID)
		if err != nil {
			return nil, err
		}
		cacheSetSilently(c.cache, ctx, key, a, c.ttl)
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	a, ok := res.(*account.Account)
	if !ok {
		return nil, fmt.Errorf("unexpected type from singleflight result")
	}
	return a, nil
}
