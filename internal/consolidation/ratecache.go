package consolidation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateCache fronts the rate store with a redis read-through cache. Period
// rates change rarely once uploaded, so a short TTL keeps statement
// generation off the database without risking stale eliminations.
type RateCache struct {
	inner  RateStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRateCache wraps a RateStore. A nil client degrades to pass-through.
func NewRateCache(inner RateStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *RateCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RateCache{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (c *RateCache) key(tenantID, periodID string) string {
	return fmt.Sprintf("consolidex:tenant:%s:period:%s:rates", tenantID, periodID)
}

func (c *RateCache) log() *slog.Logger {
	if c.logger != nil {
		return c.logger.With(slog.String("component", "rate_cache"))
	}
	return slog.Default().With(slog.String("component", "rate_cache"))
}

// UpsertRate writes through and drops the period's cached set.
func (c *RateCache) UpsertRate(ctx context.Context, rate CurrencyRate) error {
	if err := c.inner.UpsertRate(ctx, rate); err != nil {
		return err
	}
	if c.client != nil && rate.PeriodID != "" {
		if err := c.client.Del(ctx, c.key(rate.TenantID, rate.PeriodID)).Err(); err != nil {
			c.log().Warn("invalidate period rates", slog.Any("error", err))
		}
	}
	return nil
}

// ListPeriodRates serves from redis when warm, otherwise fills from the
// store. Cache failures fall back to the store silently.
func (c *RateCache) ListPeriodRates(ctx context.Context, tenantID, periodID string) ([]CurrencyRate, error) {
	if c.client == nil {
		return c.inner.ListPeriodRates(ctx, tenantID, periodID)
	}
	key := c.key(tenantID, periodID)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var rates []CurrencyRate
		if jsonErr := json.Unmarshal(raw, &rates); jsonErr == nil {
			return rates, nil
		}
		// Corrupt payload; drop it and refill.
		_ = c.client.Del(ctx, key).Err()
	}
	rates, err := c.inner.ListPeriodRates(ctx, tenantID, periodID)
	if err != nil {
		return nil, err
	}
	if payload, jsonErr := json.Marshal(rates); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.log().Warn("cache period rates", slog.Any("error", setErr))
		}
	}
	return rates, nil
}

// ListRates bypasses the cache; generic pair queries are rare and filtered.
func (c *RateCache) ListRates(ctx context.Context, tenantID string, filter ExchangeRateFilter) ([]CurrencyRate, error) {
	return c.inner.ListRates(ctx, tenantID, filter)
}
