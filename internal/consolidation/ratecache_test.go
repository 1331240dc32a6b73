package consolidation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRateCache(t *testing.T) (*RateCache, *MemoryStores, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	stores := NewMemoryStores()
	return NewRateCache(stores, client, time.Minute, nil), stores, mr
}

func usdEurRate(periodID string, closing float64) CurrencyRate {
	return CurrencyRate{
		TenantID:     "default",
		PeriodID:     periodID,
		Currency:     "EUR",
		BaseCurrency: "USD",
		Date:         testTime,
		ClosingRate:  closing,
		AverageRate:  closing - 0.05,
	}
}

func TestRateCacheReadThrough(t *testing.T) {
	cache, _, mr := newTestRateCache(t)
	ctx := context.Background()
	require.NoError(t, cache.UpsertRate(ctx, usdEurRate("p1", 1.10)))

	rates, err := cache.ListPeriodRates(ctx, "default", "p1")
	require.NoError(t, err)
	require.Len(t, rates, 1)
	require.Equal(t, 1.10, rates[0].ClosingRate)
	require.True(t, mr.Exists("consolidex:tenant:default:period:p1:rates"),
		"miss must fill the period key")
}

func TestRateCacheServesWarmEntries(t *testing.T) {
	cache, stores, _ := newTestRateCache(t)
	ctx := context.Background()
	require.NoError(t, cache.UpsertRate(ctx, usdEurRate("p1", 1.10)))

	_, err := cache.ListPeriodRates(ctx, "default", "p1")
	require.NoError(t, err)

	// Mutate the store behind the cache; a warm read must not see it.
	require.NoError(t, stores.UpsertRate(ctx, usdEurRate("p1", 9.99)))
	rates, err := cache.ListPeriodRates(ctx, "default", "p1")
	require.NoError(t, err)
	require.Equal(t, 1.10, rates[0].ClosingRate)
}

func TestRateCacheUpsertInvalidates(t *testing.T) {
	cache, _, mr := newTestRateCache(t)
	ctx := context.Background()
	require.NoError(t, cache.UpsertRate(ctx, usdEurRate("p1", 1.10)))
	_, err := cache.ListPeriodRates(ctx, "default", "p1")
	require.NoError(t, err)

	require.NoError(t, cache.UpsertRate(ctx, usdEurRate("p1", 1.25)))
	require.False(t, mr.Exists("consolidex:tenant:default:period:p1:rates"))

	rates, err := cache.ListPeriodRates(ctx, "default", "p1")
	require.NoError(t, err)
	require.Equal(t, 1.25, rates[0].ClosingRate)
}

func TestRateCacheExpiry(t *testing.T) {
	cache, stores, mr := newTestRateCache(t)
	ctx := context.Background()
	require.NoError(t, cache.UpsertRate(ctx, usdEurRate("p1", 1.10)))
	_, err := cache.ListPeriodRates(ctx, "default", "p1")
	require.NoError(t, err)

	require.NoError(t, stores.UpsertRate(ctx, usdEurRate("p1", 1.30)))
	mr.FastForward(2 * time.Minute)

	rates, err := cache.ListPeriodRates(ctx, "default", "p1")
	require.NoError(t, err)
	require.Equal(t, 1.30, rates[0].ClosingRate, "expired key refills from the store")
}

func TestRateCacheNilClientPassThrough(t *testing.T) {
	stores := NewMemoryStores()
	cache := NewRateCache(stores, nil, time.Minute, nil)
	ctx := context.Background()
	require.NoError(t, cache.UpsertRate(ctx, usdEurRate("p1", 1.10)))
	rates, err := cache.ListPeriodRates(ctx, "default", "p1")
	require.NoError(t, err)
	require.Len(t, rates, 1)
}

func TestRateCacheListRatesBypassesCache(t *testing.T) {
	cache, stores, _ := newTestRateCache(t)
	ctx := context.Background()
	require.NoError(t, cache.UpsertRate(ctx, usdEurRate("p1", 1.10)))
	_, err := cache.ListPeriodRates(ctx, "default", "p1")
	require.NoError(t, err)

	require.NoError(t, stores.UpsertRate(ctx, usdEurRate("p1", 1.50)))
	rates, err := cache.ListRates(ctx, "default", ExchangeRateFilter{})
	require.NoError(t, err)
	require.Len(t, rates, 1)
	require.Equal(t, 1.50, rates[0].ClosingRate)
}
