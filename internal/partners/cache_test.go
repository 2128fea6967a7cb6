package partners

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestBalanceCacheFetchAndBump(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	cache := NewBalanceCache(client, time.Minute)
	ctx := context.Background()

	calls := 0
	loader := func(ctx context.Context) (float64, error) {
		calls++
		return 42.5, nil
	}

	balance, err := cache.FetchBalance(ctx, 10, 1, AccountReceivable, "TRY", loader)
	require.NoError(t, err)
	require.InDelta(t, 42.5, balance, 0.001)
	require.Equal(t, 1, calls)

	balance, err = cache.FetchBalance(ctx, 10, 1, AccountReceivable, "TRY", loader)
	require.NoError(t, err)
	require.InDelta(t, 42.5, balance, 0.001)
	require.Equal(t, 1, calls, "second read should hit the cache")

	require.NoError(t, cache.Bump(ctx))

	_, err = cache.FetchBalance(ctx, 10, 1, AccountReceivable, "TRY", loader)
	require.NoError(t, err)
	require.Equal(t, 2, calls, "bump should invalidate the cached balance")
}

func TestBalanceCacheNilPassesThrough(t *testing.T) {
	var cache *BalanceCache
	balance, err := cache.FetchBalance(context.Background(), 10, 1, AccountPayable, "USD", func(ctx context.Context) (float64, error) {
		return -7, nil
	})
	require.NoError(t, err)
	require.InDelta(t, -7, balance, 0.001)
	require.NoError(t, cache.Bump(context.Background()))
}
