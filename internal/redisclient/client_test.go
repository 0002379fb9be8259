package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeyDeterministic(t *testing.T) {
	a := CacheKey("low_stock", 10, true)
	b := CacheKey("low_stock", 10, true)
	assert.Equal(t, a, b)
}

func TestCacheKeyVariesWithParams(t *testing.T) {
	base := CacheKey("low_stock", 10, true)

	assert.NotEqual(t, base, CacheKey("low_stock", 11, true))
	assert.NotEqual(t, base, CacheKey("low_stock", 10, false))
	assert.NotEqual(t, base, CacheKey("movements", 10, true))
}

func TestCachedNilClientComputesThrough(t *testing.T) {
	calls := 0
	compute := func(ctx context.Context) (int, error) {
		calls++
		return 7, nil
	}

	// a nil client is the no-op cache used in tests; every call computes
	for i := 0; i < 3; i++ {
		v, err := Cached(context.Background(), nil, "op", "key", time.Minute, compute)
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	}
	assert.Equal(t, 3, calls)
}
