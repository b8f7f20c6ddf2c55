package integration

import (
	"context"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/searcher/executor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryCacheOverRedis(t *testing.T) {
	client := skipIfNoRedis(t)
	ctx := context.Background()

	qc := cache.New(cache.RedisBackend{Client: client}, cache.Options{Prefix: "itest:" + uuid.NewString() + ":"})
	t.Cleanup(func() { _, _ = qc.Invalidate(context.Background()) })

	key := qc.Key(uuid.NewString(), "search", "q=shoe")
	calls := 0
	compute := func() (executor.Page, error) {
		calls++
		return executor.Page{Total: 3, Page: 1, Limit: 20, TotalPages: 1}, nil
	}

	first, hit, err := cache.GetOrCompute(ctx, qc, key, compute)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := cache.GetOrCompute(ctx, qc, key, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, 1, calls)

	deleted, err := qc.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, hit, err = cache.GetOrCompute(ctx, qc, key, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, calls)
}
