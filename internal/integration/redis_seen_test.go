//go:build integration

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/quake-map-service/internal/adapter/redis"
	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/couchcryptid/quake-map-service/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seenPrefix = "test:seen:"

// TestRedisSeenSet verifies first sightings are reported once per instance,
// survive a reconnect, and start fresh for a new instance.
func TestRedisSeenSet(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	addr := startRedis(ctx, t)

	client, err := redis.NewClient(ctx, addr)
	require.NoError(t, err)
	seen := redis.NewSeenSet(client, seenPrefix, "boot-1", time.Hour)

	first, err := seen.MarkSeen(ctx, "40000123")
	require.NoError(t, err)
	assert.True(t, first)

	first, err = seen.MarkSeen(ctx, "40000123")
	require.NoError(t, err)
	assert.False(t, first)

	ttl, err := client.TTL(ctx, seenPrefix+"boot-1:40000123").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
	require.NoError(t, client.Close())

	reconnected, err := redis.NewClient(ctx, addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reconnected.Close() })

	quakes := []domain.Quake{
		{ID: "ci40000123", Code: "40000123"},
		{ID: "nc75000001", Code: "75000001"},
	}
	logger, metrics := discardLogger(), observability.NewMetricsForTesting()

	sameInstance := pipeline.NewDeduplicator(redis.NewSeenSet(reconnected, seenPrefix, "boot-1", time.Hour), logger, metrics)
	out := sameInstance.Filter(ctx, quakes)
	require.Len(t, out, 1)
	assert.Equal(t, "nc75000001", out[0].ID)

	newInstance := pipeline.NewDeduplicator(redis.NewSeenSet(reconnected, seenPrefix, "boot-2", time.Hour), logger, metrics)
	assert.Len(t, newInstance.Filter(ctx, quakes), 2)
}
