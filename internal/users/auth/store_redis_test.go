// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/gatekeep/internal/platform/constants"
)

func newTestTracker(t *testing.T) (*RedisFailureTracker, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewFailureTracker(client, time.Minute), server
}

func TestRedisFailureTracker_CountsAndResets(t *testing.T) {
	tracker, server := newTestTracker(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, err := tracker.RecordFailure(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}

	key := constants.RedisPrefixLoginFailures + "alice"
	assert.Equal(t, time.Minute, server.TTL(key))

	require.NoError(t, tracker.Reset(ctx, "alice"))
	assert.False(t, server.Exists(key))

	count, err := tracker.RecordFailure(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRedisFailureTracker_WindowExpires(t *testing.T) {
	tracker, server := newTestTracker(t)
	ctx := context.Background()

	_, err := tracker.RecordFailure(ctx, "bob")
	require.NoError(t, err)
	_, err = tracker.RecordFailure(ctx, "bob")
	require.NoError(t, err)

	server.FastForward(2 * time.Minute)

	count, err := tracker.RecordFailure(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRedisFailureTracker_KeysAreIndependent(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tracker.RecordFailure(ctx, "alice")
	require.NoError(t, err)

	count, err := tracker.RecordFailure(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
