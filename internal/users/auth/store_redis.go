// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/gatekeep/internal/platform/constants"
)

// RedisFailureTracker implements [FailureTracker] using Redis counters.
type RedisFailureTracker struct {
	client *redis.Client
	window time.Duration
}

// NewFailureTracker creates a Redis-backed FailureTracker whose counters expire after window.
func NewFailureTracker(client *redis.Client, window time.Duration) *RedisFailureTracker {
	return &RedisFailureTracker{client: client, window: window}
}

/*
RecordFailure increments the failure counter for key.

Description: INCR and EXPIRE run in one transaction pipeline, so every failure
pushes the window forward.

Parameters:
  - context: context.Context
  - key: string (normalised identifier)

Returns:
  - int64: Failures recorded in the current window
  - error: Connectivity errors
*/
func (repository *RedisFailureTracker) RecordFailure(context context.Context, key string) (int64, error) {
	redisKey := constants.RedisPrefixLoginFailures + key

	pipe := repository.client.TxPipeline()
	incr := pipe.Incr(context, redisKey)
	pipe.Expire(context, redisKey, repository.window)

	if _, err := pipe.Exec(context); err != nil {
		return 0, fmt.Errorf("redis_login_failure_record_failed: %w", err)
	}

	return incr.Val(), nil
}

// Reset drops the counter for key.
func (repository *RedisFailureTracker) Reset(context context.Context, key string) error {
	if err := repository.client.Del(context, constants.RedisPrefixLoginFailures+key).Err(); err != nil {
		return fmt.Errorf("redis_login_failure_reset_failed: %w", err)
	}
	return nil
}
