package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobMarker remembers requested processing jobs in Redis so that instances
// sharing the server publish each job once per ttl.
type JobMarker struct {
	Client *redis.Client
	ttl    time.Duration
}

// NewJobMarker shares the client of c.
func NewJobMarker(c *PlanCache, ttl time.Duration) *JobMarker {
	return &JobMarker{Client: c.Client, ttl: ttl}
}

func jobKey(key string) string { return "crop:job:" + key }

// Mark reports whether key was not marked yet and marks it.
func (m *JobMarker) Mark(ctx context.Context, key string) (bool, error) {
	return m.Client.SetNX(ctx, jobKey(key), 1, m.ttl).Result()
}

// Unmark forgets key.
func (m *JobMarker) Unmark(ctx context.Context, key string) error {
	return m.Client.Del(ctx, jobKey(key)).Err()
}
