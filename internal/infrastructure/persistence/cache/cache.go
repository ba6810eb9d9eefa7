// Package cache provides TTL-based memoization for aggregated dashboard
// views, with prefix-based invalidation triggered by event-log writes.
//
// Two backends exist: an in-process memory cache (the default; a miss is
// indistinguishable from an expiry and simply triggers recomputation) and a
// Redis-backed cache for deployments that share aggregates across replicas.
// Callers treat every backend error as a miss: the cache never fails a read
// path.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCacheMiss is returned when the requested key is not found or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// DashboardPrefix namespaces every aggregate key. A successful event-log
// write invalidates everything under this prefix, so staleness is bounded by
// TTL rather than by a separate invalidation bug surface.
const DashboardPrefix = "dashboard:"

// Per-endpoint TTLs. Fast-moving operational views expire quickly; slow
// topic/ethics rollups live longer.
const (
	TTLMetrics    = 2 * time.Minute
	TTLHealth     = 30 * time.Second
	TTLCompliance = 10 * time.Minute
	TTLTopics     = 10 * time.Minute
	TTLInsights   = 5 * time.Minute
)

// Cache is the backend-neutral contract used by the aggregation layer.
type Cache interface {
	// Get retrieves and deserializes a value. Returns ErrCacheMiss when the
	// key is absent or expired.
	Get(ctx context.Context, key string, dest any) error

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// DeleteByPrefix removes every key under the prefix.
	DeleteByPrefix(ctx context.Context, prefix string) error

	// Ping checks backend liveness.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Key builds the dashboard cache key for (endpoint, period, role).
func Key(endpoint, period, role string) string {
	if role == "" {
		role = "any"
	}
	return fmt.Sprintf("%s%s:%s:%s", DashboardPrefix, endpoint, period, role)
}
