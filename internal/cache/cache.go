// Package cache holds derived score projections. Entries are disposable:
// a miss always falls back to recomputation.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
}

const keyPrefix = "citadel:v1:"

// ScoreKey is the cache key of a node's score breakdown.
func ScoreKey(nodeID string) string {
	return keyPrefix + "score:" + nodeID
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool)               { return nil, false }
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Noop) Delete(context.Context, ...string) error                  { return nil }
func (Noop) Clear(context.Context) error                              { return nil }
