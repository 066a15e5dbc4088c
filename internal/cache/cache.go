// Package cache provides an optional lookup cache for slow board-side
// resolutions (Glassdoor location ids, Board-AT schema pages). A nil-ish
// Nop cache degrades every caller to a direct fetch.
package cache

import (
	"context"
	"time"
)

// Cache is a small string cache. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

// Nop is the cache used when no backend is configured.
type Nop struct{}

var _ Cache = Nop{}

func (Nop) Get(context.Context, string) (string, bool) { return "", false }

func (Nop) Set(context.Context, string, string, time.Duration) {}
