package core

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value cache with per-key expiry.
// A cache miss and a backend failure look the same to callers: the value is recomputed.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
}
