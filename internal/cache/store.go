package cache

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable is returned when a store has not been initialised.
var ErrStoreUnavailable = errors.New("cache: store not initialised")

// Store represents a shared cache interface used across the application.
// It backs the login rate limiter and the session lookup cache.
type Store interface {
	// IncrementWithTTL bumps a fixed-window counter and returns the new count
	// and the time left in the window.
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
