package checks

import (
	"context"
	"time"

	"github.com/lguportal/portal/internal/monitoring"
)

const defaultCacheTimeout = 2 * time.Second

// Pinger is satisfied by cache.RedisStore.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache probes the shared Redis cache. A missing client degrades the report
// because sessions and rate limits fall back to the database store.
func Cache(client Pinger, timeout time.Duration) monitoring.Check {
	if timeout <= 0 {
		timeout = defaultCacheTimeout
	}
	return monitoring.NewCheck("cache", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if client == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "redis unavailable"}
		}

		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return monitoring.ResultFromError(client.Ping(probeCtx), time.Since(start))
	})
}
