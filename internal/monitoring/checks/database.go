package checks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lguportal/portal/internal/monitoring"
)

const defaultDatabaseTimeout = 2 * time.Second

// Database pings the portal database and reports connection pool usage.
// A reachable database whose pool is fully checked out is degraded. SQLite
// runs on a single connection and is exempt.
func Database(db *gorm.DB, timeout time.Duration) monitoring.Check {
	if timeout <= 0 {
		timeout = defaultDatabaseTimeout
	}
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		if db == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "database not configured"}
		}

		start := time.Now()
		sqlDB, err := db.DB()
		if err != nil {
			return monitoring.ResultFromError(err, time.Since(start))
		}

		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := sqlDB.PingContext(probeCtx); err != nil {
			return monitoring.ResultFromError(err, time.Since(start))
		}

		stats := sqlDB.Stats()
		result := monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Details:  poolDetails(stats),
			Duration: time.Since(start),
		}
		if stats.MaxOpenConnections > 1 && stats.InUse >= stats.MaxOpenConnections {
			result.Status = monitoring.StatusDegraded
		}
		return result
	})
}

func poolDetails(stats sql.DBStats) string {
	return fmt.Sprintf("open=%d in_use=%d idle=%d max=%d", stats.OpenConnections, stats.InUse, stats.Idle, stats.MaxOpenConnections)
}
