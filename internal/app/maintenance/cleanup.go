package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	iauth "github.com/lguportal/portal/internal/auth"
	"github.com/lguportal/portal/internal/cache"
	"github.com/lguportal/portal/internal/services"
	"github.com/lguportal/portal/pkg/logger"
)

const (
	defaultAuditRetentionDays = 90
	defaultAttemptRetention   = 30 * 24 * time.Hour
	defaultSessionSpec        = "@hourly"
	defaultRetentionSpec      = "@daily"
)

// Targets names the stores the Cleaner prunes. A nil target skips its job.
type Targets struct {
	Sessions      *iauth.SessionService
	Audit         *services.AuditService
	Attempts      *services.LoginAttemptService
	Verifications *services.EmailVerificationService
	Cache         *cache.DatabaseStore
}

// Cleaner coordinates background maintenance: expired sessions, audit and
// login attempt retention, lapsed verification tokens and SQL cache rows.
type Cleaner struct {
	targets          Targets
	cron             *cron.Cron
	log              *zap.Logger
	auditRetention   int
	attemptRetention time.Duration

	sessionSchedule   string
	retentionSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.auditRetention = days
		}
	}
}

// WithAttemptRetention adjusts how long login attempts are kept.
func WithAttemptRetention(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.attemptRetention = d
		}
	}
}

// WithSessionSchedule overrides the cron specification for session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithRetentionSchedule overrides the cron specification for retention and token cleanup.
func WithRetentionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.retentionSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(targets Targets, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		targets:           targets,
		auditRetention:    defaultAuditRetentionDays,
		attemptRetention:  defaultAttemptRetention,
		sessionSchedule:   defaultSessionSpec,
		retentionSchedule: defaultRetentionSpec,
		log:               logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.targets.Sessions != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			if err := c.cleanSessions(context.Background()); err != nil {
				c.log.Warn("session cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if _, err := c.cron.AddFunc(c.retentionSchedule, func() {
		if err := c.enforceRetention(context.Background()); err != nil {
			c.log.Warn("retention cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every cleanup routine sequentially and returns the combined errors.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return multierr.Append(c.cleanSessions(ctx), c.enforceRetention(ctx))
}

func (c *Cleaner) cleanSessions(ctx context.Context) error {
	if c.targets.Sessions == nil {
		return nil
	}
	removed, err := c.targets.Sessions.CleanupExpired(ctx)
	if err != nil {
		return err
	}
	c.log.Debug("sessions cleaned", zap.Int64("removed", removed))
	return nil
}

func (c *Cleaner) enforceRetention(ctx context.Context) error {
	var errs error

	if c.targets.Audit != nil && c.auditRetention > 0 {
		removed, err := c.targets.Audit.CleanupOlderThan(ctx, c.auditRetention)
		errs = multierr.Append(errs, err)
		c.log.Debug("audit retention applied", zap.Int64("removed", removed))
	}

	if c.targets.Attempts != nil && c.attemptRetention > 0 {
		removed, err := c.targets.Attempts.CleanupOlderThan(ctx, c.attemptRetention)
		errs = multierr.Append(errs, err)
		c.log.Debug("login attempts pruned", zap.Int64("removed", removed))
	}

	if c.targets.Verifications != nil {
		removed, err := c.targets.Verifications.CleanupExpired(ctx)
		errs = multierr.Append(errs, err)
		c.log.Debug("verification tokens pruned", zap.Int64("removed", removed))
	}

	if c.targets.Cache != nil {
		removed, err := c.targets.Cache.PurgeExpired(ctx)
		errs = multierr.Append(errs, err)
		c.log.Debug("cache entries purged", zap.Int64("removed", removed))
	}

	return errs
}
