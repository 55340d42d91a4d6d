package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lguportal/portal/internal/api"
	"github.com/lguportal/portal/internal/app"
	"github.com/lguportal/portal/internal/app/maintenance"
	"github.com/lguportal/portal/internal/cache"
	"github.com/lguportal/portal/internal/database"
)

// runtimeStack bundles long-lived resources owned by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Redis   *cache.RedisStore
	Deps    *api.Dependencies
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine
}

// bootstrapRuntime opens the database, connects the cache, builds the
// service graph and router, and starts maintenance jobs.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	var err error
	stack.DB, err = initialiseDatabase(cfg, log)
	if err != nil {
		return nil, err
	}

	opts := api.Options{DB: stack.DB, Config: cfg}

	if cfg.Cache.Redis.Enabled {
		stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig())
		if err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
			opts.Cache = stack.Redis
			opts.Redis = stack.Redis
		}
	}

	if opts.Mailer, err = cfg.Email.Mailer(); err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}

	if stack.Deps, err = api.NewDependencies(opts); err != nil {
		return nil, err
	}

	if active, err := stack.Deps.Sessions.SyncActiveSessions(ctx); err != nil {
		log.Warn("count active sessions", zap.Error(err))
	} else {
		log.Info("active sessions loaded", zap.Int64("count", active))
	}

	if cfg.Maintenance.Enabled {
		stack.Cleaner = newCleaner(cfg, stack.Deps)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	if stack.Router, err = api.NewRouter(stack.Deps); err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func newCleaner(cfg *app.Config, deps *api.Dependencies) *maintenance.Cleaner {
	targets := maintenance.Targets{
		Sessions:      deps.Sessions,
		Audit:         deps.Audit,
		Attempts:      deps.Attempts,
		Verifications: deps.Verification,
	}
	if store, ok := deps.Cache.(*cache.DatabaseStore); ok {
		targets.Cache = store
	}

	mc := cfg.Maintenance
	var opts []maintenance.Option
	if mc.SessionSchedule != "" {
		opts = append(opts, maintenance.WithSessionSchedule(mc.SessionSchedule))
	}
	if mc.RetentionSchedule != "" {
		opts = append(opts, maintenance.WithRetentionSchedule(mc.RetentionSchedule))
	}
	opts = append(opts,
		maintenance.WithAuditRetentionDays(mc.AuditRetentionDays),
		maintenance.WithAttemptRetention(mc.LoginAttemptRetention),
	)
	return maintenance.NewCleaner(targets, opts...)
}

// Shutdown stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config, log *zap.Logger) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	seed := database.SeedOptions{
		AdminEmail:    cfg.Auth.BootstrapAdmin.Email,
		AdminPassword: cfg.Auth.BootstrapAdmin.Password,
	}
	if err := database.AutoMigrateAndSeed(db, seed); err != nil {
		closeDatabase(db, log)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log.Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
