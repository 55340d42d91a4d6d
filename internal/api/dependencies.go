package api

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lguportal/portal/internal/app"
	iauth "github.com/lguportal/portal/internal/auth"
	"github.com/lguportal/portal/internal/cache"
	"github.com/lguportal/portal/internal/middleware"
	"github.com/lguportal/portal/internal/monitoring"
	"github.com/lguportal/portal/internal/monitoring/checks"
	"github.com/lguportal/portal/internal/security"
	"github.com/lguportal/portal/internal/services"
	"github.com/lguportal/portal/pkg/mail"
)

// Options carries the process-level resources the portal is built from.
type Options struct {
	DB     *gorm.DB
	Config *app.Config
	// Cache backs session caching and rate limiting. Defaults to the database store.
	Cache cache.Store
	// Redis is probed by /health when set.
	Redis  checks.Pinger
	Mailer mail.Mailer
	Clock  func() time.Time
}

// Dependencies is the fully wired service graph shared by the router and background jobs.
type Dependencies struct {
	DB     *gorm.DB
	Config *app.Config
	Cache  cache.Store

	JWT      *iauth.JWTService
	Sessions *iauth.SessionService

	Audit         *services.AuditService
	Notifications *services.NotificationService
	Attempts      *services.LoginAttemptService
	Verification  *services.EmailVerificationService
	Users         *services.UserService
	Auth          *services.AuthService
	Reports       *services.ReportService
	Projects      *services.ProjectService
	GIS           *services.GISService

	Health    *monitoring.HealthManager
	Security  *security.Auditor
	Cookie    middleware.SessionCookie
	RateStore middleware.RateStore
}

// NewDependencies constructs every service from opts.
func NewDependencies(opts Options) (*Dependencies, error) {
	if opts.DB == nil {
		return nil, errors.New("api: database handle must be provided")
	}
	if opts.Config == nil {
		return nil, errors.New("api: config must be provided")
	}

	cfg := opts.Config
	store := opts.Cache
	if store == nil {
		store = cache.NewDatabaseStore(opts.DB)
	}
	mailer := opts.Mailer
	if mailer == nil {
		mailer = mail.LogMailer{}
	}

	deps := &Dependencies{
		DB:        opts.DB,
		Config:    cfg,
		Cache:     store,
		Cookie:    cfg.Auth.SessionCookie(),
		RateStore: middleware.NewCacheRateStore(store),
	}

	var err error
	jwtCfg := cfg.Auth.JWTServiceConfig()
	jwtCfg.Clock = opts.Clock
	if deps.JWT, err = iauth.NewJWTService(jwtCfg); err != nil {
		return nil, fmt.Errorf("api: jwt service: %w", err)
	}

	sessionCfg := cfg.Auth.SessionServiceConfig()
	sessionCfg.Clock = opts.Clock
	sessionCfg.Cache = iauth.NewSessionCache(store)
	if deps.Sessions, err = iauth.NewSessionService(opts.DB, sessionCfg); err != nil {
		return nil, fmt.Errorf("api: session service: %w", err)
	}

	if deps.Audit, err = services.NewAuditService(opts.DB, opts.Clock); err != nil {
		return nil, err
	}
	if deps.Notifications, err = services.NewNotificationService(opts.DB, opts.Clock); err != nil {
		return nil, err
	}
	if deps.Attempts, err = services.NewLoginAttemptService(opts.DB, cfg.Auth.LockoutPolicy(), opts.Clock); err != nil {
		return nil, err
	}

	verificationOpts := []services.VerificationOption{
		services.WithVerificationBaseURL(cfg.Auth.Verification.BaseURL),
		services.WithVerificationExpiry(cfg.Auth.Verification.TTL),
		services.WithVerificationClock(opts.Clock),
	}
	if deps.Verification, err = services.NewEmailVerificationService(opts.DB, mailer, verificationOpts...); err != nil {
		return nil, err
	}

	if deps.Users, err = services.NewUserService(services.UserServiceDeps{
		DB:            opts.DB,
		Verification:  deps.Verification,
		Sessions:      deps.Sessions,
		Audit:         deps.Audit,
		Notifications: deps.Notifications,
		Clock:         opts.Clock,
	}); err != nil {
		return nil, err
	}

	if deps.Auth, err = services.NewAuthService(services.AuthServiceDeps{
		DB:            opts.DB,
		Sessions:      deps.Sessions,
		JWT:           deps.JWT,
		Attempts:      deps.Attempts,
		Audit:         deps.Audit,
		Notifications: deps.Notifications,
		Clock:         opts.Clock,
	}); err != nil {
		return nil, err
	}

	if deps.Reports, err = services.NewReportService(opts.DB, deps.Audit, deps.Notifications, opts.Clock); err != nil {
		return nil, err
	}
	if deps.Projects, err = services.NewProjectService(opts.DB, deps.Audit, opts.Clock); err != nil {
		return nil, err
	}
	if deps.GIS, err = services.NewGISService(opts.DB, cfg.GIS.Geocoder()); err != nil {
		return nil, err
	}

	deps.Health = monitoring.NewHealthManager(checks.Database(opts.DB, 0))
	if opts.Redis != nil {
		deps.Health.Register(checks.Cache(opts.Redis, cfg.Cache.Redis.Timeout))
	}
	deps.Security = security.NewAuditor(opts.DB, cfg)
	return deps, nil
}
