package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lguportal/portal/internal/handlers"
	"github.com/lguportal/portal/internal/middleware"
	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/internal/permissions"
)

const (
	defaultRateLimitRequests = 20
	defaultRateLimitWindow   = time.Minute
	defaultMetricsEndpoint   = "/metrics"
)

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps *Dependencies) (*gin.Engine, error) {
	if deps == nil || deps.Config == nil {
		return nil, errors.New("api: dependencies must be provided")
	}
	cfg := deps.Config

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, err
	}

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.LoadSession(deps.Auth, deps.Sessions, deps.Cookie))
	r.Use(middleware.CSRF())

	gate := middleware.NewGate(deps.Audit)

	requests, window := cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window
	if requests <= 0 {
		requests = defaultRateLimitRequests
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	throttle := middleware.RateLimit(deps.RateStore, requests, window)

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health(deps.Health))
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = defaultMetricsEndpoint
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Users, deps.Cookie)
	registerAuthRoutes(r, authHandler, gate, throttle)

	dashboards := handlers.NewDashboardHandler(deps.Users, deps.Notifications, deps.Reports, deps.Projects)
	for _, role := range models.AllRoles {
		r.GET(middleware.LandingPage(role), gate.RequireRole(role), dashboards.Show)
	}

	// Public transparency feed
	gis := handlers.NewGISHandler(deps.GIS)
	public := r.Group("/api/gis", middleware.CORS(cfg.Server.CORS.AllowedOrigins...))
	{
		public.OPTIONS("/features", func(*gin.Context) {})
		public.GET("/features", gis.Features)
	}

	api := r.Group("/api", gate.RequireLogin(""))

	profile := handlers.NewProfileHandler(deps.Users)
	api.GET("/profile", gate.RequirePermission(permissions.ProfileManage), profile.Get)
	api.PUT("/profile", gate.RequirePermission(permissions.ProfileManage), profile.Update)

	sessions := handlers.NewSessionHandler(deps.Sessions)
	api.GET("/sessions", sessions.ListMine)
	api.DELETE("/sessions/:id", sessions.Revoke)

	notificationHandler := handlers.NewNotificationHandler(deps.Notifications, deps.Users, deps.Audit)
	registerNotificationRoutes(api, notificationHandler, gate)

	reportHandler := handlers.NewReportHandler(deps.Reports)
	reports := api.Group("/reports")
	{
		reports.POST("", gate.RequirePermission(permissions.ReportSubmit), reportHandler.Submit)
		reports.GET("/mine", gate.RequirePermission(permissions.ReportViewOwn), reportHandler.Mine)
		reports.GET("", gate.RequirePermission(permissions.ReportViewAll), reportHandler.List)
		reports.GET("/:id", reportHandler.Get)
		reports.PATCH("/:id/status", gate.RequirePermission(permissions.ReportManage), reportHandler.UpdateStatus)
	}

	projectHandler := handlers.NewProjectHandler(deps.Projects)
	projects := api.Group("/projects")
	{
		projects.GET("", gate.RequirePermission(permissions.ProjectView), projectHandler.List)
		projects.POST("", gate.RequirePermission(permissions.ProjectManage), projectHandler.Create)
		projects.PATCH("/:id/status", gate.RequirePermission(permissions.ProjectManage), projectHandler.UpdateStatus)
	}

	registerAdminRoutes(api.Group("/admin"), deps, notificationHandler, gate)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func registerAuthRoutes(r *gin.Engine, handler *handlers.AuthHandler, gate *middleware.Gate, throttle gin.HandlerFunc) {
	// Browser form endpoints
	r.POST("/login", throttle, handler.Login)
	r.POST("/logout", handler.Logout)

	auth := r.Group("/api/auth")
	{
		auth.POST("/login", throttle, handler.Login)
		auth.POST("/register", throttle, handler.Register)
		auth.GET("/verify", handler.Verify)
		auth.GET("/csrf", handler.CSRF)
		auth.POST("/logout", handler.Logout)
		auth.GET("/me", gate.RequireLogin(""), handler.Me)
	}
}

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler, gate *middleware.Gate) {
	group := api.Group("/notifications", gate.RequirePermission(permissions.NotificationRead))
	{
		group.GET("", handler.Action)
		group.POST("", handler.Action)
		group.GET("/list", handler.List)
		group.DELETE("/:id", handler.Delete)
	}
}

func registerAdminRoutes(admin *gin.RouterGroup, deps *Dependencies, notifications *handlers.NotificationHandler, gate *middleware.Gate) {
	users := handlers.NewUserHandler(deps.Users)
	admin.GET("/users", gate.RequirePermission(permissions.UserView), users.List)
	admin.GET("/users/:id", gate.RequirePermission(permissions.UserView), users.Get)
	admin.PATCH("/users/:id/status", gate.RequirePermission(permissions.UserManage), users.SetStatus)
	admin.PATCH("/users/:id/role", gate.RequirePermission(permissions.UserManage), users.SetRole)

	audit := handlers.NewAuditHandler(deps.Audit)
	admin.GET("/audit", gate.RequirePermission(permissions.AuditView), audit.List)
	admin.GET("/security", gate.RequirePermission(permissions.AuditView), handlers.NewSecurityHandler(deps.Security).Show)

	admin.POST("/notifications", gate.RequirePermission(permissions.NotificationSend), notifications.Send)
}
