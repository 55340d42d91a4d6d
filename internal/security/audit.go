package security

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/lguportal/portal/internal/app"
	"github.com/lguportal/portal/internal/models"
)

// CheckStatus captures the outcome of a posture check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

const (
	minJWTSecretBytes         = 32
	recommendedJWTSecretBytes = 48
	maxRecommendedSessionTTL  = 7 * 24 * time.Hour
	maxRecommendedThreshold   = 10
)

// Check contains the result of a single verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// Auditor evaluates the portal's security configuration for administrators.
// Missing inputs degrade the affected checks to warnings.
type Auditor struct {
	db  *gorm.DB
	cfg *app.Config
	now func() time.Time
}

// NewAuditor constructs an Auditor.
func NewAuditor(db *gorm.DB, cfg *app.Config) *Auditor {
	return &Auditor{db: db, cfg: cfg, now: time.Now}
}

// WithClock overrides the clock stamped on results.
func (a *Auditor) WithClock(clock func() time.Time) {
	if clock != nil {
		a.now = clock
	}
}

// Run executes every check.
func (a *Auditor) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []Check{
		a.checkActiveAdmin(ctx),
		a.checkJWTSecret(),
		a.checkSessionCookie(),
		a.checkSessionTTL(),
		a.checkLockout(),
		a.checkEmailDelivery(),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: a.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

func configMissing(id string) Check {
	return Check{
		ID:          id,
		Status:      StatusWarn,
		Message:     "Configuration not loaded.",
		Remediation: "Load configuration before running the security audit.",
	}
}

func (a *Auditor) checkActiveAdmin(ctx context.Context) Check {
	const id = "active_admin_present"
	if a.db == nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Database unavailable; unable to confirm an administrator exists.",
			Remediation: "Ensure database connectivity before running the audit.",
		}
	}

	var count int64
	if err := a.db.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ? AND status = ?", models.RoleAdmin, models.UserStatusActive).
		Count(&count).Error; err != nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Could not count administrators: %v", err),
			Remediation: "Retry after resolving database errors.",
		}
	}

	if count == 0 {
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "No active administrator account found.",
			Remediation: "Set auth.bootstrap_admin or activate an administrator account.",
		}
	}

	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: "Active administrator present.",
		Details: map[string]any{"count": count},
	}
}

func (a *Auditor) checkJWTSecret() Check {
	const id = "jwt_secret_strength"
	if a.cfg == nil {
		return configMissing(id)
	}

	length := len(strings.TrimSpace(a.cfg.Auth.JWT.Secret))
	switch {
	case length == 0:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "Missing JWT signing secret.",
			Remediation: "Provide a cryptographically secure signing secret (>= 32 bytes).",
		}
	case length < minJWTSecretBytes:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: "Use a randomly generated secret of at least 32 bytes.",
		}
	case length < recommendedJWTSecretBytes:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider increasing to 48+ bytes.", length),
			Remediation: "Increase LGU_AUTH_JWT_SECRET to at least 48 bytes.",
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{
			ID:      id,
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: map[string]any{"length": length},
		}
	}
}

func (a *Auditor) checkSessionCookie() Check {
	const id = "session_cookie_secure"
	if a.cfg == nil {
		return configMissing(id)
	}

	secure := a.cfg.Auth.Session.CookieSecure
	public, err := url.Parse(strings.TrimSpace(a.cfg.Server.PublicURL))
	https := err == nil && strings.EqualFold(public.Scheme, "https")

	switch {
	case secure:
		return Check{ID: id, Status: StatusPass, Message: "Session cookie is marked Secure."}
	case https:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "The portal is served over HTTPS but the session cookie is not marked Secure.",
			Remediation: "Set auth.session.cookie_secure to true.",
		}
	default:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Session cookie is sent over plain HTTP.",
			Remediation: "Serve the portal over HTTPS and set auth.session.cookie_secure.",
			Details:     map[string]any{"public_url": a.cfg.Server.PublicURL},
		}
	}
}

func (a *Auditor) checkSessionTTL() Check {
	const id = "session_ttl"
	if a.cfg == nil {
		return configMissing(id)
	}

	ttl := a.cfg.Auth.Session.TTL
	if ttl <= 0 {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Session TTL is not configured; using the default duration.",
			Remediation: "Set LGU_AUTH_SESSION_TTL to control session lifetime.",
		}
	}
	if ttl > maxRecommendedSessionTTL {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Session TTL (%s) exceeds recommended maximum (%s).", ttl, maxRecommendedSessionTTL),
			Remediation: "Reduce the session TTL to 7 days or lower.",
			Details:     map[string]any{"ttl": ttl.String()},
		}
	}

	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: fmt.Sprintf("Session TTL is %s.", ttl),
		Details: map[string]any{"ttl": ttl.String()},
	}
}

func (a *Auditor) checkLockout() Check {
	const id = "login_lockout"
	if a.cfg == nil {
		return configMissing(id)
	}

	policy := a.cfg.Auth.LockoutPolicy()
	details := map[string]any{
		"threshold":   policy.Threshold,
		"window":      policy.Window.String(),
		"fail_closed": policy.FailClosed,
	}
	if policy.Threshold > maxRecommendedThreshold {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Accounts lock only after %d failed attempts.", policy.Threshold),
			Remediation: "Lower auth.lockout.threshold to 10 or fewer.",
			Details:     details,
		}
	}

	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: fmt.Sprintf("Accounts lock after %d failed attempts within %s.", policy.Threshold, policy.Window),
		Details: details,
	}
}

func (a *Auditor) checkEmailDelivery() Check {
	const id = "email_delivery"
	if a.cfg == nil {
		return configMissing(id)
	}

	if !a.cfg.Email.SMTP.Enabled {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "SMTP is disabled; verification links are only written to the log.",
			Remediation: "Configure email.smtp so citizens receive verification emails.",
		}
	}
	if !a.cfg.Email.SMTP.UseTLS {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "SMTP delivery does not use TLS.",
			Remediation: "Set email.smtp.use_tls to true.",
		}
	}

	return Check{ID: id, Status: StatusPass, Message: "SMTP delivery enabled with TLS."}
}
