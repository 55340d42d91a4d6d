package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/pkg/crypto"
	apperrors "github.com/lguportal/portal/pkg/errors"
	"github.com/lguportal/portal/pkg/logger"
)

// RegisterInput describes a self-service registration.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Barangay  string
	Role      string
}

// ProfileInput carries the editable profile fields.
type ProfileInput struct {
	FirstName string
	LastName  string
	Phone     string
	Barangay  string
	Address   string
}

// UserListOptions filters the admin user listing.
type UserListOptions struct {
	Role   string
	Status string
	Search string
	Limit  int
	Offset int
}

type sessionTerminator interface {
	TerminateUserSessions(ctx context.Context, userID uint) (int64, error)
}

// UserService manages accounts: registration, verification, profile and
// administrative status and role changes.
type UserService struct {
	db            *gorm.DB
	verification  *EmailVerificationService
	sessions      sessionTerminator
	audit         *AuditService
	notifications *NotificationService
	now           func() time.Time
}

// UserServiceDeps groups the collaborators of UserService.
type UserServiceDeps struct {
	DB            *gorm.DB
	Verification  *EmailVerificationService
	Sessions      sessionTerminator
	Audit         *AuditService
	Notifications *NotificationService
	Clock         func() time.Time
}

// selfServiceRoles may be chosen at registration. Admin accounts are seeded or promoted.
var selfServiceRoles = map[models.Role]struct{}{
	models.RoleCitizen:    {},
	models.RoleStaff:      {},
	models.RoleEngineer:   {},
	models.RoleSupervisor: {},
	models.RoleLGUOfficer: {},
}

// NewUserService constructs a UserService.
func NewUserService(deps UserServiceDeps) (*UserService, error) {
	if deps.DB == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{
		db:            deps.DB,
		verification:  deps.Verification,
		sessions:      deps.Sessions,
		audit:         deps.Audit,
		notifications: deps.Notifications,
		now:           utcClock(deps.Clock),
	}, nil
}

// Register creates a pending account and issues an email verification token.
// The returned link is empty when no verification service is configured.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*models.User, string, error) {
	ctx = ensureContext(ctx)

	email := normaliseEmail(input.Email)
	if email == "" {
		return nil, "", apperrors.NewBadRequest("email is required")
	}
	if input.Password == "" {
		return nil, "", apperrors.NewBadRequest("password is required")
	}

	role := models.RoleCitizen
	if strings.TrimSpace(input.Role) != "" {
		parsed, ok := models.ParseRole(input.Role)
		if !ok {
			return nil, "", apperrors.NewBadRequest("invalid role")
		}
		if _, allowed := selfServiceRoles[parsed]; !allowed {
			return nil, "", apperrors.NewBadRequest("role cannot be self-assigned")
		}
		role = parsed
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, "", fmt.Errorf("user service: hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		BaseModel: models.BaseModel{CreatedAt: now, UpdatedAt: now},
		Email:     email,
		Password:  hashed,
		Role:      role,
		Status:    models.UserStatusPending,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Phone:     strings.TrimSpace(input.Phone),
		Barangay:  strings.TrimSpace(input.Barangay),
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", fmt.Errorf("user service: create user: %w", err)
	}

	userID := user.ID
	s.audit.Record(ctx, AuditEntry{
		UserID:  &userID,
		Action:  AuditRegister,
		Details: fmt.Sprintf("Registered %s as %s", email, role),
	})

	link := ""
	if s.verification != nil {
		if _, link, err = s.verification.CreateToken(ctx, user.ID, email); err != nil {
			logger.FromContext(ctx, "services").Warn("issue verification token", zap.Uint("user_id", user.ID), zap.Error(err))
		}
	}
	return user, link, nil
}

// VerifyEmail consumes a verification token. Citizens become active; other
// roles stay pending until an administrator activates them.
func (s *UserService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	ctx = ensureContext(ctx)
	if s.verification == nil {
		return nil, ErrVerificationNotFound
	}

	verification, err := s.verification.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.GetByID(ctx, verification.UserID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"email_verified": true, "updated_at": s.now()}
	if user.Role == models.RoleCitizen && user.Status == models.UserStatusPending {
		updates["status"] = models.UserStatusActive
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: mark verified: %w", err)
	}

	user.EmailVerified = true
	if status, ok := updates["status"].(models.UserStatus); ok {
		user.Status = status
	}

	userID := user.ID
	s.audit.Record(ctx, AuditEntry{UserID: &userID, Action: AuditEmailVerified, Details: "Email address verified"})

	message := "Your email address has been verified. You can now sign in."
	if !user.IsActive() {
		message = "Your email address has been verified. An administrator will review your account."
	}
	s.notifications.Create(ctx, CreateNotificationInput{
		UserID:  user.ID,
		Title:   "Email verified",
		Message: message,
		Type:    string(models.NotificationSuccess),
	})
	return user, nil
}

// GetByID loads a user.
func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ensureContext(ctx)).Take(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// UpdateProfile stores profile fields and recomputes ProfileCompleted.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, input ProfileInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.FirstName = strings.TrimSpace(input.FirstName)
	user.LastName = strings.TrimSpace(input.LastName)
	user.Phone = strings.TrimSpace(input.Phone)
	user.Barangay = strings.TrimSpace(input.Barangay)
	user.Address = strings.TrimSpace(input.Address)
	user.ProfileCompleted = user.FirstName != "" && user.LastName != "" &&
		user.Phone != "" && user.Barangay != "" && user.Address != ""

	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
		"first_name":        user.FirstName,
		"last_name":         user.LastName,
		"phone":             user.Phone,
		"barangay":          user.Barangay,
		"address":           user.Address,
		"profile_completed": user.ProfileCompleted,
		"updated_at":        s.now(),
	}).Error; err != nil {
		return nil, fmt.Errorf("user service: update profile: %w", err)
	}

	s.audit.LogActivity(ctx, AuditProfileUpdated, "Profile updated")
	return user, nil
}

// List returns users matching opts, newest first, with the total count.
func (s *UserService) List(ctx context.Context, opts UserListOptions) ([]models.User, int64, error) {
	query := s.db.WithContext(ensureContext(ctx)).Model(&models.User{})
	if role, ok := models.ParseRole(opts.Role); ok {
		query = query.Where("role = ?", role)
	}
	if status, ok := models.ParseUserStatus(opts.Status); ok {
		query = query.Where("status = ?", status)
	}
	if search := strings.ToLower(strings.TrimSpace(opts.Search)); search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: count users: %w", err)
	}

	var users []models.User
	if err := query.Order("created_at DESC").Order("id DESC").
		Limit(clampLimit(opts.Limit, 25, maxListLimit)).
		Offset(max(0, opts.Offset)).
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: list users: %w", err)
	}
	return users, total, nil
}

// SetStatus changes an account's status. Deactivation terminates the user's sessions.
func (s *UserService) SetStatus(ctx context.Context, userID uint, status string) (*models.User, error) {
	ctx = ensureContext(ctx)

	next, ok := models.ParseUserStatus(status)
	if !ok {
		return nil, ErrInvalidStatus
	}
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Status == next {
		return user, nil
	}

	previous := user.Status
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]any{"status": next, "updated_at": s.now()}).Error; err != nil {
		return nil, fmt.Errorf("user service: set status: %w", err)
	}
	user.Status = next

	if next != models.UserStatusActive && s.sessions != nil {
		if _, err := s.sessions.TerminateUserSessions(ctx, userID); err != nil {
			logger.FromContext(ctx, "services").Warn("terminate sessions after deactivation", zap.Uint("user_id", userID), zap.Error(err))
		}
	}

	s.audit.LogActivity(ctx, AuditUserStatusChanged,
		fmt.Sprintf("Changed status of %s from %s to %s", user.Email, previous, next))

	notification := CreateNotificationInput{
		UserID: userID,
		Title:  "Account status updated",
		Type:   string(models.NotificationInfo),
	}
	switch next {
	case models.UserStatusActive:
		notification.Message = "Your account has been activated."
		notification.Type = string(models.NotificationSuccess)
	case models.UserStatusInactive:
		notification.Message = "Your account has been deactivated. Contact the municipal office for assistance."
		notification.Type = string(models.NotificationWarning)
	default:
		notification.Message = "Your account is pending review."
	}
	s.notifications.Create(ctx, notification)
	return user, nil
}

// SetRole changes an account's role.
func (s *UserService) SetRole(ctx context.Context, userID uint, role string) (*models.User, error) {
	ctx = ensureContext(ctx)

	next, ok := models.ParseRole(role)
	if !ok {
		return nil, apperrors.NewBadRequest("invalid role")
	}
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == next {
		return user, nil
	}

	previous := user.Role
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]any{"role": next, "updated_at": s.now()}).Error; err != nil {
		return nil, fmt.Errorf("user service: set role: %w", err)
	}
	user.Role = next

	s.audit.LogActivity(ctx, AuditUserRoleChanged,
		fmt.Sprintf("Changed role of %s from %s to %s", user.Email, previous, next))
	s.notifications.Create(ctx, CreateNotificationInput{
		UserID:  userID,
		Title:   "Role updated",
		Message: fmt.Sprintf("Your portal role is now %s.", next),
		Type:    string(models.NotificationInfo),
	})
	return user, nil
}
