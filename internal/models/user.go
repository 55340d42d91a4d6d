package models

import (
	"strings"
	"time"
)

// Role names a portal role. The set is fixed; see AllRoles.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleLGUOfficer Role = "lgu_officer"
	RoleEngineer   Role = "engineer"
	RoleCitizen    Role = "citizen"
	RoleSupervisor Role = "supervisor"
	RoleStaff      Role = "staff"
)

// AllRoles lists every role accepted by the portal.
var AllRoles = []Role{RoleAdmin, RoleLGUOfficer, RoleEngineer, RoleCitizen, RoleSupervisor, RoleStaff}

// ParseRole normalises input and reports whether it names a known role.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range AllRoles {
		if role == known {
			return role, true
		}
	}
	return "", false
}

// UserStatus captures the account lifecycle.
type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// ParseUserStatus normalises input and reports whether it names a known status.
func ParseUserStatus(value string) (UserStatus, bool) {
	status := UserStatus(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case UserStatusPending, UserStatusActive, UserStatusInactive:
		return status, true
	}
	return "", false
}

// User is a portal account. Users are never physically deleted.
type User struct {
	BaseModel

	Email         string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password      string     `gorm:"not null" json:"-"`
	Role          Role       `gorm:"type:varchar(32);not null;index;default:'citizen'" json:"role"`
	Status        UserStatus `gorm:"type:varchar(16);not null;index;default:'pending'" json:"status"`
	EmailVerified bool       `gorm:"default:false" json:"email_verified"`

	FirstName        string `gorm:"size:100" json:"first_name"`
	LastName         string `gorm:"size:100" json:"last_name"`
	Phone            string `gorm:"size:32" json:"phone"`
	Barangay         string `gorm:"size:100" json:"barangay"`
	Address          string `gorm:"type:text" json:"address"`
	ProfileCompleted bool   `gorm:"default:false" json:"profile_completed"`

	LastLoginAt *time.Time `json:"last_login_at"`
	LastLoginIP string     `gorm:"size:64" json:"last_login_ip"`

	Sessions      []Session      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Notifications []Notification `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsActive reports whether the account may log in.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}

// DisplayName prefers the full name and falls back to the email address.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}
