package models

import "time"

// EmailVerification stores hashed verification tokens for registrations.
type EmailVerification struct {
	BaseModel

	UserID     uint       `gorm:"not null;index" json:"user_id"`
	TokenHash  string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt  time.Time  `gorm:"index" json:"expires_at"`
	VerifiedAt *time.Time `json:"verified_at"`
}
