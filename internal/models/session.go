package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session ties an opaque browser token to a user. Validation keys on Token
// (cookie flow) or ID (bearer flow); a session never returns to active once
// IsActive is cleared.
type Session struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	Token      string     `gorm:"uniqueIndex;size:128;not null" json:"-"`
	UserID     uint       `gorm:"not null;index" json:"user_id"`
	User       *User      `gorm:"foreignKey:UserID" json:"-"`
	IPAddress  string     `gorm:"size:64" json:"ip_address"`
	UserAgent  string     `gorm:"type:text" json:"user_agent"`
	CSRFToken  string     `gorm:"size:128;not null" json:"-"`
	IsActive   bool       `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `gorm:"index" json:"expires_at"`
	LastSeenAt time.Time  `json:"last_seen_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
