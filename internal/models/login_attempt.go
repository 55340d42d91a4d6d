package models

import "time"

// LoginAttempt is an append-only record used for lockout and suspicious-activity reads.
type LoginAttempt struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email     string    `gorm:"size:255;not null;index:idx_login_attempts_email_time,priority:1" json:"email"`
	IPAddress string    `gorm:"size:64" json:"ip_address"`
	Success   bool      `gorm:"not null" json:"success"`
	UserAgent string    `gorm:"type:text" json:"user_agent"`
	CreatedAt time.Time `gorm:"index:idx_login_attempts_email_time,priority:2" json:"created_at"`
}
