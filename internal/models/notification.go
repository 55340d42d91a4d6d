package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// NotificationType tags the tone of a notification.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// ParseNotificationType normalises input, defaulting unknown values to info.
func ParseNotificationType(value string) NotificationType {
	switch t := NotificationType(strings.ToLower(strings.TrimSpace(value))); t {
	case NotificationInfo, NotificationSuccess, NotificationWarning, NotificationError:
		return t
	}
	return NotificationInfo
}

// Notification is a pull-based alert owned by exactly one user. Only the read
// flag and read timestamp change after creation.
type Notification struct {
	ID        uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint             `gorm:"not null;index:idx_notifications_user_read,priority:1" json:"user_id"`
	User      *User            `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Title     string           `gorm:"size:255;not null" json:"title"`
	Message   string           `gorm:"type:text" json:"message"`
	Type      NotificationType `gorm:"type:varchar(16);not null;default:'info'" json:"type"`
	ActionURL string           `gorm:"type:text" json:"action_url,omitempty"`
	Metadata  datatypes.JSON   `json:"metadata,omitempty"`
	IsRead    bool             `gorm:"not null;default:false;index:idx_notifications_user_read,priority:2" json:"is_read"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
	ReadAt    *time.Time       `json:"read_at"`
}
