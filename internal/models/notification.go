package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role of a notification feed.
type Role string

const (
	RoleOfficer Role = "officer"
	RoleCitizen Role = "citizen"
)

// Feed identifies one notification stream. The officer feed is shared by every officer,
// a citizen feed is keyed by UserID.
type Feed struct {
	Role   Role
	UserID string
}

// Table returns the backing table of the feed.
func (f Feed) Table() string {
	if f.Role == RoleCitizen {
		return UserNotification{}.TableName()
	}
	return OfficerNotification{}.TableName()
}

// Key is a stable identifier used for cache entries.
func (f Feed) Key() string {
	if f.Role == RoleCitizen {
		return string(f.Role) + ":" + f.UserID
	}
	return string(f.Role)
}

// OfficerNotification is broadcast to all officers.
type OfficerNotification struct {
	ID               string    `gorm:"primaryKey;type:text" json:"id"`
	NotificationType string    `gorm:"type:text;not null" json:"notification_type"`
	ReportID         *string   `gorm:"type:text" json:"report_id"`
	Message          string    `gorm:"type:text;not null" json:"message"`
	IsRead           bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
}

func (OfficerNotification) TableName() string { return "officer_notifications" }

// BeforeCreate assigns a UUID when the row has none.
func (n *OfficerNotification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return
}

// UserNotification is delivered to one citizen.
type UserNotification struct {
	ID               string    `gorm:"primaryKey;type:text" json:"id"`
	UserID           string    `gorm:"type:text;index" json:"user_id"`
	NotificationType string    `gorm:"type:text;not null" json:"notification_type"`
	ReportID         *string   `gorm:"type:text" json:"report_id"`
	Message          string    `gorm:"type:text;not null" json:"message"`
	IsRead           bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
}

func (UserNotification) TableName() string { return "user_notifications" }

// BeforeCreate assigns a UUID when the row has none.
func (n *UserNotification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return
}

// Notification is the role-independent read model shown by a bell.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"notification_type"`
	ReportID  *string   `json:"report_id"`
	UserID    string    `json:"user_id,omitempty"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func (n OfficerNotification) View() Notification {
	return Notification{ID: n.ID, Type: n.NotificationType, ReportID: n.ReportID, Message: n.Message, IsRead: n.IsRead, CreatedAt: n.CreatedAt}
}

func (n UserNotification) View() Notification {
	return Notification{ID: n.ID, Type: n.NotificationType, ReportID: n.ReportID, UserID: n.UserID, Message: n.Message, IsRead: n.IsRead, CreatedAt: n.CreatedAt}
}
