package models

import (
	"fmt"
	"time"
)

// SOSAlert is a persisted SOS event in sos_alerts.
type SOSAlert struct {
	// AlertID is generated by the sender (UUID).
	AlertID string `gorm:"primaryKey;type:text" json:"alert_id"`
	// ReportedBy is the reporter's display name or "Anonymous User".
	ReportedBy  string `gorm:"type:text;not null" json:"reported_by"`
	ReporterID  string `gorm:"type:text;index" json:"reporter_id,omitempty"`
	ContactInfo string `gorm:"type:text" json:"contact_info,omitempty"`
	ContactUser bool   `json:"contact_user"`
	// ReportedTime is when the citizen pressed send.
	ReportedTime time.Time `gorm:"not null" json:"reported_time"`
	Status       string    `gorm:"type:text;not null;index" json:"status"`
	// Location is the nearest station name or "Unknown location".
	Location       string    `gorm:"type:text;not null" json:"location"`
	Latitude       *float64  `json:"latitude"`
	Longitude      *float64  `json:"longitude"`
	Message        *string   `gorm:"type:text" json:"message"`
	VoiceRecording *string   `gorm:"type:text" json:"voice_recording"`
	UrgencyLevel   string    `gorm:"type:text" json:"urgency_level"`
	MapRedirectURL string    `gorm:"type:text" json:"map_redirect_url,omitempty"`
	DispatchTeam   *string   `gorm:"type:text" json:"dispatch_team"`
	CreatedAt      time.Time `json:"created_at"`
}

func (SOSAlert) TableName() string { return "sos_alerts" }

// MapURL builds the maps link stored in map_redirect_url.
func MapURL(lat, lng float64) string {
	return fmt.Sprintf("https://www.google.com/maps?q=%f,%f", lat, lng)
}

// VoiceRecording links an uploaded blob to its alert.
type VoiceRecording struct {
	ID           string    `gorm:"primaryKey;type:text" json:"id"`
	AlertID      string    `gorm:"type:text;index" json:"alert_id"`
	RecordingURL string    `gorm:"type:text;not null" json:"recording_url"`
	CreatedAt    time.Time `json:"created_at"`
}

func (VoiceRecording) TableName() string { return "voice_recordings" }
