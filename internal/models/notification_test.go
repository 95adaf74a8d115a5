package models_test

import (
	"reflect"
	"testing"

	"crimewatch/backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// TestOfficerNotificationBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a valid UUID.
func TestOfficerNotificationBeforeCreate_GeneratesUUID(t *testing.T) {
	// Arrange
	n := &models.OfficerNotification{NotificationType: "sos_alert", Message: "New SOS alert"}
	assert.Empty(t, n.ID)

	// Act
	err := n.BeforeCreate(nil)

	// Assert
	assert.NoError(t, err)
	parsed, parseErr := uuid.Parse(n.ID)
	assert.NoError(t, parseErr, "ID must be a valid UUID string")
	assert.NotEqual(t, uuid.Nil, parsed)
}

func TestUserNotificationBeforeCreate_PreservesExistingID(t *testing.T) {
	existingID := uuid.New().String()
	n := &models.UserNotification{ID: existingID, UserID: "u-1"}

	err := n.BeforeCreate(nil)

	assert.NoError(t, err)
	assert.Equal(t, existingID, n.ID)
}

func TestNotificationBeforeCreate_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		n := &models.UserNotification{}
		assert.NoError(t, n.BeforeCreate(nil))
		assert.NotContains(t, seen, n.ID)
		seen[n.ID] = true
	}
}

func TestFeed(t *testing.T) {
	tests := []struct {
		name  string
		feed  models.Feed
		table string
		key   string
	}{
		{"officer", models.Feed{Role: models.RoleOfficer}, "officer_notifications", "officer"},
		{"officer ignores user", models.Feed{Role: models.RoleOfficer, UserID: "x"}, "officer_notifications", "officer"},
		{"citizen", models.Feed{Role: models.RoleCitizen, UserID: "u-7"}, "user_notifications", "citizen:u-7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.table, tt.feed.Table())
			assert.Equal(t, tt.key, tt.feed.Key())
		})
	}
}

// TestTableNames guards the column/table names other services read.
func TestTableNames(t *testing.T) {
	assert.Equal(t, "sos_alerts", models.SOSAlert{}.TableName())
	assert.Equal(t, "voice_recordings", models.VoiceRecording{}.TableName())
	assert.Equal(t, "crime_report_analysis", models.ReportAnalysis{}.TableName())

	alertType := reflect.TypeOf(models.SOSAlert{})
	for field, tag := range map[string]string{
		"AlertID":        "alert_id",
		"ReportedBy":     "reported_by",
		"VoiceRecording": "voice_recording",
		"UrgencyLevel":   "urgency_level",
		"ContactUser":    "contact_user",
	} {
		f, ok := alertType.FieldByName(field)
		assert.True(t, ok, field)
		assert.Contains(t, f.Tag.Get("json"), tag)
	}
	idField, _ := alertType.FieldByName("AlertID")
	assert.Contains(t, idField.Tag.Get("gorm"), "primaryKey")
}

func TestViewCarriesUser(t *testing.T) {
	n := models.UserNotification{ID: "n1", UserID: "u1", Message: "m", NotificationType: "officer_action"}
	v := n.View()
	assert.Equal(t, "u1", v.UserID)
	assert.Equal(t, "officer_action", v.Type)

	o := models.OfficerNotification{ID: "n2", IsRead: true}.View()
	assert.True(t, o.IsRead)
	assert.Empty(t, o.UserID)
}

func TestMapURL(t *testing.T) {
	assert.Equal(t, "https://www.google.com/maps?q=13.082700,80.270700", models.MapURL(13.0827, 80.2707))
}
