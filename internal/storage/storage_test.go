package storage_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"crimewatch/backend/internal/changefeed"
	"crimewatch/backend/internal/errs"
	"crimewatch/backend/internal/logger"
	"crimewatch/backend/internal/models"
	"crimewatch/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []changefeed.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e changefeed.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) tables() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Table+":"+string(e.Type))
	}
	return out
}

func newService(t *testing.T) (*storage.Service, *recordingPublisher) {
	t.Helper()
	db, err := storage.Open("sqlite::memory:")
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db, true))
	pub := &recordingPublisher{}
	return storage.NewStorageService(db, pub, logger.Discard()), pub
}

func strPtr(s string) *string { return &s }

func newAlert(id string, at time.Time) *models.SOSAlert {
	lat, lng := 13.08, 80.27
	return &models.SOSAlert{
		AlertID:      id,
		ReportedBy:   "Anonymous User",
		ReportedTime: at,
		Location:     "A",
		Latitude:     &lat,
		Longitude:    &lng,
		Message:      strPtr("Help, being followed"),
	}
}

func TestInsertAlert_CreatesOfficerNotification(t *testing.T) {
	// Arrange
	s, pub := newService(t)
	ctx := context.Background()

	// Act
	err := s.InsertAlert(ctx, newAlert("a1", time.Now()))

	// Assert
	require.NoError(t, err)
	got, err := s.GetAlert(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "New", got.Status)
	assert.Equal(t, "High", got.UrgencyLevel)
	assert.Nil(t, got.VoiceRecording)

	feed := models.Feed{Role: models.RoleOfficer}
	notes, err := s.ListNotifications(ctx, feed, 5)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "sos_alert", notes[0].Type)
	require.NotNil(t, notes[0].ReportID)
	assert.Equal(t, "a1", *notes[0].ReportID)
	assert.False(t, notes[0].IsRead)

	assert.Equal(t, []string{"sos_alerts:INSERT", "officer_notifications:INSERT"}, pub.tables())
}

func TestInsertAlert_DuplicateIDFails(t *testing.T) {
	s, pub := newService(t)
	ctx := context.Background()
	require.NoError(t, s.InsertAlert(ctx, newAlert("dup", time.Now())))

	err := s.InsertAlert(ctx, newAlert("dup", time.Now()))

	assert.Error(t, err)
	notes, _ := s.ListNotifications(ctx, models.Feed{Role: models.RoleOfficer}, 0)
	assert.Len(t, notes, 1, "failed insert must not leave a notification behind")
	assert.Len(t, pub.tables(), 2)
}

func TestListAlerts_VoiceRecordingFallback(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	now := time.Now()

	withURL := newAlert("a1", now.Add(-2*time.Minute))
	withURL.VoiceRecording = strPtr("http://blobs/u/a1.mp3")
	require.NoError(t, s.InsertAlert(ctx, withURL))
	require.NoError(t, s.InsertAlert(ctx, newAlert("a2", now.Add(-time.Minute))))
	require.NoError(t, s.InsertAlert(ctx, newAlert("a3", now)))

	require.NoError(t, s.InsertVoiceRecording(ctx, &models.VoiceRecording{AlertID: "a2", RecordingURL: "http://blobs/u/a2.mp3"}))

	alerts, err := s.ListAlerts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	assert.Equal(t, "a3", alerts[0].AlertID, "newest first")
	assert.Nil(t, alerts[0].VoiceRecording)
	require.NotNil(t, alerts[1].VoiceRecording)
	assert.Equal(t, "http://blobs/u/a2.mp3", *alerts[1].VoiceRecording)
	assert.Equal(t, "http://blobs/u/a1.mp3", *alerts[2].VoiceRecording)

	limited, err := s.ListAlerts(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestUpdateAlertStatus(t *testing.T) {
	s, pub := newService(t)
	ctx := context.Background()
	a := newAlert("a1", time.Now())
	a.ReporterID = "citizen-1"
	require.NoError(t, s.InsertAlert(ctx, a))

	updated, err := s.UpdateAlertStatus(ctx, "a1", "In Progress", strPtr(" Team 7 "))

	require.NoError(t, err)
	assert.Equal(t, "In Progress", updated.Status)
	require.NotNil(t, updated.DispatchTeam)
	assert.Equal(t, "Team 7", *updated.DispatchTeam)

	stored, err := s.GetAlert(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "In Progress", stored.Status)
	assert.Equal(t, "Team 7", *stored.DispatchTeam)

	citizen := models.Feed{Role: models.RoleCitizen, UserID: "citizen-1"}
	notes, err := s.ListNotifications(ctx, citizen, 5)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "officer_action", notes[0].Type)
	assert.Contains(t, notes[0].Message, "In Progress")
	assert.Contains(t, notes[0].Message, "Team 7")

	assert.Contains(t, pub.tables(), "sos_alerts:UPDATE")
	assert.Contains(t, pub.tables(), "user_notifications:INSERT")
}

func TestUpdateAlertStatus_Errors(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	require.NoError(t, s.InsertAlert(ctx, newAlert("a1", time.Now())))

	_, err := s.UpdateAlertStatus(ctx, "a1", "Closed", nil)
	assert.ErrorIs(t, err, errs.ErrInvalidStatus)

	_, err = s.UpdateAlertStatus(ctx, "missing", "Resolved", nil)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	// anonymous alerts produce no citizen notification
	_, err = s.UpdateAlertStatus(ctx, "a1", "Resolved", nil)
	require.NoError(t, err)
	var count int64
	require.NoError(t, s.DB.Model(&models.UserNotification{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestNotifications_ReadFlow(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, s.DB.Create(&models.UserNotification{
			ID: id, UserID: "u1", NotificationType: "report_update", Message: id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}
	require.NoError(t, s.DB.Create(&models.UserNotification{ID: "other", UserID: "u2", NotificationType: "report_update", Message: "x", CreatedAt: base}).Error)

	feed := models.Feed{Role: models.RoleCitizen, UserID: "u1"}
	notes, err := s.ListNotifications(ctx, feed, 2)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "n3", notes[0].ID)
	assert.Equal(t, "n2", notes[1].ID)

	unread, err := s.CountUnread(ctx, feed)
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	require.NoError(t, s.MarkNotificationRead(ctx, feed, "n1"))
	require.NoError(t, s.MarkNotificationRead(ctx, feed, "n1"), "marking twice is not an error")
	assert.ErrorIs(t, s.MarkNotificationRead(ctx, feed, "other"), errs.ErrNotFound, "other users' rows are out of scope")

	unread, _ = s.CountUnread(ctx, feed)
	assert.Equal(t, int64(2), unread)

	require.NoError(t, s.MarkAllNotificationsRead(ctx, feed))
	unread, _ = s.CountUnread(ctx, feed)
	assert.Zero(t, unread)
	otherUnread, _ := s.CountUnread(ctx, models.Feed{Role: models.RoleCitizen, UserID: "u2"})
	assert.Equal(t, int64(1), otherUnread)
}

func TestRecordingURLs(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	a := newAlert("a1", time.Now())
	a.VoiceRecording = strPtr("http://blobs/u/a1.mp3")
	require.NoError(t, s.InsertAlert(ctx, a))
	require.NoError(t, s.InsertAlert(ctx, newAlert("a2", time.Now())))
	require.NoError(t, s.InsertVoiceRecording(ctx, &models.VoiceRecording{AlertID: "a2", RecordingURL: "http://blobs/u/a2.mp3"}))

	urls, err := s.RecordingURLs(ctx)

	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"http://blobs/u/a1.mp3": true, "http://blobs/u/a2.mp3": true}, urls)
}

func TestListUserAlerts(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	mine := newAlert("a1", time.Now())
	mine.ReporterID = "u1"
	require.NoError(t, s.InsertAlert(ctx, mine))
	require.NoError(t, s.InsertAlert(ctx, newAlert("a2", time.Now())))

	alerts, err := s.ListUserAlerts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "a1", alerts[0].AlertID)
}

func TestSaveAnalysis_UpsertsByReport(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAnalysis(ctx, &models.ReportAnalysis{ReportID: strPtr("r1"), CrimeType: "arson", Confidence: 0.8, Description: "first"}))
	require.NoError(t, s.SaveAnalysis(ctx, &models.ReportAnalysis{ReportID: strPtr("r1"), CrimeType: "assault", Confidence: 0.9, Description: "second"}))

	var rows []models.ReportAnalysis
	require.NoError(t, s.DB.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "assault", rows[0].CrimeType)
	assert.Equal(t, "second", rows[0].Description)
}

func TestLoadRow(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	long := strings.Repeat("help me please ", 1000)
	a := newAlert("big", time.Now())
	a.Message = &long
	require.NoError(t, s.InsertAlert(ctx, a))

	raw, err := s.LoadRow(ctx, "sos_alerts", "big")
	require.NoError(t, err)
	var got models.SOSAlert
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "big", got.AlertID)
	require.NotNil(t, got.Message)
	assert.Equal(t, long, *got.Message)

	notes, err := s.ListNotifications(ctx, models.Feed{Role: models.RoleOfficer}, 1)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	raw, err = s.LoadRow(ctx, "officer_notifications", notes[0].ID)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"notification_type":"sos_alert"`)

	_, err = s.LoadRow(ctx, "sos_alerts", "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.LoadRow(ctx, "voice_recordings", "x")
	assert.Error(t, err)
}
