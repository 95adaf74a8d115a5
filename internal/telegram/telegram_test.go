package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	"crimewatch/backend/internal/changefeed"
	"crimewatch/backend/internal/config"
	"crimewatch/backend/internal/errs"
	"crimewatch/backend/internal/localization"
	"crimewatch/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent      []tgbotapi.MessageConfig
	callbacks []tgbotapi.CallbackConfig
	requests  int
	sendErr  error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, f.sendErr
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.callbacks = append(f.callbacks, cb)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		out = append(out, m.Text)
	}
	return out
}

type MockAlertStore struct {
	mock.Mock
}

func (m *MockAlertStore) ListAlerts(ctx context.Context, limit int) ([]models.SOSAlert, error) {
	args := m.Called(ctx, limit)
	alerts, _ := args.Get(0).([]models.SOSAlert)
	return alerts, args.Error(1)
}

func (m *MockAlertStore) UpdateAlertStatus(ctx context.Context, alertID, status string, team *string) (*models.SOSAlert, error) {
	args := m.Called(ctx, alertID, status, team)
	alert, _ := args.Get(0).(*models.SOSAlert)
	return alert, args.Error(1)
}

func strPtr(s string) *string { return &s }

func alertEvent(t *testing.T, typ changefeed.EventType, a models.SOSAlert) changefeed.Event {
	t.Helper()
	e, err := changefeed.NewEvent("sos_alerts", typ, a)
	require.NoError(t, err)
	return e
}

func command(chatID int64, text string, length int) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text:     text,
			Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
			From:     &tgbotapi.User{ID: 1},
			Chat:     tgbotapi.Chat{ID: chatID},
		},
	}
}

func TestClient_RelaysNewAlertToEveryChat(t *testing.T) {
	// Arrange
	api := &fakeAPI{}
	c := NewClient(api, []int64{100, 200}, localization.Default(), nil)
	alert := models.SOSAlert{
		AlertID:        "a1",
		ReportedBy:     "Priya_K",
		ContactInfo:    "+91 98400",
		Location:       "Egmore Police Station",
		Message:        strPtr("help *now*"),
		MapRedirectURL: models.MapURL(13.07, 80.26),
		Status:         config.StatusNew,
	}

	// Act
	c.relay(alertEvent(t, changefeed.Insert, alert))

	// Assert
	require.Len(t, api.sent, 2)
	assert.EqualValues(t, 100, api.sent[0].ChatID)
	assert.EqualValues(t, 200, api.sent[1].ChatID)
	text := api.sent[0].Text
	assert.Contains(t, text, "Egmore Police Station")
	assert.Contains(t, text, `Priya\_K`)
	assert.Contains(t, text, `help \*now\*`)
	assert.Contains(t, text, "`a1`")
	assert.NotNil(t, api.sent[0].ReplyMarkup)
}

func TestClient_RelaysStatusAndSkipsNotifications(t *testing.T) {
	api := &fakeAPI{}
	c := NewClient(api, []int64{100}, localization.Default(), nil)

	note, err := changefeed.NewEvent("officer_notifications", changefeed.Insert, models.OfficerNotification{ID: "n1"})
	require.NoError(t, err)
	c.relay(note)
	assert.Empty(t, api.sent)

	c.relay(alertEvent(t, changefeed.Update, models.SOSAlert{AlertID: "a1", Status: config.StatusInProgress, DispatchTeam: strPtr("Alpha")}))
	require.Len(t, api.texts(), 1)
	assert.Equal(t, "Alert `a1` is now *In Progress*. Team Alpha dispatched.", api.texts()[0])
}

func TestClient_RunAndClose(t *testing.T) {
	api := &fakeAPI{}
	c := NewClient(api, []int64{100}, localization.Default(), nil)
	c.Run()

	c.Send <- alertEvent(t, changefeed.Update, models.SOSAlert{AlertID: "a1", Status: config.StatusResolved})
	assert.Eventually(t, func() bool { return len(api.texts()) == 1 },time.Second, 10*time.Millisecond)

	c.Close()
	c.Close()
	assert.Equal(t, ClientID, c.GetID())
	assert.Equal(t, models.RoleOfficer, c.GetFeed().Role)
}

func TestBotService_RejectsUnknownChat(t *testing.T) {
	api := &fakeAPI{}
	store := new(MockAlertStore)
	s := NewBotService(api, store, localization.Default(), []int64{100}, nil)

	s.HandleUpdate(context.Background(), command(999, "/alerts", 7))

	assert.Equal(t, []string{localization.Default().GetString("en", "not_authorized")}, api.texts())
	store.AssertNotCalled(t, "ListAlerts", mock.Anything, mock.Anything)
}

func TestBotService_Alerts(t *testing.T) {
	api := &fakeAPI{}
	store := new(MockAlertStore)
	store.On("ListAlerts", mock.Anything, alertsListLimit).Return([]models.SOSAlert{
		{AlertID: "a2", Status: config.StatusNew, ReportedBy: "Anonymous User", Location: "Adyar"},
		{AlertID: "a1", Status: config.StatusResolved, ReportedBy: "Ravi", Location: "Egmore"},
	}, nil).Once()
	store.On("ListAlerts", mock.Anything, alertsListLimit).Return([]models.SOSAlert{}, nil).Once()
	s := NewBotService(api, store, localization.Default(), []int64{100}, nil)

	s.HandleUpdate(context.Background(), command(100, "/alerts", 7))
	s.HandleUpdate(context.Background(), command(100, "/alerts", 7))

	texts := api.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "Latest SOS alerts:")
	assert.Contains(t, texts[0], "• [New] Anonymous User near Adyar (`a2`)")
	assert.Equal(t, "No SOS alerts yet.", texts[1])
}

func TestBotService_ProgressWithTeam(t *testing.T) {
	api := &fakeAPI{}
	store := new(MockAlertStore)
	store.On("UpdateAlertStatus", mock.Anything, "a1", config.StatusInProgress,
		mock.MatchedBy(func(team *string) bool { return team != nil && *team == "Alpha 1" })).
		Return(&models.SOSAlert{AlertID: "a1", Status: config.StatusInProgress, DispatchTeam: strPtr("Alpha 1")}, nil)
	s := NewBotService(api, store, localization.Default(), []int64{100}, nil)

	s.HandleUpdate(context.Background(), command(100, "/progress a1 Alpha 1", 9))

	assert.Equal(t, []string{"Alert `a1` is now *In Progress*. Team Alpha 1 dispatched."}, api.texts())
	store.AssertExpectations(t)
}

func TestBotService_ResolveErrors(t *testing.T) {
	api := &fakeAPI{}
	store := new(MockAlertStore)
	store.On("UpdateAlertStatus", mock.Anything, "missing", config.StatusResolved, (*string)(nil)).
		Return(nil, errors.Wrap(errs.ErrNotFound, "alert missing"))
	store.On("UpdateAlertStatus", mock.Anything, "broken", config.StatusResolved, (*string)(nil)).
		Return(nil, errors.New("db down"))
	s := NewBotService(api, store, localization.Default(), []int64{100}, nil)

	s.HandleUpdate(context.Background(), command(100, "/resolve", 8))
	s.HandleUpdate(context.Background(), command(100, "/resolve missing", 8))
	s.HandleUpdate(context.Background(), command(100, "/resolve broken", 8))

	assert.Equal(t, []string{
		"Usage: /resolve <alert_id>",
		"Alert not found.",
		"Could not update the alert. Please try again.",
	}, api.texts())
}

func TestBotService_CallbackText(t *testing.T) {
	store := new(MockAlertStore)
	store.On("UpdateAlertStatus", mock.Anything, "a1", config.StatusResolved, (*string)(nil)).
		Return(&models.SOSAlert{AlertID: "a1", Status: config.StatusResolved}, nil)
	s := NewBotService(&fakeAPI{}, store, localization.Default(), []int64{100}, nil)
	ctx := context.Background()

	assert.Equal(t, "Alert `a1` is now *Resolved*.", s.callbackText(ctx, 100, "en", callbackResolve+"a1"))
	assert.Equal(t, "Alert a1 is now Resolved.", stripMarkdown(s.callbackText(ctx, 100, "en", callbackResolve+"a1")))
	assert.Equal(t, "This chat is not registered as an officer channel.", s.callbackText(ctx, 5, "en", callbackResolve+"a1"))
	assert.Equal(t, "Unknown command. Try /alerts.", s.callbackText(ctx, 100, "en", "other"))
}

func TestBotService_CallbackWithoutMessage(t *testing.T) {
	api := &fakeAPI{}
	store := new(MockAlertStore)
	s := NewBotService(api, store, localization.Default(), []int64{100}, nil)

	s.HandleUpdate(context.Background(), tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{ID: "cb1", InlineMessageID: "inline-1", Data: callbackResolve + "a1"},
	})

	require.Len(t, api.callbacks, 1)
	assert.Equal(t, "cb1", api.callbacks[0].CallbackQueryID)
	assert.Equal(t, "This chat is not registered as an officer channel.", api.callbacks[0].Text)
	store.AssertNotCalled(t, "UpdateAlertStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBotService_RunStopsOnClosedChannel(t *testing.T) {
	api := &fakeAPI{}
	s := NewBotService(api, new(MockAlertStore), localization.Default(), []int64{100}, nil)
	updates := make(chan tgbotapi.Update, 1)
	updates <- command(100, "/start", 6)
	close(updates)

	s.Run(context.Background(), updates)

	require.Len(t, api.texts(), 1)
	assert.Contains(t, api.texts()[0], "CrimeWatch officer relay")
}
