package telegram

import (
	"strings"
	"sync"

	"crimewatch/backend/internal/changefeed"
	"crimewatch/backend/internal/localization"
	"crimewatch/backend/internal/logger"
	"crimewatch/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// ClientID is the hub id of the relay. There is one per process.
const ClientID = "telegram-relay"

var alertsTable = models.SOSAlert{}.TableName()

// Client relays alert events from the hub to the officer chats. It implements hub.Client.
type Client struct {
	ChatIDs   []int64
	Bot       API
	Localizer *localization.Localizer
	Lang      string
	Send      chan changefeed.Event

	log       *logrus.Entry
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(bot API, chatIDs []int64, loc *localization.Localizer, log *logrus.Entry) *Client {
	if log == nil {
		log = logger.Discard()
	}
	return &Client{
		ChatIDs:   chatIDs,
		Bot:       bot,
		Localizer: loc,
		Lang:      localization.DefaultLanguage,
		Send:      make(chan changefeed.Event, 32),
		log:       log.WithField("client", ClientID),
		done:      make(chan struct{}),
	}
}

func (c *Client) GetID() string                           { return ClientID }
func (c *Client) GetFeed() models.Feed                    { return models.Feed{Role: models.RoleOfficer} }
func (c *Client) GetSendChannel() chan<- changefeed.Event { return c.Send }

// Run starts the write pump. Commands are read centrally by BotService.
func (c *Client) Run() {
	go c.writePump()
}

func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) writePump() {
	defer c.log.Debug("telegram relay stopped")

	for {
		select {
		case <-c.done:
			return
		case e := <-c.Send:
			c.relay(e)
		}
	}
}

// relay posts new alerts and status changes. Officer notification rows repeat the alert
// and are not forwarded.
func (c *Client) relay(e changefeed.Event) {
	if e.Table != alertsTable {
		return
	}
	var alert models.SOSAlert
	if err := e.Decode(&alert); err != nil || alert.AlertID == "" {
		c.log.WithError(err).Warn("skipping undecodable alert event")
		return
	}

	for _, chatID := range c.ChatIDs {
		var msg tgbotapi.MessageConfig
		if e.Type == changefeed.Insert {
			msg = tgbotapi.NewMessage(chatID, AlertText(c.Localizer, c.Lang, &alert))
			msg.ReplyMarkup = alertKeyboard(c.Localizer, c.Lang, alert.AlertID)
		} else {
			msg = tgbotapi.NewMessage(chatID, StatusText(c.Localizer, c.Lang, &alert))
		}
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := c.Bot.Send(msg); err != nil {
			c.log.WithError(err).WithField("chat_id", chatID).Error("failed to relay alert")
		}
	}
}

// AlertText renders a new alert for an officer chat.
func AlertText(loc *localization.Localizer, lang string, a *models.SOSAlert) string {
	message := loc.GetString(lang, "no_message")
	if a.Message != nil && strings.TrimSpace(*a.Message) != "" {
		message = escapeMarkdown(*a.Message)
	}
	contact := a.ContactInfo
	if contact == "" {
		contact = "-"
	}
	text := loc.Format(lang, "alert_new",
		escapeMarkdown(a.Location),
		escapeMarkdown(a.ReportedBy),
		escapeMarkdown(contact),
		message,
		a.MapRedirectURL,
		a.AlertID,
	)
	if a.VoiceRecording != nil && *a.VoiceRecording != "" {
		text += "\n" + loc.Format(lang, "alert_voice", *a.VoiceRecording)
	}
	return text
}

// StatusText renders a status change.
func StatusText(loc *localization.Localizer, lang string, a *models.SOSAlert) string {
	if a.DispatchTeam != nil && *a.DispatchTeam != "" {
		return loc.Format(lang, "alert_status_team", a.AlertID, a.Status, escapeMarkdown(*a.DispatchTeam))
	}
	return loc.Format(lang, "alert_status", a.AlertID, a.Status)
}

func alertKeyboard(loc *localization.Localizer, lang, alertID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(loc.GetString(lang, "button_progress"), callbackProgress+alertID),
			tgbotapi.NewInlineKeyboardButtonData(loc.GetString(lang, "button_resolve"), callbackResolve+alertID),
		),
	)
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escapeMarkdown escapes user text for the legacy Markdown parse mode.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
