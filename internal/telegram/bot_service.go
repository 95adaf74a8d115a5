// Package telegram relays SOS alerts to officer chats and lets officers act on them
// with bot commands.
package telegram

import (
	"context"
	"errors"
	"strings"

	"crimewatch/backend/internal/config"
	"crimewatch/backend/internal/errs"
	"crimewatch/backend/internal/localization"
	"crimewatch/backend/internal/logger"
	"crimewatch/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

const (
	callbackProgress = "progress:"
	callbackResolve  = "resolve:"

	alertsListLimit = 5
)

// API is the part of *tgbotapi.BotAPI the relay uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// AlertStore is what officer commands read and change.
type AlertStore interface {
	ListAlerts(ctx context.Context, limit int) ([]models.SOSAlert, error)
	UpdateAlertStatus(ctx context.Context, alertID, status string, dispatchTeam *string) (*models.SOSAlert, error)
}

// BotService reads Telegram updates and runs officer commands.
type BotService struct {
	Bot       API
	Alerts    AlertStore
	Localizer *localization.Localizer

	allowed map[int64]bool
	log     *logrus.Entry
}

// NewBotAPI authorizes against Telegram.
func NewBotAPI(token string, log *logrus.Entry) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.WithField("account", bot.Self.UserName).Info("telegram bot authorized")
	return bot, nil
}

// NewBotService creates a BotService that only accepts commands from chatIDs.
func NewBotService(bot API, alerts AlertStore, loc *localization.Localizer, chatIDs []int64, log *logrus.Entry) *BotService {
	if log == nil {
		log = logger.Discard()
	}
	allowed := make(map[int64]bool, len(chatIDs))
	for _, id := range chatIDs {
		allowed[id] = true
	}
	return &BotService{
		Bot:       bot,
		Alerts:    alerts,
		Localizer: loc,
		allowed:   allowed,
		log:       log,
	}
}

// Run is the main loop for receiving Telegram updates.
func (s *BotService) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate dispatches one update.
func (s *BotService) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		s.handleCommand(ctx, update.Message)
	case update.CallbackQuery != nil:
		s.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

func (s *BotService) languageOf(u *tgbotapi.User) string {
	if u == nil {
		return localization.DefaultLanguage
	}
	return s.Localizer.Match(u.LanguageCode)
}

func (s *BotService) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := s.Bot.Send(msg); err != nil {
		s.log.WithError(err).WithField("chat_id", chatID).Error("failed to send telegram reply")
	}
}

func (s *BotService) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	lang := s.languageOf(msg.From)

	if !s.allowed[chatID] {
		s.reply(chatID, s.Localizer.GetString(lang, "not_authorized"))
		return
	}

	args := strings.Fields(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		s.reply(chatID, s.Localizer.GetString(lang, "start"))
	case "alerts":
		s.reply(chatID, s.alertsText(ctx, lang))
	case "progress":
		if len(args) == 0 {
			s.reply(chatID, s.Localizer.GetString(lang, "usage_progress"))
			return
		}
		var team *string
		if len(args) > 1 {
			t := strings.Join(args[1:], " ")
			team = &t
		}
		s.reply(chatID, s.setStatus(ctx, lang, args[0], config.StatusInProgress, team))
	case "resolve":
		if len(args) == 0 {
			s.reply(chatID, s.Localizer.GetString(lang, "usage_resolve"))
			return
		}
		s.reply(chatID, s.setStatus(ctx, lang, args[0], config.StatusResolved, nil))
	default:
		s.reply(chatID, s.Localizer.GetString(lang, "unknown_command"))
	}
}

func (s *BotService) alertsText(ctx context.Context, lang string) string {
	alerts, err := s.Alerts.ListAlerts(ctx, alertsListLimit)
	if err != nil {
		s.log.WithError(err).Error("failed to list alerts for telegram")
		return s.Localizer.GetString(lang, "update_failed")
	}
	if len(alerts) == 0 {
		return s.Localizer.GetString(lang, "alerts_empty")
	}

	lines := []string{s.Localizer.GetString(lang, "alerts_header")}
	for _, a := range alerts {
		lines = append(lines, s.Localizer.Format(lang, "alerts_line", a.Status, escapeMarkdown(a.ReportedBy), escapeMarkdown(a.Location), a.AlertID))
	}
	return strings.Join(lines, "\n")
}

// setStatus applies the change and returns the reply text.
func (s *BotService) setStatus(ctx context.Context, lang, alertID, status string, team *string) string {
	alert, err := s.Alerts.UpdateAlertStatus(ctx, alertID, status, team)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return s.Localizer.GetString(lang, "alert_not_found")
	case err != nil:
		s.log.WithError(err).WithField("alert_id", alertID).Error("telegram status update failed")
		return s.Localizer.GetString(lang, "update_failed")
	}
	return StatusText(s.Localizer, lang, alert)
}

func (s *BotService) handleCallbackQuery(ctx context.Context, q *tgbotapi.CallbackQuery) {
	// inline-mode callbacks carry no message, so the chat cannot be checked against the allow-list
	var chatID int64
	if q.Message != nil {
		chatID = q.Message.Chat.ID
	}
	text := s.callbackText(ctx, chatID, s.languageOf(q.From), q.Data)

	// Respond to the callback query to remove the "loading" state
	callback := tgbotapi.NewCallback(q.ID, stripMarkdown(text))
	if _, err := s.Bot.Request(callback); err != nil {
		s.log.WithError(err).Warn("failed to answer callback query")
	}
}

// callbackText runs an inline button action and returns the toast text.
func (s *BotService) callbackText(ctx context.Context, chatID int64, lang, data string) string {
	switch {
	case !s.allowed[chatID]:
		return s.Localizer.GetString(lang, "not_authorized")
	case strings.HasPrefix(data, callbackProgress):
		return s.setStatus(ctx, lang, strings.TrimPrefix(data, callbackProgress), config.StatusInProgress, nil)
	case strings.HasPrefix(data, callbackResolve):
		return s.setStatus(ctx, lang, strings.TrimPrefix(data, callbackResolve), config.StatusResolved, nil)
	default:
		return s.Localizer.GetString(lang, "unknown_command")
	}
}

var markdownStripper = strings.NewReplacer("\\", "", "*", "", "`", "", "_", "")

// stripMarkdown removes formatting for plain-text surfaces such as callback toasts.
func stripMarkdown(s string) string {
	return markdownStripper.Replace(s)
}
