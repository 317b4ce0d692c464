// Package bot is the Telegram side of deskwatch: the long-polling
// transport plus the router that maps inline-button actions onto the
// reminder engine and the tracker.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/zxz-qa/deskwatch/internal/reminder"
	"github.com/zxz-qa/deskwatch/internal/tracker"
)

// TelegramAPI is the slice of tgbotapi the service uses (allows mocking).
type TelegramAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetSelf() tgbotapi.User
}

// tgWrapper adapts *tgbotapi.BotAPI to TelegramAPI.
type tgWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *tgWrapper) StopReceivingUpdates() { w.bot.StopReceivingUpdates() }

func (w *tgWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) { return w.bot.Send(c) }

func (w *tgWrapper) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return w.bot.Request(c)
}

func (w *tgWrapper) GetSelf() tgbotapi.User { return w.bot.Self }

// BotFactory creates TelegramAPI instances (allows mocking).
type BotFactory func(token string) (TelegramAPI, error)

var defaultBotFactory BotFactory = func(token string) (TelegramAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &tgWrapper{bot: bot}, nil
}

// Options wires the service's collaborators and destination chat.
type Options struct {
	Token      string
	WorkChatID int64
	// Boards feeds the /start board picker. All selections browse the
	// configured fetcher's board; the upstream API only serves one.
	Boards         map[string]string
	TrackerBaseURL string
	Fetcher        tracker.Fetcher
	Engine         *reminder.Engine
	Logger         *slog.Logger
}

// Service runs the Telegram polling loop and handles chat actions.
type Service struct {
	opts    Options
	api     TelegramAPI
	factory BotFactory
	log     *slog.Logger
	now     func() time.Time
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewService(opts Options) (*Service, error) {
	if opts.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if opts.WorkChatID == 0 {
		return nil, errors.New("work chat id is required")
	}
	return &Service{
		opts:    opts,
		factory: defaultBotFactory,
		log:     opts.Logger.With("component", "bot"),
		now:     time.Now,
		ctx:     context.Background(),
	}, nil
}

// SetFactory overrides the bot factory (for testing).
func (s *Service) SetFactory(f BotFactory) { s.factory = f }

// SetAPI sets the bot API directly (for testing).
func (s *Service) SetAPI(api TelegramAPI) { s.api = api }

func (s *Service) Start(ctx context.Context) error {
	api, err := s.factory(s.opts.Token)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	s.api = api
	s.log.Info("authorized", "bot", api.GetSelf().UserName)

	ctx, s.cancel = context.WithCancel(ctx)
	s.ctx = ctx

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := api.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update := <-updates:
				s.handleUpdate(update)
			case <-ctx.Done():
				return
			}
		}
	}()

	s.log.Info("polling started")
	return nil
}

func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.api != nil {
		s.api.StopReceivingUpdates()
	}
	s.log.Info("stopped")
}

func (s *Service) handleUpdate(update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		// Actions may run concurrently with each other and with the
		// monitor; the engine serializes shared state.
		go s.handleCallback(update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		s.handleCommand(update.Message)
	}
}

// Announce sends a plain text message to the work chat.
func (s *Service) Announce(text string) error {
	_, err := s.api.Send(tgbotapi.NewMessage(s.opts.WorkChatID, text))
	return err
}

func (s *Service) sendToWorkChat(text string, markup tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(s.opts.WorkChatID, text)
	if len(markup.InlineKeyboard) > 0 {
		msg.ReplyMarkup = markup
	}
	_, err := s.api.Send(msg)
	return err
}

// edit replaces a message's text and keyboard in place. Exactly one edit
// per handled action; a failed render never deletes the prior message.
func (s *Service) edit(chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) {
	var c tgbotapi.Chattable
	if len(markup.InlineKeyboard) > 0 {
		cfg := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)
		c = cfg
	} else {
		cfg := tgbotapi.NewEditMessageText(chatID, messageID, text)
		c = cfg
	}
	if _, err := s.api.Send(c); err != nil {
		s.log.Warn("edit message failed", "err", err)
	}
}

func (s *Service) editError(chatID int64, messageID int, text string) {
	s.edit(chatID, messageID, text, tgbotapi.InlineKeyboardMarkup{})
}

// answer sends the ephemeral callback acknowledgment toast.
func (s *Service) answer(callbackID, text string) {
	if _, err := s.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		s.log.Warn("answer callback failed", "err", err)
	}
}
