package bot

import (
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/zxz-qa/deskwatch/internal/action"
	"github.com/zxz-qa/deskwatch/internal/monitor"
	"github.com/zxz-qa/deskwatch/internal/reminder"
	"github.com/zxz-qa/deskwatch/internal/render"
)

const (
	msgFetchError      = "❌ Ошибка получения данных с сервера"
	msgColumnMissing   = "❌ Колонка не найдена"
	msgReminderGone    = "❌ Напоминание больше не активно"
	msgTaskLoadError   = "❌ Ошибка загрузки задачи"
	msgDeleteError     = "❌ Ошибка при удалении уведомления"
	msgUnknownAction   = "❌ Неизвестное действие"
	msgReminderDeleted = "🗑️ Уведомление удалено!"
)

// NotifyIncrease sends the new-task alert to the work chat and starts a
// reminder tracking every task currently in the column. Called from the
// monitor's tick goroutine.
func (s *Service) NotifyIncrease(res monitor.DiffResult) {
	text, markup := render.NewTaskAlert(res.OldCount, res.NewCount, res.NewTasks, s.now())
	if err := s.sendToWorkChat(text, markup); err != nil {
		s.log.Error("send alert failed", "err", err)
		return
	}

	if len(res.NewTasks) == 0 {
		return
	}
	keys := make([]string, len(res.NewTasks))
	for i, t := range res.NewTasks {
		keys[i] = t.Key
	}
	s.opts.Engine.Create(keys)
}

// SendReminder posts one escalation message. Called from the engine's
// timer goroutines.
func (s *Service) SendReminder(v reminder.View) {
	text, markup := render.Reminder(v, s.now())
	if err := s.sendToWorkChat(text, markup); err != nil {
		s.log.Error("send reminder failed", "err", err, "reminder", v.ID)
	}
}

func (s *Service) handleCommand(msg *tgbotapi.Message) {
	if msg.Command() != "start" {
		return
	}
	s.log.Info("start command", "chat", msg.Chat.ID)
	text, markup := render.BoardList(s.opts.Boards)
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyMarkup = markup
	if _, err := s.api.Send(reply); err != nil {
		s.log.Warn("send board list failed", "err", err)
	}
}

// handleCallback decodes the raw callback payload once and dispatches on
// the action kind. Collaborator failures degrade to a user-visible error
// text; they never crash the router or leave a half-updated message.
func (s *Service) handleCallback(cb *tgbotapi.CallbackQuery) {
	act, err := action.Parse(cb.Data)
	if err != nil {
		s.log.Warn("bad callback payload", "data", cb.Data, "err", err)
		s.answer(cb.ID, msgUnknownAction)
		return
	}

	s.log.Info("chat action", "kind", act.Kind.String(), "from", cb.From.FirstName)

	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID

	switch act.Kind {
	case action.SelectBoard, action.BackToColumns:
		s.showColumns(cb.ID, chatID, messageID)
	case action.SelectColumn:
		s.showColumnTasks(cb.ID, chatID, messageID, act.Column)
	case action.ViewTask:
		s.showTaskDetails(cb.ID, chatID, messageID, act.TaskKey, act.ReminderID)
	case action.BackToReminder:
		s.showReminder(cb.ID, chatID, messageID, act.ReminderID)
	case action.Claim:
		s.claimTask(cb, chatID, messageID, act.ReminderID, act.TaskKey)
	case action.Dismiss:
		s.dismissReminder(cb.ID, chatID, messageID, act.ReminderID)
	}
}

func (s *Service) showColumns(callbackID string, chatID int64, messageID int) {
	snap, err := s.opts.Fetcher.Fetch(s.ctx)
	if err != nil {
		s.log.Warn("fetch for column list failed", "err", err)
		s.editError(chatID, messageID, msgFetchError)
		return
	}
	text, markup := render.ColumnList(snap)
	s.edit(chatID, messageID, text, markup)
	s.answer(callbackID, "")
}

func (s *Service) showColumnTasks(callbackID string, chatID int64, messageID int, column string) {
	snap, err := s.opts.Fetcher.Fetch(s.ctx)
	if err != nil {
		s.log.Warn("fetch for task list failed", "err", err)
		s.editError(chatID, messageID, msgFetchError)
		return
	}
	col, ok := snap.Column(column)
	if !ok {
		s.editError(chatID, messageID, msgColumnMissing)
		return
	}
	text, markup := render.ColumnTasks(col, snap.MemberIssues(col))
	s.edit(chatID, messageID, text, markup)
	s.answer(callbackID, "")
}

func (s *Service) showTaskDetails(callbackID string, chatID int64, messageID int, taskKey, reminderID string) {
	snap, err := s.opts.Fetcher.Fetch(s.ctx)
	if err != nil {
		s.log.Warn("fetch for task details failed", "err", err)
		s.answer(callbackID, msgTaskLoadError)
		return
	}
	is, ok := snap.IssueByKey(taskKey)
	if !ok {
		s.answer(callbackID, msgTaskLoadError)
		return
	}
	text, markup := render.TaskDetails(is, reminderID)
	s.edit(chatID, messageID, text, markup)
	s.answer(callbackID, "")
}

func (s *Service) showReminder(callbackID string, chatID int64, messageID int, reminderID string) {
	v, err := s.opts.Engine.View(reminderID)
	switch {
	case errors.Is(err, reminder.ErrInactive):
		s.answer(callbackID, msgReminderGone)
		return
	case err != nil:
		s.log.Warn("reminder view failed", "reminder", reminderID, "err", err)
		s.answer(callbackID, msgFetchError)
		return
	}
	text, markup := render.Reminder(*v, s.now())
	s.edit(chatID, messageID, text, markup)
	s.answer(callbackID, "")
}

func (s *Service) claimTask(cb *tgbotapi.CallbackQuery, chatID int64, messageID int, reminderID, taskKey string) {
	claimant := cb.From.FirstName
	if claimant == "" {
		claimant = "Пользователь"
	}

	res, v, err := s.opts.Engine.Claim(reminderID, taskKey, claimant)
	switch res.Status {
	case reminder.ClaimInactive:
		s.answer(cb.ID, msgReminderGone)
		return
	case reminder.ClaimAlreadyTaken:
		s.answer(cb.ID, "⚠️ Задачу уже взял "+res.By)
		return
	}

	// Claim recorded. Link first, toast second, then the in-place update.
	if sendErr := s.Announce(render.TaskLink(s.opts.TrackerBaseURL, taskKey)); sendErr != nil {
		s.log.Warn("send task link failed", "err", sendErr)
	}
	s.answer(cb.ID, "💼 Взяли задачу "+taskKey+"!")

	if err != nil || v == nil {
		// Claim stands, but the membership fetch failed: leave the old
		// message; the next escalation repaints it.
		s.log.Warn("claim recorded but message not updated", "reminder", reminderID, "err", err)
		return
	}
	text, markup := render.Reminder(*v, s.now())
	s.edit(chatID, messageID, text, markup)
}

func (s *Service) dismissReminder(callbackID string, chatID int64, messageID int, reminderID string) {
	s.opts.Engine.Stop(reminderID)
	s.answer(callbackID, msgReminderDeleted)

	del := tgbotapi.NewDeleteMessage(chatID, messageID)
	if _, err := s.api.Request(del); err != nil {
		s.log.Warn("delete reminder message failed", "err", err)
		s.editError(chatID, messageID, msgDeleteError)
	}
}
