// Package render builds the texts and inline keyboards the bot sends.
// Everything here is a pure function of its inputs: no fetches, no shared
// state, so message layouts are unit-testable byte for byte.
package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/zxz-qa/deskwatch/internal/action"
	"github.com/zxz-qa/deskwatch/internal/reminder"
	"github.com/zxz-qa/deskwatch/internal/tracker"
)

const maxAlertButtons = 5

// NewTaskAlert renders the "new tasks appeared" notification. tasks is
// the column's current membership; the buttons show the most recently
// added slice of it, capped at maxAlertButtons.
func NewTaskAlert(oldCount, newCount int, tasks []tracker.Issue, now time.Time) (string, tgbotapi.InlineKeyboardMarkup) {
	diff := newCount - oldCount

	var sb strings.Builder
	sb.WriteString("🔔 Новые задачи на тестирование!\n\n")
	fmt.Fprintf(&sb, "📈 Добавлено: %d задач(и)\n", diff)
	fmt.Fprintf(&sb, "📊 Всего в колонке: %d\n", newCount)
	fmt.Fprintf(&sb, "📅 Время: %s", now.Format("15:04:05 02.01.2006"))

	recent := tasks
	if diff > 0 && diff <= len(tasks) {
		recent = tasks[len(tasks)-diff:]
	} else if len(tasks) > maxAlertButtons {
		recent = tasks[:maxAlertButtons]
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, t := range recent {
		label := fmt.Sprintf("📋 %s - %s", t.Key, truncate(t.Summary, 40))
		data := action.Action{Kind: action.ViewTask, TaskKey: t.Key}.Encode()
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, data)))
	}
	return sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Reminder renders one escalation message: tasks still waiting, who took
// what, a claim button per unclaimed waiting task and a persistent
// dismiss button.
func Reminder(v reminder.View, now time.Time) (string, tgbotapi.InlineKeyboardMarkup) {
	elapsed := int(now.Sub(v.StartedAt).Minutes())

	var sb strings.Builder
	sb.WriteString("⚠️ Возьмите задачу в работу!\n\n")
	fmt.Fprintf(&sb, "Задачи ожидают тестирования уже %d минут:\n", elapsed)
	for _, t := range v.Waiting {
		fmt.Fprintf(&sb, "📋 %s - %s\n", t.Key, t.Summary)
	}

	if len(v.Claims) > 0 {
		sb.WriteString("\n💼 Взяли в работу:\n")
		for _, key := range sortedClaimKeys(v.Claims) {
			c := v.Claims[key]
			fmt.Fprintf(&sb, "- %s: %s (%s)\n", key, c.By, c.At.Format("15:04"))
		}
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, t := range v.Unclaimed() {
		data := action.Action{Kind: action.Claim, TaskKey: t.Key, ReminderID: v.ID}.Encode()
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💼 Взять "+t.Key, data)))
	}
	dismiss := action.Action{Kind: action.Dismiss, ReminderID: v.ID}.Encode()
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🗑️ Удалить", dismiss)))

	return sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// BoardList renders the /start board picker.
func BoardList(boards map[string]string) (string, tgbotapi.InlineKeyboardMarkup) {
	names := make([]string, 0, len(boards))
	for name := range boards {
		names = append(names, name)
	}
	sort.Strings(names)

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, name := range names {
		data := action.Action{Kind: action.SelectBoard, Board: name}.Encode()
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(name, data)))
	}
	return "Выберите доску для просмотра:", tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ColumnList renders the column picker with task counts.
func ColumnList(snap *tracker.Snapshot) (string, tgbotapi.InlineKeyboardMarkup) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, col := range snap.Columns {
		label := fmt.Sprintf("%s (%d задач)", col.Name, col.TaskCount)
		data := action.Action{Kind: action.SelectColumn, Column: col.Name}.Encode()
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, data)))
	}
	return "📂 Выберите колонку для просмотра задач:", tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ColumnTasks renders the task list of one column with a back button.
func ColumnTasks(col tracker.Column, issues []tracker.Issue) (string, tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "на доске: %s - %d задач(а)\n", col.Name, col.TaskCount)
	for i, is := range issues {
		assignee := is.Assignee
		if assignee == "" {
			assignee = "не назначен"
		}
		fmt.Fprintf(&sb, "%2d. [%s] %s (👤 %s)\n", i+1, is.Key, is.Summary, assignee)
	}
	if len(issues) == 0 {
		sb.WriteString("Нет задач в этой колонке.\n")
	}
	return sb.String(), backToColumnsMarkup()
}

// TaskDetails renders one issue's detail view. reminderID routes the back
// button to the originating reminder message when the view was opened
// from one.
func TaskDetails(is tracker.Issue, reminderID string) (string, tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔹 %s — %s\n\n", is.Key, is.Summary)
	assignee := is.Assignee
	if assignee == "" {
		assignee = "не назначен"
	}
	fmt.Fprintf(&sb, "👤 Исполнитель: %s\n", assignee)
	if is.Description != "" {
		fmt.Fprintf(&sb, "\n📝 Описание:\n%s", truncate(is.Description, 500))
	}

	if reminderID != "" {
		data := action.Action{Kind: action.BackToReminder, ReminderID: reminderID}.Encode()
		return sb.String(), tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад к напоминанию", data)))
	}
	return sb.String(), backToColumnsMarkup()
}

// TaskLink renders the "open in tracker" message sent after a claim.
func TaskLink(baseURL, key string) string {
	return fmt.Sprintf("🔗 %s - открыть в Jira:\n%s/browse/%s", key, strings.TrimRight(baseURL, "/"), key)
}

func backToColumnsMarkup() tgbotapi.InlineKeyboardMarkup {
	data := action.Action{Kind: action.BackToColumns}.Encode()
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад к колонкам", data)))
}

func sortedClaimKeys(claims map[string]reminder.Claim) []string {
	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// truncate shortens s to at most n runes, appending an ellipsis. Rune
// aware: summaries and descriptions are mostly Cyrillic.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
