// Package action defines the tagged actions carried in Telegram callback
// data. Raw callback strings are decoded exactly once, at the transport
// boundary; the router dispatches on Kind instead of string prefixes.
package action

import (
	"fmt"
	"strings"
)

type Kind int

const (
	SelectBoard Kind = iota
	SelectColumn
	ViewTask
	Claim
	Dismiss
	BackToColumns
	BackToReminder
)

func (k Kind) String() string {
	switch k {
	case SelectBoard:
		return "select-board"
	case SelectColumn:
		return "select-column"
	case ViewTask:
		return "view-task"
	case Claim:
		return "claim"
	case Dismiss:
		return "dismiss"
	case BackToColumns:
		return "back-to-columns"
	case BackToReminder:
		return "back-to-reminder"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type Action struct {
	Kind       Kind
	Board      string
	Column     string
	TaskKey    string
	ReminderID string
}

// Wire format: short tag plus "|"-separated fields. Telegram caps
// callback data at 64 bytes, hence the terseness.
const sep = "|"

func (a Action) Encode() string {
	switch a.Kind {
	case SelectBoard:
		return strings.Join([]string{"b", a.Board}, sep)
	case SelectColumn:
		return strings.Join([]string{"c", a.Column}, sep)
	case ViewTask:
		return strings.Join([]string{"t", a.TaskKey, a.ReminderID}, sep)
	case Claim:
		return strings.Join([]string{"cl", a.TaskKey, a.ReminderID}, sep)
	case Dismiss:
		return strings.Join([]string{"d", a.ReminderID}, sep)
	case BackToColumns:
		return "back"
	case BackToReminder:
		return strings.Join([]string{"r", a.ReminderID}, sep)
	default:
		return ""
	}
}

// Parse decodes callback data into an Action. Unknown tags and missing
// fields are errors; stale buttons from older bot versions should fail
// loudly in logs rather than dispatch somewhere wrong.
func Parse(data string) (Action, error) {
	parts := strings.Split(data, sep)
	switch parts[0] {
	case "b":
		if len(parts) != 2 || parts[1] == "" {
			return Action{}, fmt.Errorf("malformed board action %q", data)
		}
		return Action{Kind: SelectBoard, Board: parts[1]}, nil
	case "c":
		if len(parts) != 2 || parts[1] == "" {
			return Action{}, fmt.Errorf("malformed column action %q", data)
		}
		return Action{Kind: SelectColumn, Column: parts[1]}, nil
	case "t":
		if len(parts) != 3 || parts[1] == "" {
			return Action{}, fmt.Errorf("malformed task action %q", data)
		}
		return Action{Kind: ViewTask, TaskKey: parts[1], ReminderID: parts[2]}, nil
	case "cl":
		if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
			return Action{}, fmt.Errorf("malformed claim action %q", data)
		}
		return Action{Kind: Claim, TaskKey: parts[1], ReminderID: parts[2]}, nil
	case "d":
		if len(parts) != 2 || parts[1] == "" {
			return Action{}, fmt.Errorf("malformed dismiss action %q", data)
		}
		return Action{Kind: Dismiss, ReminderID: parts[1]}, nil
	case "back":
		if len(parts) != 1 {
			return Action{}, fmt.Errorf("malformed back action %q", data)
		}
		return Action{Kind: BackToColumns}, nil
	case "r":
		if len(parts) != 2 || parts[1] == "" {
			return Action{}, fmt.Errorf("malformed reminder action %q", data)
		}
		return Action{Kind: BackToReminder, ReminderID: parts[1]}, nil
	default:
		return Action{}, fmt.Errorf("unknown action %q", data)
	}
}
