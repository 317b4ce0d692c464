package action

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	cases := []Action{
		{Kind: SelectBoard, Board: "ARM_QA"},
		{Kind: SelectColumn, Column: "Ожидают тестирования"},
		{Kind: ViewTask, TaskKey: "UGC-7913"},
		{Kind: ViewTask, TaskKey: "UGC-7913", ReminderID: "ab12cd34"},
		{Kind: Claim, TaskKey: "UGC-8006", ReminderID: "ab12cd34"},
		{Kind: Dismiss, ReminderID: "ab12cd34"},
		{Kind: BackToColumns},
		{Kind: BackToReminder, ReminderID: "ab12cd34"},
	}
	for _, want := range cases {
		t.Run(want.Kind.String(), func(t *testing.T) {
			got, err := Parse(want.Encode())
			require.NoError(t, err)
			require.Equal(t, want, got)
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"take_UGC-1_reminder_abc", // old-style prefix payloads
		"b",
		"b|",
		"c|",
		"cl|UGC-1",
		"cl|UGC-1|",
		"cl||r1",
		"d|",
		"t|",
		"r|",
		"back|extra",
		"zz|what",
	}
	for _, data := range bad {
		if _, err := Parse(data); err == nil {
			t.Errorf("Parse(%q) should fail", data)
		}
	}
}

func TestEncodeFitsCallbackDataLimit(t *testing.T) {
	// Telegram rejects callback data over 64 bytes.
	a := Action{Kind: Claim, TaskKey: "UGC-12345", ReminderID: "ab12cd34"}
	if n := len(a.Encode()); n > 64 {
		t.Errorf("encoded claim action is %d bytes, limit 64", n)
	}
}
