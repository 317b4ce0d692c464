package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv points HOME at a temp dir and clears every override the
// loader consults.
func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"DESKWATCH_BOT_TOKEN", "BOT_TOKEN",
		"DESKWATCH_WORK_CHAT_ID", "WORK_CHAT_ID",
		"DESKWATCH_TRACKER_URL", "DESKWATCH_BOARD",
		"DESKWATCH_COLUMN", "DESKWATCH_COOKIE_FILE",
	} {
		t.Setenv(key, "")
	}
	return home
}

func TestLoadConfigDefaults(t *testing.T) {
	home := isolateEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "Ожидают тестирования", cfg.Monitor.Column)
	assert.Equal(t, "5m", cfg.Monitor.CheckEvery)
	assert.Equal(t, "5m", cfg.Monitor.RemindEvery)
	assert.Equal(t, "ARM_QA", cfg.Tracker.Board)
	assert.Equal(t, filepath.Join(home, ".deskwatch", "cookies.json"), cfg.Tracker.CookieFile)
	assert.Equal(t, 18791, cfg.Status.Port)
	assert.Empty(t, cfg.Telegram.Token)
}

func TestLoadConfigFromFile(t *testing.T) {
	home := isolateEnv(t)
	dir := filepath.Join(home, ".deskwatch")
	require.NoError(t, os.MkdirAll(dir, 0755))

	content := `{
	  "telegram": {"token": "123:abc", "workChatID": -100500},
	  "tracker": {"baseURL": "https://jira.corp", "board": "UGC"},
	  "monitor": {"column": "Ожидают тестирования", "checkEvery": "2m", "remindEvery": "10m"}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0644))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, int64(-100500), cfg.Telegram.WorkChatID)
	assert.Equal(t, "UGC", cfg.Tracker.Board)
	assert.Equal(t, "2m", cfg.Monitor.CheckEvery)
	assert.Equal(t, "10m", cfg.Monitor.RemindEvery)
}

func TestLoadConfigMalformedFile(t *testing.T) {
	home := isolateEnv(t)
	dir := filepath.Join(home, ".deskwatch")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{"), 0644))

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DESKWATCH_BOT_TOKEN", "env-token")
	t.Setenv("DESKWATCH_WORK_CHAT_ID", "-4242")
	t.Setenv("DESKWATCH_TRACKER_URL", "https://jira.env")
	t.Setenv("DESKWATCH_BOARD", "UGC")
	t.Setenv("DESKWATCH_COLUMN", "Готово к тесту")
	t.Setenv("DESKWATCH_COOKIE_FILE", "/tmp/c.json")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, int64(-4242), cfg.Telegram.WorkChatID)
	assert.Equal(t, "https://jira.env", cfg.Tracker.BaseURL)
	assert.Equal(t, "UGC", cfg.Tracker.Board)
	assert.Equal(t, "Готово к тесту", cfg.Monitor.Column)
	assert.Equal(t, "/tmp/c.json", cfg.Tracker.CookieFile)
}

func TestLoadConfigLegacyEnvNames(t *testing.T) {
	isolateEnv(t)
	t.Setenv("BOT_TOKEN", "legacy-token")
	t.Setenv("WORK_CHAT_ID", "77")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "legacy-token", cfg.Telegram.Token)
	assert.Equal(t, int64(77), cfg.Telegram.WorkChatID)

	// Prefixed names win over the legacy ones.
	t.Setenv("DESKWATCH_BOT_TOKEN", "new-token")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "new-token", cfg.Telegram.Token)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	isolateEnv(t)

	cfg := DefaultConfig()
	cfg.Telegram.Token = "123:abc"
	cfg.Telegram.WorkChatID = 9000
	require.NoError(t, SaveConfig(cfg))

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "123:abc", loaded.Telegram.Token)
	assert.Equal(t, int64(9000), loaded.Telegram.WorkChatID)
}

func TestLoadBoardsFromYAML(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "boards.yaml")
	content := "boards:\n  ARM_QA: https://jira.corp/rest/board/1\n  UGC: https://jira.corp/rest/board/2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	boards, err := LoadBoards(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"ARM_QA": "https://jira.corp/rest/board/1",
		"UGC":    "https://jira.corp/rest/board/2",
	}, boards)
}

func TestLoadBoardsMissingFileIsEmpty(t *testing.T) {
	isolateEnv(t)
	boards, err := LoadBoards(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, boards)
}

func TestLoadBoardsEnvEntries(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "boards.yaml")
	require.NoError(t, os.WriteFile(path, []byte("boards:\n  ARM_QA: https://file.example\n"), 0644))

	t.Setenv("DESKWATCH_BOARD_URL_ARM_QA", "https://env.example")
	t.Setenv("DESKWATCH_BOARD_URL_UGC", "https://env.example/ugc")

	boards, err := LoadBoards(path)
	require.NoError(t, err)
	// Env overrides the file entry and adds a new board.
	assert.Equal(t, "https://env.example", boards["ARM_QA"])
	assert.Equal(t, "https://env.example/ugc", boards["UGC"])
}

func TestLoadBoardsMalformedYAML(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "boards.yaml")
	require.NoError(t, os.WriteFile(path, []byte("boards: [broken"), 0644))

	_, err := LoadBoards(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, cfg.Validate(), "token missing")

	cfg.Telegram.Token = "123:abc"
	require.Error(t, cfg.Validate(), "chat id missing")

	cfg.Telegram.WorkChatID = -100500
	require.NoError(t, cfg.Validate())

	cfg.Monitor.Column = ""
	require.Error(t, cfg.Validate())
}
