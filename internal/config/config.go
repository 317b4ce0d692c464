package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultColumn      = "Ожидают тестирования"
	DefaultCheckEvery  = "5m"
	DefaultRemindEvery = "5m"
	DefaultStatusHost  = "127.0.0.1"
	DefaultStatusPort  = 18791
	DefaultLogLevel    = "info"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Tracker  TrackerConfig  `json:"tracker"`
	Monitor  MonitorConfig  `json:"monitor"`
	Status   StatusConfig   `json:"status"`
	LogFile  string         `json:"logFile,omitempty"`
	LogLevel string         `json:"logLevel,omitempty"`
}

type TelegramConfig struct {
	Token      string `json:"token"`
	WorkChatID int64  `json:"workChatID"`
}

type TrackerConfig struct {
	// BaseURL is the tracker web root, used for browse links.
	BaseURL string `json:"baseURL"`
	// Board names the monitored board; its API URL comes from boards.yaml.
	Board      string `json:"board"`
	CookieFile string `json:"cookieFile"`
	// RefreshCommand is run (via the shell) when the API answers 401; it
	// is expected to rewrite the cookie file.
	RefreshCommand string `json:"refreshCommand,omitempty"`
}

type MonitorConfig struct {
	Column string `json:"column"`
	// CheckEvery and RemindEvery accept a duration ("5m") or, for
	// CheckEvery, a cron expression.
	CheckEvery    string `json:"checkEvery"`
	RemindEvery   string `json:"remindEvery"`
	AnnounceStart bool   `json:"announceStart"`
}

type StatusConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func DefaultConfig() *Config {
	return &Config{
		Tracker: TrackerConfig{
			Board:      "ARM_QA",
			CookieFile: filepath.Join(ConfigDir(), "cookies.json"),
		},
		Monitor: MonitorConfig{
			Column:      DefaultColumn,
			CheckEvery:  DefaultCheckEvery,
			RemindEvery: DefaultRemindEvery,
		},
		Status: StatusConfig{
			Host: DefaultStatusHost,
			Port: DefaultStatusPort,
		},
		LogFile:  filepath.Join(ConfigDir(), "logs", "deskwatch.log"),
		LogLevel: DefaultLogLevel,
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".deskwatch")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func BoardsPath() string {
	return filepath.Join(ConfigDir(), "boards.yaml")
}

// LoadConfig reads config.json, layering env overrides on top. A .env in
// the working directory is loaded first, matching how the deployment has
// always carried its secrets.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if token := os.Getenv("DESKWATCH_BOT_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}
	if token := os.Getenv("BOT_TOKEN"); token != "" && cfg.Telegram.Token == "" {
		cfg.Telegram.Token = token
	}
	if chat := os.Getenv("DESKWATCH_WORK_CHAT_ID"); chat != "" {
		if parsed, err := strconv.ParseInt(chat, 10, 64); err == nil {
			cfg.Telegram.WorkChatID = parsed
		}
	}
	if chat := os.Getenv("WORK_CHAT_ID"); chat != "" && cfg.Telegram.WorkChatID == 0 {
		if parsed, err := strconv.ParseInt(chat, 10, 64); err == nil {
			cfg.Telegram.WorkChatID = parsed
		}
	}
	if url := os.Getenv("DESKWATCH_TRACKER_URL"); url != "" {
		cfg.Tracker.BaseURL = url
	}
	if board := os.Getenv("DESKWATCH_BOARD"); board != "" {
		cfg.Tracker.Board = board
	}
	if column := os.Getenv("DESKWATCH_COLUMN"); column != "" {
		cfg.Monitor.Column = column
	}
	if file := os.Getenv("DESKWATCH_COOKIE_FILE"); file != "" {
		cfg.Tracker.CookieFile = file
	}

	if cfg.Monitor.Column == "" {
		cfg.Monitor.Column = DefaultColumn
	}
	if cfg.Monitor.CheckEvery == "" {
		cfg.Monitor.CheckEvery = DefaultCheckEvery
	}
	if cfg.Monitor.RemindEvery == "" {
		cfg.Monitor.RemindEvery = DefaultRemindEvery
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}

type boardsFile struct {
	Boards map[string]string `yaml:"boards"`
}

// LoadBoards reads the board name → API URL map from boards.yaml. Env
// vars of the form DESKWATCH_BOARD_URL_<NAME> override or add entries,
// so a single-board deployment needs no file at all.
func LoadBoards(path string) (map[string]string, error) {
	boards := make(map[string]string)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read boards file: %w", err)
		}
	} else {
		var bf boardsFile
		if err := yaml.Unmarshal(data, &bf); err != nil {
			return nil, fmt.Errorf("parse boards file: %w", err)
		}
		for name, url := range bf.Boards {
			boards[name] = url
		}
	}

	for _, kv := range os.Environ() {
		const prefix = "DESKWATCH_BOARD_URL_"
		if len(kv) > len(prefix) && kv[:len(prefix)] == prefix {
			for i := len(prefix); i < len(kv); i++ {
				if kv[i] == '=' {
					boards[kv[len(prefix):i]] = kv[i+1:]
					break
				}
			}
		}
	}

	return boards, nil
}

// Validate checks the keys the bot cannot run without.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram token is not set (config or DESKWATCH_BOT_TOKEN)")
	}
	if c.Telegram.WorkChatID == 0 {
		return fmt.Errorf("work chat id is not set (config or DESKWATCH_WORK_CHAT_ID)")
	}
	if c.Tracker.Board == "" {
		return fmt.Errorf("tracker board is not set")
	}
	if c.Monitor.Column == "" {
		return fmt.Errorf("monitored column is not set")
	}
	return nil
}
