package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/zxz-qa/deskwatch/internal/config"
	"github.com/zxz-qa/deskwatch/internal/gateway"
	"github.com/zxz-qa/deskwatch/internal/logging"
	"github.com/zxz-qa/deskwatch/internal/proc"
	"github.com/zxz-qa/deskwatch/internal/tracker"
)

var rootCmd = &cobra.Command{
	Use:   "deskwatch",
	Short: "deskwatch - tracker column monitor with Telegram reminders",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot: monitoring, reminders and chat handlers",
	RunE:  runRun,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch the board once and print columns with task counts",
	RunE:  runCheck,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the running bot's status endpoint",
	RunE:  runStatus,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Write a default config file",
	RunE:  runOnboard,
}

func init() {
	rootCmd.AddCommand(runCmd, checkCmd, statusCmd, onboardCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	log, err := logging.Setup(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logging.CloseFile() }()

	release, err := proc.AcquirePidfile(filepath.Join(config.ConfigDir(), "deskwatch.pid"))
	if err != nil {
		return err
	}
	defer release()

	g, err := gateway.New(cfg, log)
	if err != nil {
		return err
	}
	return g.Run(cmd.Context())
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log, err := logging.Setup("", cfg.LogLevel)
	if err != nil {
		return err
	}

	boards, err := config.LoadBoards(config.BoardsPath())
	if err != nil {
		return err
	}
	apiURL := boards[cfg.Tracker.Board]
	if apiURL == "" {
		return fmt.Errorf("no API URL for board %q", cfg.Tracker.Board)
	}

	cookies := tracker.NewCookieStore(cfg.Tracker.CookieFile, log)
	refresher := tracker.NewCommandRefresher(cfg.Tracker.RefreshCommand, log)
	client := tracker.NewClient(apiURL, cookies, refresher, log)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	snap, err := client.Fetch(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Доска %s:\n", cfg.Tracker.Board)
	for _, col := range snap.Columns {
		marker := " "
		if col.Name == cfg.Monitor.Column {
			marker = "*"
		}
		fmt.Printf("%s %-35s %d задач\n", marker, col.Name, col.TaskCount)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s:%d/api/status", cfg.Status.Host, cfg.Status.Port)
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		return fmt.Errorf("bot not reachable at %s (is it running?): %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var pretty json.RawMessage = body
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	path := config.ConfigPath()
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists: %s\n", path)
		return nil
	}

	if err := config.SaveConfig(config.DefaultConfig()); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Fill in telegram.token, telegram.workChatID and add your board URL to boards.yaml:")
	fmt.Printf("  %s\n", config.BoardsPath())
	return nil
}
