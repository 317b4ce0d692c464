package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

const refreshTimeout = 2 * time.Minute

// CommandRefresher re-acquires session cookies by running an external
// login helper (historically a headless-browser script) that rewrites
// the cookie file.
type CommandRefresher struct {
	Command string
	log     *slog.Logger
}

func NewCommandRefresher(command string, log *slog.Logger) *CommandRefresher {
	return &CommandRefresher{Command: command, log: log.With("component", "refresh")}
}

func (r *CommandRefresher) Refresh(ctx context.Context) error {
	if r.Command == "" {
		return errors.New("no refresh command configured")
	}

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	r.log.Info("running credential refresh", "command", r.Command)
	cmd := exec.CommandContext(ctx, "sh", "-c", r.Command)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("refresh command failed: %w: %s", err, out)
	}
	r.log.Info("credential refresh finished")
	return nil
}
