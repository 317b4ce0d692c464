// Package proc guards against two bot processes polling the same
// Telegram token, which makes getUpdates fight over messages.
package proc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// AcquirePidfile claims path for the current process. If the file names
// a still-running process, the caller must not start. A stale pidfile
// (dead process, unreadable content) is taken over silently.
func AcquirePidfile(path string) (release func(), err error) {
	if data, err := os.ReadFile(path); err == nil {
		if pid, perr := strconv.Atoi(strings.TrimSpace(string(data))); perr == nil && pidAlive(pid) {
			return nil, fmt.Errorf("another instance is already running (pid %d)", pid)
		}
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create pidfile dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return nil, fmt.Errorf("write pidfile: %w", err)
	}

	return func() { _ = os.Remove(path) }, nil
}

// pidAlive reports whether a process with the given pid exists. Signal 0
// performs the existence check without delivering anything.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
