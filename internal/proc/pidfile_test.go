package proc

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deskwatch.pid")

	release, err := AcquirePidfile(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	release()
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestAcquireRejectsLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deskwatch.pid")

	// Our own pid is as live as it gets.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644))

	_, err := AcquirePidfile(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already running")
}

func TestAcquireTakesOverStalePidfile(t *testing.T) {
	cases := map[string]string{
		"dead pid":  "999999999",
		"garbage":   "не число",
		"empty":     "",
		"negative":  "-5",
		"pid zero":  "0",
		"spaces ok": "   999999999\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "deskwatch.pid")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			release, err := AcquirePidfile(path)
			require.NoError(t, err)
			defer release()

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Equal(t, strconv.Itoa(os.Getpid()), string(data))
		})
	}
}

func TestAcquireCreatesMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "deskwatch.pid")

	release, err := AcquirePidfile(path)
	require.NoError(t, err)
	defer release()

	_, err = os.Stat(path)
	require.NoError(t, err)
}
