package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchivePaths(t *testing.T) {
	tests := []struct {
		name       string
		hostPath   string
		target     string
		wantLocal  string
		wantRemote string
	}{
		{
			name:       "absolute path",
			hostPath:   "/srv/backups",
			target:     "orderly_volume",
			wantLocal:  "/srv/backups/orderly_volume.tar",
			wantRemote: "/srv/backups/orderly_volume.tar",
		},
		{
			name:       "trailing slash",
			hostPath:   "/srv/backups/",
			target:     "another_volume",
			wantLocal:  "/srv/backups/another_volume.tar",
			wantRemote: "/srv/backups/another_volume.tar",
		},
		{
			name:       "relative path",
			hostPath:   "./data",
			target:     "vol",
			wantLocal:  "data/vol.tar",
			wantRemote: "data/vol.tar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantLocal, LocalArchivePath(tt.hostPath, tt.target))
			assert.Equal(t, tt.wantRemote, RemoteArchivePath(tt.hostPath, tt.target))
		})
	}
}

func TestPartialArchiveName(t *testing.T) {
	assert.Equal(t, ".orderly_volume.tar.partial", PartialArchiveName("orderly_volume"))
}

func TestLogPath(t *testing.T) {
	got := LogPath("/var/log/privateer", "backup", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
	assert.Equal(t, "/var/log/privateer/backup-2024-01-15.log", got)
}

func TestLockPath(t *testing.T) {
	assert.Equal(t, filepath.Join(os.TempDir(), "privateer-annex.lock"), LockPath("annex"))
}

func TestQuoteNames(t *testing.T) {
	assert.Equal(t, "'orderly_volume', 'another_volume'", QuoteNames([]string{"orderly_volume", "another_volume"}))
	assert.Equal(t, "", QuoteNames(nil))
}

func TestSetupLogging(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "restore.log")

	logger, logFile, err := SetupLogging(logPath)
	require.NoError(t, err)
	defer logFile.Close()

	logger.Debug("Restore started", "host", "annex")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Restore started"`)
	assert.Contains(t, string(data), `"host":"annex"`)
}
