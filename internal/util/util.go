package util

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"privateer/internal/logging"
)

func ArchiveName(target string) string {
	return target + ".tar"
}

// PartialArchiveName is the file an archive job writes before it succeeds.
func PartialArchiveName(target string) string {
	return "." + ArchiveName(target) + ".partial"
}

func LocalArchivePath(hostPath, target string) string {
	return filepath.Join(hostPath, ArchiveName(target))
}

// RemoteArchivePath joins with forward slashes regardless of the local OS.
func RemoteArchivePath(hostPath, target string) string {
	return path.Join(hostPath, ArchiveName(target))
}

func LockPath(hostName string) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("privateer-%s.lock", hostName))
}

func LogPath(logDir, command string, timestamp time.Time) string {
	return filepath.Join(logDir, fmt.Sprintf("%s-%s.log", command, timestamp.Format("2006-01-02")))
}

// QuoteNames renders names as 'a', 'b' for user-facing messages.
func QuoteNames(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return strings.Join(quoted, ", ")
}

// SetupLogging creates the directory of logPath and logs to it and to stderr.
func SetupLogging(logPath string) (*slog.Logger, *os.File, error) {
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logger, logFile, err := logging.NewLogger(logPath, os.Stderr)
	if err != nil {
		return nil, nil, err
	}

	return logger, logFile, nil
}
