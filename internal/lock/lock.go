package lock

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry is the content of a host lock file.
type Entry struct {
	Pid       int    `yaml:"pid"`
	Host      string `yaml:"host"`
	Command   string `yaml:"command"`
	StartedAt string `yaml:"started_at"`
}

// HeldError reports a lock owned by another live process.
type HeldError struct {
	Path  string
	Owner Entry
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("host %s is busy: %s already running as pid %d (started %s)",
		e.Owner.Host, e.Owner.Command, e.Owner.Pid, e.Owner.StartedAt)
}

func readLock(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entry Entry
	if err := yaml.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse lock file %s: %w", path, err)
	}
	return &entry, nil
}

func writeLock(path string, entry *Entry) error {
	data, err := yaml.Marshal(entry)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || err != syscall.ESRCH
}

// Acquire takes the lock at lockPath for a backup or restore against host.
// A lock left behind by a dead process is taken over. The returned release
// function is safe to call more than once.
func Acquire(lockPath, host, command string) (func() error, error) {
	existing, err := readLock(lockPath)
	if err != nil {
		return nil, err
	}
	if existing != nil && isProcessAlive(existing.Pid) {
		return nil, &HeldError{Path: lockPath, Owner: *existing}
	}

	entry := &Entry{
		Pid:       os.Getpid(),
		Host:      host,
		Command:   command,
		StartedAt: time.Now().Format(time.RFC3339),
	}
	if err := writeLock(lockPath, entry); err != nil {
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	return func() error {
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}, nil
}
