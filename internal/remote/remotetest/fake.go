// Package remotetest provides an in-memory remote.Transport for tests.
package remotetest

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"privateer/internal/config"
	"privateer/internal/remote"
)

// FakeTransport stores remote files in memory, keyed by remote path.
type FakeTransport struct {
	mu     sync.Mutex
	Dirs   map[string]bool
	Files  map[string][]byte
	Calls  []string
	Closed bool

	// DialErr, ProbeErr and FetchErr force failures of the matching operation.
	DialErr  error
	ProbeErr error
	FetchErr error
}

func NewFake() *FakeTransport {
	return &FakeTransport{Dirs: map[string]bool{}, Files: map[string][]byte{}}
}

// Dialer returns a remote.Dialer that always hands out f.
func (f *FakeTransport) Dialer() remote.Dialer {
	return func(_ context.Context, _ *config.Host) (remote.Transport, error) {
		if f.DialErr != nil {
			return nil, f.DialErr
		}
		return f, nil
	}
}

func (f *FakeTransport) record(call string) {
	f.Calls = append(f.Calls, call)
}

func (f *FakeTransport) ProbeDir(_ context.Context, dir string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("probe-dir " + dir)
	if f.ProbeErr != nil {
		return false, f.ProbeErr
	}
	return f.Dirs[dir], nil
}

func (f *FakeTransport) Probe(_ context.Context, remotePath string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("probe " + remotePath)
	if f.ProbeErr != nil {
		return false, f.ProbeErr
	}
	_, ok := f.Files[remotePath]
	return ok, nil
}

func (f *FakeTransport) Fetch(_ context.Context, remotePath, localDir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("fetch " + remotePath)
	if f.FetchErr != nil {
		return "", f.FetchErr
	}
	data, ok := f.Files[remotePath]
	if !ok {
		return "", fmt.Errorf("remote file not found: %s", remotePath)
	}
	localPath := filepath.Join(localDir, path.Base(remotePath))
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return "", err
	}
	return localPath, nil
}

func (f *FakeTransport) Push(_ context.Context, localPath, remotePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("push " + remotePath)
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	f.Files[remotePath] = data
	return nil
}

func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
