package host

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"privateer/internal/config"
	"privateer/internal/remote"
)

// UnavailableError reports a storage host whose base path is missing.
type UnavailableError struct {
	Path string
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("Host path '%s' does not exist. Either make directory or fix config.", e.Path)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// CheckPath confirms that the base path of h exists. Local hosts are checked
// on the filesystem, other hosts through a Transport opened with dial. A
// channel that cannot be established is returned as-is, not as
// UnavailableError.
func CheckPath(ctx context.Context, h *config.Host, dial remote.Dialer) error {
	if h.Type == config.HostLocal {
		if _, err := os.Stat(h.Path); err != nil {
			return &UnavailableError{Path: h.Path, Err: err}
		}
		slog.Debug("Host path exists", "host", h.Name, "path", h.Path)
		return nil
	}

	t, err := dial(ctx, h)
	if err != nil {
		return fmt.Errorf("failed to connect to host %s: %w", h.Name, err)
	}
	defer t.Close()

	return CheckPathWith(ctx, h, t)
}

// CheckPathWith is CheckPath over an already open Transport.
func CheckPathWith(ctx context.Context, h *config.Host, t remote.Transport) error {
	ok, err := t.ProbeDir(ctx, h.Path)
	if err != nil {
		return fmt.Errorf("failed to probe host %s: %w", h.Name, err)
	}
	if !ok {
		return &UnavailableError{Path: h.Path}
	}
	slog.Debug("Host path exists", "host", h.Name, "path", h.Path)
	return nil
}
