package restore

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"privateer/internal/checksum"
	"privateer/internal/config"
	"privateer/internal/host"
	"privateer/internal/manifest"
	"privateer/internal/remote"
	"privateer/internal/target"
	"privateer/internal/util"
)

// Restorer is the part of job.Archiver a restore needs.
type Restorer interface {
	Restore(ctx context.Context, t config.Target, dir string) error
}

type Deps struct {
	Archiver Restorer
	Dial     remote.Dialer
	// Notify receives one human-readable line per skipped target.
	Notify func(msg string)
}

type Status int

const (
	Restored Status = iota
	Skipped
	Failed
)

// Outcome is the result of restoring one target. Err is set only for Failed.
type Outcome struct {
	Target string
	Status Status
	Path   string
	Err    error
}

func restored(t config.Target, path string) Outcome {
	return Outcome{Target: t.Name, Status: Restored, Path: path}
}

func skipped(t config.Target, path string) Outcome {
	return Outcome{Target: t.Name, Status: Skipped, Path: path}
}

func failed(t config.Target, path string, err error) Outcome {
	return Outcome{Target: t.Name, Status: Failed, Path: path, Err: err}
}

// Run restores every target from h in order and returns the names restored.
// Targets without an archive are skipped with a notice. The first failure
// stops the run and is returned along with the names restored before it.
func Run(ctx context.Context, h *config.Host, targets []config.Target, deps Deps) ([]string, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("restore cancelled before start: %w", ctx.Err())
	}
	if deps.Notify == nil {
		deps.Notify = func(msg string) { slog.Warn(msg) }
	}

	slog.Info("Restore started", "host", h.Name, "hostType", h.Type, "targets", target.Names(targets))

	var restoreTarget func(config.Target) Outcome
	switch h.Type {
	case config.HostLocal:
		if err := host.CheckPath(ctx, h, deps.Dial); err != nil {
			return nil, err
		}
		m, err := manifest.Read(manifest.Path(h.Path))
		if err != nil {
			return nil, err
		}
		restoreTarget = func(t config.Target) Outcome {
			return restoreLocal(ctx, h, t, m, deps)
		}
	case config.HostRemote, config.HostS3:
		if h.Type == config.HostS3 && h.S3 != nil {
			if err := remote.ValidateStorageClass(string(h.S3.Class())); err != nil {
				return nil, fmt.Errorf("cannot restore from host %s: %w", h.Name, err)
			}
		}
		tr, err := deps.Dial(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to host %s: %w", h.Name, err)
		}
		defer tr.Close()

		if err := host.CheckPathWith(ctx, h, tr); err != nil {
			return nil, err
		}

		tempDir, err := os.MkdirTemp("", "privateer-restore-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp directory: %w", err)
		}
		defer func() {
			slog.Debug("Cleaning up temp directory", "path", tempDir)
			if err := os.RemoveAll(tempDir); err != nil {
				slog.Warn("Failed to remove temp directory", "path", tempDir, "error", err)
			}
		}()

		restoreTarget = func(t config.Target) Outcome {
			return restoreRemote(ctx, h, t, tr, tempDir, deps)
		}
	default:
		return nil, fmt.Errorf("unsupported host type %q", h.Type)
	}

	names := make([]string, 0, len(targets))
	for _, t := range targets {
		if ctx.Err() != nil {
			return names, fmt.Errorf("restore cancelled before %s: %w", t.Name, ctx.Err())
		}

		o := restoreTarget(t)
		switch o.Status {
		case Restored:
			names = append(names, o.Target)
			slog.Info(fmt.Sprintf("Restored %s to %s", o.Path, o.Target))
		case Skipped:
			deps.Notify(fmt.Sprintf("Backup path '%s' does not exist. Not restoring %s", o.Path, o.Target))
		case Failed:
			return names, o.Err
		}
	}

	slog.Info("Restore completed", "host", h.Name, "restored", names)
	return names, nil
}

func restoreLocal(ctx context.Context, h *config.Host, t config.Target, m *manifest.Manifest, deps Deps) Outcome {
	archivePath := util.LocalArchivePath(h.Path, t.Name)
	if _, err := os.Stat(archivePath); err != nil {
		if os.IsNotExist(err) {
			return skipped(t, archivePath)
		}
		return failed(t, archivePath, fmt.Errorf("failed to stat %s: %w", archivePath, err))
	}

	if e := m.Find(t.Name); e != nil && e.Blake3Hash != "" {
		if err := checksum.Verify(archivePath, e.Blake3Hash); err != nil {
			return failed(t, archivePath, fmt.Errorf("refusing to restore %s: %w", t.Name, err))
		}
		slog.Debug("BLAKE3 verified", "target", t.Name, "hash", e.Blake3Hash)
	}

	if err := deps.Archiver.Restore(ctx, t, h.Path); err != nil {
		return failed(t, archivePath, fmt.Errorf("failed to restore %s: %w", t.Name, err))
	}
	return restored(t, archivePath)
}

func restoreRemote(ctx context.Context, h *config.Host, t config.Target, tr remote.Transport, tempDir string, deps Deps) Outcome {
	remotePath := util.RemoteArchivePath(h.Path, t.Name)
	ok, err := tr.Probe(ctx, remotePath)
	if err != nil {
		return failed(t, remotePath, fmt.Errorf("failed to probe %s on host %s: %w", remotePath, h.Name, err))
	}
	if !ok {
		return skipped(t, remotePath)
	}

	localPath, err := tr.Fetch(ctx, remotePath, tempDir)
	if err != nil {
		return failed(t, remotePath, fmt.Errorf("failed to fetch %s from host %s: %w", remotePath, h.Name, err))
	}
	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove fetched archive", "path", localPath, "error", err)
		}
	}()

	if err := deps.Archiver.Restore(ctx, t, tempDir); err != nil {
		return failed(t, remotePath, fmt.Errorf("failed to restore %s: %w", t.Name, err))
	}
	return restored(t, remotePath)
}
