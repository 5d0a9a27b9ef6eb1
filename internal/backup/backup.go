package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"privateer/internal/config"
	"privateer/internal/host"
	"privateer/internal/manifest"
	"privateer/internal/remote"
	"privateer/internal/target"
	"privateer/internal/util"
)

// Archiver is the part of job.Archiver a backup needs.
type Archiver interface {
	Archive(ctx context.Context, t config.Target) (string, error)
	ArchiveTo(ctx context.Context, t config.Target, dir string) (string, error)
	ArchiveRemote(ctx context.Context, t config.Target, h *config.Host) error
}

type Deps struct {
	Archiver Archiver
	Dial     remote.Dialer
	Now      func() time.Time
}

// Run archives every target to h, one at a time in the given order. The
// first failure aborts the remaining targets.
func Run(ctx context.Context, h *config.Host, targets []config.Target, deps Deps) (bool, error) {
	if ctx.Err() != nil {
		return false, fmt.Errorf("backup cancelled before start: %w", ctx.Err())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	slog.Info("Backup started", "host", h.Name, "hostType", h.Type, "targets", target.Names(targets))

	var err error
	switch h.Type {
	case config.HostLocal:
		err = backupLocal(ctx, h, targets, deps)
	case config.HostRemote:
		err = backupRemote(ctx, h, targets, deps)
	case config.HostS3:
		err = backupS3(ctx, h, targets, deps)
	default:
		err = fmt.Errorf("unsupported host type %q", h.Type)
	}
	if err != nil {
		return false, err
	}

	slog.Info("Backup completed successfully!", "host", h.Name, "count", len(targets))
	return true, nil
}

// backupLocal lets the job write straight into the host directory.
func backupLocal(ctx context.Context, h *config.Host, targets []config.Target, deps Deps) error {
	if err := host.CheckPath(ctx, h, deps.Dial); err != nil {
		return err
	}

	for _, t := range targets {
		if ctx.Err() != nil {
			return fmt.Errorf("backup cancelled before %s: %w", t.Name, ctx.Err())
		}

		archivePath, err := deps.Archiver.ArchiveTo(ctx, t, h.Path)
		if err != nil {
			return fmt.Errorf("failed to back up %s: %w", t.Name, err)
		}

		e, err := manifest.Record(h.Path, h.Name, t.Name, archivePath, deps.Now())
		if err != nil {
			return fmt.Errorf("failed to record %s in manifest: %w", t.Name, err)
		}
		slog.Info("Backed up volume", "target", t.Name, "path", archivePath, "bytes", e.Size, "blake3", e.Blake3Hash)
	}
	return nil
}

// backupRemote leaves placement on the remote host to the job itself.
func backupRemote(ctx context.Context, h *config.Host, targets []config.Target, deps Deps) error {
	if err := host.CheckPath(ctx, h, deps.Dial); err != nil {
		return err
	}

	for _, t := range targets {
		if ctx.Err() != nil {
			return fmt.Errorf("backup cancelled before %s: %w", t.Name, ctx.Err())
		}

		if err := deps.Archiver.ArchiveRemote(ctx, t, h); err != nil {
			return fmt.Errorf("failed to back up %s: %w", t.Name, err)
		}
		slog.Info("Backed up volume", "target", t.Name, "host", h.Hostname, "path", util.RemoteArchivePath(h.Path, t.Name))
	}
	return nil
}

// backupS3 stages each archive locally and pushes it to the bucket.
func backupS3(ctx context.Context, h *config.Host, targets []config.Target, deps Deps) error {
	tr, err := deps.Dial(ctx, h)
	if err != nil {
		return fmt.Errorf("failed to connect to host %s: %w", h.Name, err)
	}
	defer tr.Close()

	if err := host.CheckPathWith(ctx, h, tr); err != nil {
		return err
	}

	for _, t := range targets {
		if ctx.Err() != nil {
			return fmt.Errorf("backup cancelled before %s: %w", t.Name, ctx.Err())
		}

		if err := stageAndPush(ctx, h, t, tr, deps); err != nil {
			return err
		}
	}
	return nil
}

func stageAndPush(ctx context.Context, h *config.Host, t config.Target, tr remote.Transport, deps Deps) error {
	archivePath, err := deps.Archiver.Archive(ctx, t)
	if err != nil {
		return fmt.Errorf("failed to back up %s: %w", t.Name, err)
	}
	defer func() {
		if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove staged archive", "path", archivePath, "error", err)
		}
	}()

	remotePath := util.RemoteArchivePath(h.Path, t.Name)
	if err := tr.Push(ctx, archivePath, remotePath); err != nil {
		return fmt.Errorf("failed to upload %s: %w", t.Name, err)
	}
	slog.Info("Backed up volume", "target", t.Name, "host", h.Name, "path", remotePath)
	return nil
}
