package job

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"privateer/internal/config"
	"privateer/internal/util"
)

const (
	dataMount    = "/data"
	stagingMount = "/backup"
	sshMount     = "/root/.ssh"
)

// remoteArchiveScript tars the volume inside the job and copies it to the
// storage host named by the SSH_* environment.
const remoteArchiveScript = `set -e
tar cf "/tmp/$ARCHIVE_NAME" -C /data .
scp -o BatchMode=yes -P "$SSH_PORT" "/tmp/$ARCHIVE_NAME" "$SSH_USER@$SSH_HOST_NAME:$SSH_REMOTE_PATH/$ARCHIVE_NAME"`

type ArchiverOptions struct {
	Image       string
	RemoteImage string
	StagingDir  string
	SSHDir      string
}

// Archiver turns volumes into tar archives and back by running jobs that
// mount the volume and a staging directory.
type Archiver struct {
	runner Runner
	opts   ArchiverOptions
}

func NewArchiver(runner Runner, opts ArchiverOptions) *Archiver {
	return &Archiver{runner: runner, opts: opts}
}

// Archive writes <staging>/<name>.tar and returns its path.
func (a *Archiver) Archive(ctx context.Context, t config.Target) (string, error) {
	return a.ArchiveTo(ctx, t, a.opts.StagingDir)
}

// ArchiveTo writes <dir>/<name>.tar and returns its path. The job writes to a
// hidden partial file that replaces <name>.tar only once the job succeeds, so
// a failed job leaves any previous archive untouched.
func (a *Archiver) ArchiveTo(ctx context.Context, t config.Target, dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}

	name := util.ArchiveName(t.Name)
	partial := util.PartialArchiveName(t.Name)
	archivePath := filepath.Join(dir, name)
	partialPath := filepath.Join(dir, partial)
	spec := Spec{
		Image:   a.opts.Image,
		Command: []string{"tar", "cf", stagingMount + "/" + partial, "-C", dataMount, "."},
		Mounts:  volumeMounts(t, dir),
	}

	slog.Info("Archiving volume", "target", t.Name, "path", archivePath)
	if err := a.run(ctx, t, "archive", spec); err != nil {
		removePartial(partialPath)
		return "", err
	}
	if err := os.Rename(partialPath, archivePath); err != nil {
		removePartial(partialPath)
		return "", fmt.Errorf("failed to move archive into place: %w", err)
	}
	return archivePath, nil
}

func removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove partial archive", "path", path, "error", err)
	}
}

// ArchiveRemote runs a job that places <name>.tar on the remote host h itself.
func (a *Archiver) ArchiveRemote(ctx context.Context, t config.Target, h *config.Host) error {
	name := util.ArchiveName(t.Name)
	spec := Spec{
		Image:      a.opts.RemoteImage,
		Entrypoint: []string{"sh", "-c"},
		Command:    []string{remoteArchiveScript},
		Mounts: []Mount{
			{Type: MountVolume, Source: t.Name, Target: dataMount},
			{Type: MountBind, Source: a.opts.SSHDir, Target: sshMount, ReadOnly: true},
		},
		Env: map[string]string{
			"SSH_HOST_NAME":   h.Hostname,
			"SSH_REMOTE_PATH": h.Path,
			"SSH_USER":        h.User,
			"SSH_PORT":        strconv.Itoa(h.SSHPort()),
			"ARCHIVE_NAME":    name,
		},
	}

	slog.Info("Archiving volume to remote host", "target", t.Name, "host", h.Hostname, "path", util.RemoteArchivePath(h.Path, t.Name))
	return a.run(ctx, t, "archive", spec)
}

// Restore extracts <dir>/<name>.tar into the volume, overwriting existing files.
func (a *Archiver) Restore(ctx context.Context, t config.Target, dir string) error {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	name := util.ArchiveName(t.Name)
	archivePath := filepath.Join(dir, name)
	if _, err := os.Stat(archivePath); err != nil {
		return &Error{Target: t.Name, Op: "restore", ExitCode: -1, Err: err}
	}

	spec := Spec{
		Image:   a.opts.Image,
		Command: []string{"tar", "xf", stagingMount + "/" + name, "-C", dataMount},
		Mounts:  volumeMounts(t, dir),
	}

	slog.Info("Restoring volume", "target", t.Name, "path", archivePath)
	return a.run(ctx, t, "restore", spec)
}

func (a *Archiver) run(ctx context.Context, t config.Target, op string, spec Spec) error {
	res, err := a.runner.Run(ctx, spec)
	if err != nil {
		return &Error{Target: t.Name, Op: op, ExitCode: -1, Err: err}
	}
	if res.ExitCode != 0 {
		slog.Error("Job failed", "target", t.Name, "op", op, "exitCode", res.ExitCode, "output", res.Output)
		return &Error{Target: t.Name, Op: op, ExitCode: res.ExitCode, Output: res.Output}
	}
	return nil
}

func volumeMounts(t config.Target, dir string) []Mount {
	return []Mount{
		{Type: MountVolume, Source: t.Name, Target: dataMount},
		{Type: MountBind, Source: dir, Target: stagingMount},
	}
}
