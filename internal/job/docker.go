package job

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
)

const maxOutputBytes = 64 * 1024

// Docker runs jobs as containers on the Docker daemon found through the
// standard DOCKER_* environment. A client is opened per job.
type Docker struct {
	opts []client.Opt
}

// NewDocker applies opts after the environment defaults.
func NewDocker(opts ...client.Opt) *Docker {
	return &Docker{opts: opts}
}

func (d *Docker) Run(ctx context.Context, spec Spec) (Result, error) {
	opts := append([]client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}, d.opts...)
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create docker client: %w", err)
	}
	defer cli.Close()

	if err := ensureImage(ctx, cli, spec.Image); err != nil {
		return Result{}, err
	}

	resp, err := cli.ContainerCreate(ctx,
		&container.Config{
			Image:      spec.Image,
			Entrypoint: spec.Entrypoint,
			Cmd:        spec.Command,
			Env:        envList(spec.Env),
		},
		&container.HostConfig{Mounts: dockerMounts(spec.Mounts)},
		nil, nil, "")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create container from %s: %w", spec.Image, err)
	}
	defer func() {
		rmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := cli.ContainerRemove(rmCtx, resp.ID, container.RemoveOptions{Force: true}); err != nil {
			slog.Warn("Failed to remove container", "id", resp.ID, "error", err)
		}
	}()

	slog.Debug("Starting container", "id", resp.ID, "image", spec.Image, "command", spec.Command)
	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return Result{}, fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		return Result{}, fmt.Errorf("failed waiting for container: %w", err)
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			return Result{}, fmt.Errorf("container wait error: %s", status.Error.Message)
		}
		exitCode = status.StatusCode
	}

	output, err := containerOutput(ctx, cli, resp.ID)
	if err != nil {
		slog.Warn("Failed to read container output", "id", resp.ID, "error", err)
	}

	return Result{ExitCode: exitCode, Output: output}, nil
}

func ensureImage(ctx context.Context, cli *client.Client, ref string) error {
	if _, _, err := cli.ImageInspectWithRaw(ctx, ref); err == nil {
		return nil
	} else if !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to inspect image %s: %w", ref, err)
	}

	slog.Info("Pulling image", "image", ref)
	rc, err := cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer rc.Close()

	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	return nil
}

func containerOutput(ctx context.Context, cli *client.Client, id string) (string, error) {
	rc, err := cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, rc); err != nil {
		return "", err
	}
	out := buf.Bytes()
	if len(out) > maxOutputBytes {
		out = out[len(out)-maxOutputBytes:]
	}
	return string(out), nil
}

func dockerMounts(mounts []Mount) []mount.Mount {
	out := make([]mount.Mount, 0, len(mounts))
	for _, m := range mounts {
		out = append(out, mount.Mount{
			Type:     mount.Type(m.Type),
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}
	return out
}
