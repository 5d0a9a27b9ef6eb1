package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"privateer/internal/config"
	"privateer/internal/job"
	"privateer/internal/lock"
	"privateer/internal/logging"
	"privateer/internal/remote"
	"privateer/internal/util"
)

const sshTimeout = 30 * time.Second

// app holds what every command builds from the configuration file.
type app struct {
	cfg      *config.Config
	dial     remote.Dialer
	archiver *job.Archiver
	close    func()
}

func setup(configPath, command string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	closeLog := func() {}
	if cfg.LogDir != "" {
		logger, logFile, err := util.SetupLogging(util.LogPath(cfg.LogDir, command, time.Now()))
		if err != nil {
			return nil, fmt.Errorf("failed to setup logging: %w", err)
		}
		slog.SetDefault(logger)
		closeLog = func() { logFile.Close() }
	} else {
		slog.SetDefault(logging.NewConsoleLogger(os.Stderr, slog.LevelInfo))
	}

	return newApp(cfg, job.NewDocker(), closeLog), nil
}

func newApp(cfg *config.Config, runner job.Runner, closeLog func()) *app {
	return &app{
		cfg: cfg,
		dial: remote.NewDialer(remote.SSHOptions{
			IdentityFiles:         remote.DefaultIdentityFiles(cfg.SSHDir()),
			KnownHostsFile:        cfg.KnownHostsFile(),
			InsecureIgnoreHostKey: cfg.SSH.InsecureIgnoreHostKey,
			Timeout:               sshTimeout,
		}),
		archiver: job.NewArchiver(runner, job.ArchiverOptions{
			Image:       cfg.ArchiveImage(),
			RemoteImage: cfg.RemoteArchiveImage(),
			StagingDir:  cfg.Staging(),
			SSHDir:      cfg.SSHDir(),
		}),
		close: closeLog,
	}
}

// lockHost holds the host lock until the returned function is called.
func lockHost(h *config.Host, command string) (func(), error) {
	release, err := lock.Acquire(util.LockPath(h.Name), h.Name, command)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := release(); err != nil {
			slog.Warn("Failed to release lock", "host", h.Name, "error", err)
		}
	}, nil
}
