package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

var version = "0.1.0"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "config",
		Usage: "path to configuration yaml file",
		Value: "privateer.yaml",
	}
}

func selectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "include",
			Usage: "comma-separated target names to include",
		},
		&cli.StringFlag{
			Name:  "exclude",
			Usage: "comma-separated target names to exclude",
		},
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "privateer",
		Usage:   "Back up and restore docker volumes",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "backup",
				Usage: "Back up volumes to a host",
				Flags: append([]cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "to",
						Usage:    "Name of the host to back up to",
						Required: true,
					},
				}, selectionFlags()...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runBackup(ctx, cmd.Root().Writer, cmd.String("config"),
						cmd.String("to"), cmd.String("include"), cmd.String("exclude"))
				},
			},
			{
				Name:  "restore",
				Usage: "Restore volumes from a host",
				Flags: append([]cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "from",
						Usage:    "Name of the host to restore from",
						Required: true,
					},
				}, selectionFlags()...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runRestore(ctx, cmd.Root().Writer, cmd.String("config"),
						cmd.String("from"), cmd.String("include"), cmd.String("exclude"))
				},
			},
			{
				Name:  "check",
				Usage: "Check configuration and host paths",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "host",
						Usage: "Only check this host",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runCheck(ctx, cmd.Root().Writer, cmd.String("config"), cmd.String("host"))
				},
			},
			{
				Name:  "list",
				Usage: "List archives stored on a host",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "host",
						Usage:    "Name of the host",
						Required: true,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runList(ctx, cmd.Root().Writer, cmd.String("config"), cmd.String("host"))
				},
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			fmt.Fprintln(os.Stderr, "\nInterrupted")
			os.Exit(130)
		}
		slog.Error("CLI error", "error", err)
		os.Exit(1)
	}
}
