package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"privateer/internal/backup"
	"privateer/internal/target"
	"privateer/internal/util"
)

func runBackup(ctx context.Context, w io.Writer, configPath, hostName, include, exclude string) error {
	a, err := setup(configPath, "backup")
	if err != nil {
		return err
	}
	defer a.close()

	return a.backup(ctx, w, hostName, include, exclude)
}

func (a *app) backup(ctx context.Context, w io.Writer, hostName, include, exclude string) error {
	targets, err := target.Select(include, exclude, a.cfg.Targets)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		fmt.Fprintln(w, "No targets selected. Doing nothing.")
		return nil
	}

	h, err := a.cfg.FindHost(hostName)
	if err != nil {
		return err
	}

	release, err := lockHost(h, "backup")
	if err != nil {
		return err
	}
	defer release()

	fmt.Fprintf(w, "Backing up targets %s to host '%s'\n", util.QuoteNames(target.Names(targets)), h.Name)
	_, err = backup.Run(ctx, h, targets, backup.Deps{
		Archiver: a.archiver,
		Dial:     a.dial,
		Now:      time.Now,
	})
	return err
}
