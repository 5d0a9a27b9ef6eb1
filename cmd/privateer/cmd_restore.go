package main

import (
	"context"
	"fmt"
	"io"

	"privateer/internal/restore"
	"privateer/internal/target"
	"privateer/internal/util"
)

func runRestore(ctx context.Context, w io.Writer, configPath, hostName, include, exclude string) error {
	a, err := setup(configPath, "restore")
	if err != nil {
		return err
	}
	defer a.close()

	return a.restore(ctx, w, hostName, include, exclude)
}

func (a *app) restore(ctx context.Context, w io.Writer, hostName, include, exclude string) error {
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

	release, err := lockHost(h, "restore")
	if err != nil {
		return err
	}
	defer release()

	fmt.Fprintf(w, "Restoring targets %s from host '%s'\n", util.QuoteNames(target.Names(targets)), h.Name)
	names, err := restore.Run(ctx, h, targets, restore.Deps{
		Archiver: a.archiver,
		Dial:     a.dial,
		Notify:   func(msg string) { fmt.Fprintln(w, msg) },
	})
	fmt.Fprintln(w, restoredMessage(names, h.Name))
	return err
}

func restoredMessage(names []string, hostName string) string {
	if len(names) == 0 {
		return fmt.Sprintf("Restored targets from host '%s'", hostName)
	}
	return fmt.Sprintf("Restored targets %s from host '%s'", util.QuoteNames(names), hostName)
}
