package main

import (
	"context"
	"io"

	"privateer/internal/list"
)

func runList(ctx context.Context, w io.Writer, configPath, hostName string) error {
	a, err := setup(configPath, "list")
	if err != nil {
		return err
	}
	defer a.close()

	h, err := a.cfg.FindHost(hostName)
	if err != nil {
		return err
	}
	return list.Run(ctx, h, a.cfg.Targets, a.dial, w)
}
