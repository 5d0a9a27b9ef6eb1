package main

import (
	"context"
	"io"

	"privateer/internal/check"
)

func runCheck(ctx context.Context, w io.Writer, configPath, hostName string) error {
	a, err := setup(configPath, "check")
	if err != nil {
		return err
	}
	defer a.close()

	return check.Run(ctx, a.cfg, hostName, a.dial, w)
}
