package check

import (
	"context"
	"fmt"
	"io"

	"privateer/internal/config"
	"privateer/internal/host"
	"privateer/internal/remote"
)

// Run verifies that the base path of every host in cfg exists, or only that
// of hostName when it is set. It stops at the first host that fails.
func Run(ctx context.Context, cfg *config.Config, hostName string, dial remote.Dialer, w io.Writer) error {
	fmt.Fprintln(w, "config: OK")

	hosts := cfg.Hosts
	if hostName != "" {
		h, err := cfg.FindHost(hostName)
		if err != nil {
			return err
		}
		hosts = []config.Host{*h}
	}

	for i := range hosts {
		h := &hosts[i]
		if h.Type == config.HostS3 && h.S3 != nil {
			if err := remote.ValidateStorageClass(string(h.S3.Class())); err != nil {
				fmt.Fprintf(w, "host %s: warning: %v\n", h.Name, err)
			}
		}
		if err := host.CheckPath(ctx, h, dial); err != nil {
			return fmt.Errorf("host %s: %w", h.Name, err)
		}
		fmt.Fprintf(w, "host %s (%s) path %s: OK\n", h.Name, h.Type, h.Path)
	}

	fmt.Fprintln(w, "all checks passed")
	return nil
}
