package remote

import (
	"context"
	"fmt"

	"privateer/internal/config"
)

// Transport moves archive files between a storage host and the machine
// running privateer. One Transport serves one host for the length of a run.
type Transport interface {
	// ProbeDir reports whether the base directory exists on the host.
	ProbeDir(ctx context.Context, dir string) (bool, error)
	// Probe reports whether a file exists on the host. A failed existence
	// check is "absent"; only a broken channel is an error.
	Probe(ctx context.Context, remotePath string) (bool, error)
	// Fetch copies remotePath into localDir and returns the local file path.
	Fetch(ctx context.Context, remotePath, localDir string) (string, error)
	Push(ctx context.Context, localPath, remotePath string) error
	Close() error
}

// Dialer opens a Transport for a non-local host.
type Dialer func(ctx context.Context, h *config.Host) (Transport, error)

// NewDialer returns the production Dialer: SSH for remote hosts and S3 for
// bucket hosts.
func NewDialer(sshOpts SSHOptions) Dialer {
	return func(ctx context.Context, h *config.Host) (Transport, error) {
		switch h.Type {
		case config.HostRemote:
			s, err := DialSSH(ctx, h, sshOpts)
			if err != nil {
				return nil, err
			}
			return s, nil
		case config.HostS3:
			if h.S3 == nil {
				return nil, fmt.Errorf("host %s has no s3 settings", h.Name)
			}
			s, err := NewS3(ctx, h.S3.Bucket, h.S3.Region, h.S3.Endpoint, h.S3.Class(), h.S3.RetryAttempts())
			if err != nil {
				return nil, err
			}
			return s, nil
		default:
			return nil, fmt.Errorf("host %s of type %s has no remote transport", h.Name, h.Type)
		}
	}
}
