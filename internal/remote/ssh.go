package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"privateer/internal/config"
)

type SSHOptions struct {
	// IdentityFiles are tried in order after any keys offered by ssh-agent.
	IdentityFiles         []string
	KnownHostsFile        string
	InsecureIgnoreHostKey bool
	Timeout               time.Duration
}

// DefaultIdentityFiles lists the usual private key names under dir.
func DefaultIdentityFiles(dir string) []string {
	if dir == "" {
		return nil
	}
	var files []string
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		files = append(files, filepath.Join(dir, name))
	}
	return files
}

// SSH runs shell probes and transfers files over one authenticated connection.
type SSH struct {
	client *ssh.Client
	agent  net.Conn
	addr   string
}

func DialSSH(ctx context.Context, h *config.Host, opts SSHOptions) (*SSH, error) {
	auth, agentConn, err := authMethods(opts.IdentityFiles)
	if err != nil {
		return nil, err
	}
	closeAgent := func() {
		if agentConn != nil {
			agentConn.Close()
		}
	}

	hostKeyCallback, err := hostKeyCallback(opts)
	if err != nil {
		closeAgent()
		return nil, err
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	clientConfig := &ssh.ClientConfig{
		User:            h.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(h.Hostname, strconv.Itoa(h.SSHPort()))
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		closeAgent()
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		closeAgent()
		return nil, fmt.Errorf("failed to establish SSH session with %s: %w", addr, err)
	}

	slog.Debug("SSH session established", "addr", addr, "user", h.User)
	return &SSH{client: ssh.NewClient(sshConn, chans, reqs), agent: agentConn, addr: addr}, nil
}

// authMethods also returns the ssh-agent connection, if one was opened. It
// stays open for the life of the SSH client and is closed with it.
func authMethods(identityFiles []string) ([]ssh.AuthMethod, net.Conn, error) {
	var methods []ssh.AuthMethod
	var agentConn net.Conn

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)
		if err != nil {
			slog.Warn("Failed to connect to ssh-agent", "socket", sock, "error", err)
		} else {
			agentConn = conn
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	var signers []ssh.Signer
	for _, file := range identityFiles {
		data, err := os.ReadFile(file)
		if err != nil {
			if !os.IsNotExist(err) {
				slog.Warn("Failed to read identity file", "file", file, "error", err)
			}
			continue
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			var passErr *ssh.PassphraseMissingError
			if errors.As(err, &passErr) {
				slog.Debug("Skipping passphrase protected identity file", "file", file)
			} else {
				slog.Warn("Failed to parse identity file", "file", file, "error", err)
			}
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	if len(methods) == 0 {
		return nil, nil, fmt.Errorf("no SSH authentication methods available (no agent and no usable identity files)")
	}
	return methods, agentConn, nil
}

func hostKeyCallback(opts SSHOptions) (ssh.HostKeyCallback, error) {
	if opts.InsecureIgnoreHostKey {
		slog.Warn("SSH host key verification is disabled")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	callback, err := knownhosts.New(opts.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts from %s: %w", opts.KnownHostsFile, err)
	}
	return callback, nil
}

// Run executes command on the remote host. A non-zero exit status is
// returned as *ssh.ExitError.
func (s *SSH) Run(ctx context.Context, command string) error {
	session, err := s.client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to open SSH session on %s: %w", s.addr, err)
	}
	defer session.Close()

	var stderr bytes.Buffer
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		session.Close()
		return ctx.Err()
	case err := <-done:
		if err != nil && stderr.Len() > 0 {
			slog.Debug("Remote command failed", "addr", s.addr, "command", command, "stderr", strings.TrimSpace(stderr.String()))
		}
		return err
	}
}

func (s *SSH) test(ctx context.Context, flag, p string) (bool, error) {
	err := s.Run(ctx, testCommand(flag, p))
	if err == nil {
		return true, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}

func testCommand(flag, p string) string {
	return shellquote.Join("test", flag, p)
}

func (s *SSH) ProbeDir(ctx context.Context, dir string) (bool, error) {
	return s.test(ctx, "-d", dir)
}

func (s *SSH) Probe(ctx context.Context, remotePath string) (bool, error) {
	return s.test(ctx, "-f", remotePath)
}

func (s *SSH) sftp(ctx context.Context) (*sftp.Client, func(), error) {
	client, err := sftp.NewClient(s.client)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start SFTP on %s: %w", s.addr, err)
	}
	stop := context.AfterFunc(ctx, func() { client.Close() })
	return client, func() {
		stop()
		client.Close()
	}, nil
}

func (s *SSH) Fetch(ctx context.Context, remotePath, localDir string) (string, error) {
	client, done, err := s.sftp(ctx)
	if err != nil {
		return "", err
	}
	defer done()

	src, err := client.Open(remotePath)
	if err != nil {
		return "", fmt.Errorf("failed to open remote file %s: %w", remotePath, err)
	}
	defer src.Close()

	localPath := filepath.Join(localDir, path.Base(remotePath))
	dst, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create local file: %w", err)
	}

	n, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("failed to copy %s from %s: %w", remotePath, s.addr, err)
	}

	slog.Info("Fetched archive over SFTP", "addr", s.addr, "remote", remotePath, "local", localPath, "bytes", n)
	return localPath, nil
}

func (s *SSH) Push(ctx context.Context, localPath, remotePath string) error {
	client, done, err := s.sftp(ctx)
	if err != nil {
		return err
	}
	defer done()

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	if err := client.MkdirAll(path.Dir(remotePath)); err != nil {
		return fmt.Errorf("failed to create remote directory: %w", err)
	}

	dst, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
	}

	n, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to copy %s to %s: %w", localPath, s.addr, err)
	}

	slog.Info("Pushed archive over SFTP", "addr", s.addr, "local", localPath, "remote", remotePath, "bytes", n)
	return nil
}

func (s *SSH) Close() error {
	var err error
	if s.client != nil {
		err = s.client.Close()
	}
	if s.agent != nil {
		if agentErr := s.agent.Close(); err == nil {
			err = agentErr
		}
	}
	return err
}
