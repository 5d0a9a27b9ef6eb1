package host

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privateer/internal/config"
	"privateer/internal/remote/remotetest"
)

func TestCheckPathLocal(t *testing.T) {
	dir := t.TempDir()
	fake := remotetest.NewFake()

	t.Run("existing path", func(t *testing.T) {
		h := &config.Host{Name: "annex", Type: config.HostLocal, Path: dir}
		require.NoError(t, CheckPath(context.Background(), h, fake.Dialer()))
	})

	t.Run("missing path", func(t *testing.T) {
		missing := filepath.Join(dir, "missing")
		h := &config.Host{Name: "annex", Type: config.HostLocal, Path: missing}

		err := CheckPath(context.Background(), h, fake.Dialer())
		var unavailable *UnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Contains(t, err.Error(), missing)
		assert.Equal(t, "Host path '"+missing+"' does not exist. Either make directory or fix config.", err.Error())
	})

	assert.Empty(t, fake.Calls, "local hosts must not open a transport")
}

func TestCheckPathRemote(t *testing.T) {
	h := &config.Host{Name: "uat", Type: config.HostRemote, Path: "/home/vagrant/backups", Hostname: "uat", User: "vagrant"}

	t.Run("directory exists", func(t *testing.T) {
		fake := remotetest.NewFake()
		fake.Dirs[h.Path] = true

		require.NoError(t, CheckPath(context.Background(), h, fake.Dialer()))
		assert.Equal(t, []string{"probe-dir /home/vagrant/backups"}, fake.Calls)
		assert.True(t, fake.Closed)
	})

	t.Run("directory missing", func(t *testing.T) {
		fake := remotetest.NewFake()

		err := CheckPath(context.Background(), h, fake.Dialer())
		var unavailable *UnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, h.Path, unavailable.Path)
		assert.True(t, fake.Closed)
	})

	t.Run("connection failure is surfaced", func(t *testing.T) {
		fake := remotetest.NewFake()
		fake.DialErr = errors.New("connection refused")

		err := CheckPath(context.Background(), h, fake.Dialer())
		require.Error(t, err)
		var unavailable *UnavailableError
		assert.False(t, errors.As(err, &unavailable))
		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("path check failure is surfaced", func(t *testing.T) {
		fake := remotetest.NewFake()
		fake.ProbeErr = errors.New("session closed")

		err := CheckPath(context.Background(), h, fake.Dialer())
		assert.ErrorContains(t, err, "failed to probe host uat")
	})
}
