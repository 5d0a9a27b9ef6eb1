package list

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privateer/internal/config"
	"privateer/internal/manifest"
	"privateer/internal/remote/remotetest"
)

var targets = []config.Target{
	{Name: "A", Type: config.TargetVolume},
	{Name: "B", Type: config.TargetVolume},
}

func decode(t *testing.T, buf *bytes.Buffer) Output {
	t.Helper()
	var out Output
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestRunLocal(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "A.tar")
	require.NoError(t, os.WriteFile(archivePath, []byte("archive"), 0o644))
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e, err := manifest.Record(dir, "annex", "A", archivePath, when)
	require.NoError(t, err)

	var buf bytes.Buffer
	h := &config.Host{Name: "annex", Type: config.HostLocal, Path: dir}
	require.NoError(t, Run(context.Background(), h, targets, remotetest.NewFake().Dialer(), &buf))

	out := decode(t, &buf)
	assert.Equal(t, "annex", out.Host)
	assert.Equal(t, "local", out.HostType)
	require.Len(t, out.Archives, 2)
	assert.True(t, out.Archives[0].Present)
	assert.Equal(t, e.Blake3Hash, out.Archives[0].Blake3Hash)
	assert.Equal(t, int64(7), out.Archives[0].Size)
	assert.Equal(t, when.Unix(), out.Archives[0].Datetime)
	assert.False(t, out.Archives[1].Present)
	assert.Empty(t, out.Archives[1].Blake3Hash)
	assert.Equal(t, 1, out.Summary.Present)
	assert.Equal(t, 1, out.Summary.Missing)
}

func TestRunLocalMissingPath(t *testing.T) {
	h := &config.Host{Name: "annex", Type: config.HostLocal, Path: filepath.Join(t.TempDir(), "gone")}
	err := Run(context.Background(), h, targets, remotetest.NewFake().Dialer(), &bytes.Buffer{})
	assert.ErrorContains(t, err, "failed to list host annex")
}

func TestRunRemote(t *testing.T) {
	h := &config.Host{Name: "uat", Type: config.HostRemote, Path: "/srv/backups", Hostname: "uat", User: "vagrant"}

	t.Run("checks every archive exists", func(t *testing.T) {
		fake := remotetest.NewFake()
		fake.Files["/srv/backups/B.tar"] = []byte("x")

		var buf bytes.Buffer
		require.NoError(t, Run(context.Background(), h, targets, fake.Dialer(), &buf))

		out := decode(t, &buf)
		require.Len(t, out.Archives, 2)
		assert.False(t, out.Archives[0].Present)
		assert.True(t, out.Archives[1].Present)
		assert.Equal(t, "/srv/backups/B.tar", out.Archives[1].Path)
		assert.True(t, fake.Closed)
	})

	t.Run("existence check failure", func(t *testing.T) {
		fake := remotetest.NewFake()
		fake.ProbeErr = errors.New("session closed")

		var buf bytes.Buffer
		err := Run(context.Background(), h, targets, fake.Dialer(), &buf)
		assert.ErrorContains(t, err, "session closed")
		assert.Empty(t, buf.String())
	})
}
