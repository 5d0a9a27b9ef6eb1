package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privateer/internal/checksum"
)

func TestReadMissingIsEmpty(t *testing.T) {
	m, err := Read(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Empty(t, m.Archives)
	assert.Nil(t, m.Find("orderly_volume"))
}

func TestReadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("archives: {not: [a list"), 0o644))

	_, err := Read(path)
	assert.ErrorContains(t, err, "failed to parse manifest")
}

func TestUpsert(t *testing.T) {
	m := &Manifest{}
	m.Upsert(Entry{Target: "a", Blake3Hash: "1"})
	m.Upsert(Entry{Target: "b", Blake3Hash: "2"})
	m.Upsert(Entry{Target: "a", Blake3Hash: "3"})

	require.Len(t, m.Archives, 2)
	assert.Equal(t, "3", m.Find("a").Blake3Hash)
	assert.Equal(t, "2", m.Find("b").Blake3Hash)
}

func TestRecord(t *testing.T) {
	hostPath := t.TempDir()
	archive := filepath.Join(hostPath, "orderly_volume.tar")
	require.NoError(t, os.WriteFile(archive, []byte("tar bytes"), 0o644))
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	e, err := Record(hostPath, "annex", "orderly_volume", archive, now)
	require.NoError(t, err)

	hash, err := checksum.BLAKE3File(archive)
	require.NoError(t, err)
	assert.Equal(t, Entry{
		Target:     "orderly_volume",
		Archive:    "orderly_volume.tar",
		Blake3Hash: hash,
		Size:       9,
		Datetime:   now.Unix(),
	}, *e)

	m, err := Read(Path(hostPath))
	require.NoError(t, err)
	assert.Equal(t, "annex", m.Host)
	assert.Equal(t, []Entry{*e}, m.Archives)

	_, err = os.Stat(Path(hostPath) + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
