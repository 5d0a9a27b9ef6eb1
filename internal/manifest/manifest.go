package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"privateer/internal/checksum"
)

func Path(hostPath string) string {
	return filepath.Join(hostPath, FileName)
}

// Read returns an empty manifest when filename does not exist.
func Read(filename string) (*Manifest, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filename, err)
	}
	return &m, nil
}

func Write(filename string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filename)
}

func (m *Manifest) Find(target string) *Entry {
	for i := range m.Archives {
		if m.Archives[i].Target == target {
			return &m.Archives[i]
		}
	}
	return nil
}

// Upsert replaces the entry for e.Target or appends it.
func (m *Manifest) Upsert(e Entry) {
	if existing := m.Find(e.Target); existing != nil {
		*existing = e
		return
	}
	m.Archives = append(m.Archives, e)
}

// Record hashes archivePath and stores it as the current archive of target
// in the manifest under hostPath.
func Record(hostPath, hostName, target, archivePath string, now time.Time) (*Entry, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, err
	}
	hash, err := checksum.BLAKE3File(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate BLAKE3: %w", err)
	}

	filename := Path(hostPath)
	m, err := Read(filename)
	if err != nil {
		return nil, err
	}
	m.Host = hostName
	e := Entry{
		Target:     target,
		Archive:    filepath.Base(archivePath),
		Blake3Hash: hash,
		Size:       info.Size(),
		Datetime:   now.Unix(),
	}
	m.Upsert(e)
	if err := Write(filename, m); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	return &e, nil
}
