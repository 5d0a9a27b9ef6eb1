// Package jobtest provides job.Runner implementations for tests.
package jobtest

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"privateer/internal/job"
)

// Recorder records every spec it is given and answers with Fn, or with a
// successful result when Fn is nil.
type Recorder struct {
	mu    sync.Mutex
	Specs []job.Spec
	Fn    func(spec job.Spec) (job.Result, error)
}

func (r *Recorder) Run(_ context.Context, spec job.Spec) (job.Result, error) {
	r.mu.Lock()
	r.Specs = append(r.Specs, spec)
	fn := r.Fn
	r.mu.Unlock()

	if fn != nil {
		return fn(spec)
	}
	return job.Result{}, nil
}

// TarRunner executes "tar cf" and "tar xf" jobs in-process. Volumes maps a
// volume name to the directory standing in for its data root.
type TarRunner struct {
	Recorder
	Volumes map[string]string
}

func NewTarRunner() *TarRunner {
	r := &TarRunner{Volumes: map[string]string{}}
	r.Fn = r.exec
	return r
}

// AddVolume registers a volume backed by a fresh directory under root.
func (r *TarRunner) AddVolume(root, name string) string {
	dir := filepath.Join(root, "volumes", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		panic(err)
	}
	r.Volumes[name] = dir
	return dir
}

func (r *TarRunner) exec(spec job.Spec) (job.Result, error) {
	if len(spec.Command) < 5 || spec.Command[0] != "tar" {
		return job.Result{ExitCode: 127, Output: "unsupported command"}, nil
	}

	resolve := func(p string) (string, error) {
		for _, m := range spec.Mounts {
			if p != m.Target && !strings.HasPrefix(p, m.Target+"/") {
				continue
			}
			root := m.Source
			if m.Type == job.MountVolume {
				var ok bool
				if root, ok = r.Volumes[m.Source]; !ok {
					return "", fmt.Errorf("no such volume: %s", m.Source)
				}
			}
			return filepath.Join(root, strings.TrimPrefix(p, m.Target)), nil
		}
		return "", fmt.Errorf("path %s is not mounted", p)
	}

	archive, err := resolve(spec.Command[2])
	if err != nil {
		return job.Result{ExitCode: 2, Output: err.Error()}, nil
	}
	dataRoot, err := resolve(spec.Command[4])
	if err != nil {
		return job.Result{ExitCode: 2, Output: err.Error()}, nil
	}

	switch spec.Command[1] {
	case "cf":
		err = createTar(archive, dataRoot)
	case "xf":
		err = extractTar(archive, dataRoot)
	default:
		return job.Result{ExitCode: 2, Output: "unsupported tar mode " + spec.Command[1]}, nil
	}
	if err != nil {
		return job.Result{ExitCode: 2, Output: "tar: " + err.Error()}, nil
	}
	return job.Result{}, nil
}

func createTar(archive, root string) error {
	f, err := os.Create(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	tw := tar.NewWriter(f)
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = "./" + filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		src, err := os.Open(p)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
	if err != nil {
		return err
	}
	return tw.Close()
}

func extractTar(archive, root string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		dst := filepath.Join(root, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(dst, filepath.Clean(root)+string(os.PathSeparator)) {
			return fmt.Errorf("entry %s escapes the data root", hdr.Name)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		}
	}
}
