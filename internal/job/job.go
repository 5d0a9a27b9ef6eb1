package job

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

type MountType string

const (
	MountVolume MountType = "volume"
	MountBind   MountType = "bind"
)

type Mount struct {
	Type     MountType
	Source   string
	Target   string
	ReadOnly bool
}

// Spec describes one disposable job.
type Spec struct {
	Image      string
	Entrypoint []string
	Command    []string
	Mounts     []Mount
	Env        map[string]string
}

type Result struct {
	ExitCode int64
	Output   string
}

// Runner executes a job to completion and removes it. A returned error means
// the runtime failed; a job that ran and failed reports a non-zero ExitCode.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// Error reports an archive or extract job that did not succeed.
type Error struct {
	Target   string
	Op       string
	ExitCode int64
	Output   string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s job for %s failed", e.Op, e.Target)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	msg = fmt.Sprintf("%s with exit status %d", msg, e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + lastLine(out)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// envList renders env as sorted KEY=VALUE pairs.
func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
