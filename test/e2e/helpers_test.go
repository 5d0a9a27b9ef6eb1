//go:build e2e_docker

package e2e

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// run executes name with args and returns trimmed combined output.
func run(name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

func mustRun(t *testing.T, name string, args ...string) string {
	t.Helper()
	out, err := run(name, args...)
	require.NoError(t, err, "command failed: %s %s\noutput: %s", name, strings.Join(args, " "), out)
	return out
}

func buildBinary(t *testing.T) string {
	t.Helper()
	binary := filepath.Join(t.TempDir(), "privateer")
	mustRun(t, "go", "build", "-o", binary, "../../cmd/privateer")
	return binary
}

// newVolume creates a docker volume that is removed when the test ends.
func newVolume(t *testing.T, name string) {
	t.Helper()
	mustRun(t, "docker", "volume", "create", name)
	t.Cleanup(func() {
		_, _ = run("docker", "volume", "rm", "-f", name)
	})
}

// inVolume runs a shell command in a throwaway container with name mounted at /data.
func inVolume(t *testing.T, name, script string) string {
	t.Helper()
	return mustRun(t, "docker", "run", "--rm", "-v", name+":/data", "ubuntu", "sh", "-c", script)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "privateer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// extractJSON returns the JSON object embedded in mixed log and JSON output.
func extractJSON(t *testing.T, out string, v any) {
	t.Helper()
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	require.True(t, start >= 0 && end > start, "no JSON in output: %s", out)
	require.NoError(t, json.Unmarshal([]byte(out[start:end+1]), v))
}
