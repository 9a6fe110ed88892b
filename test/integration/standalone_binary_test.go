package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildBinary(t *testing.T) string {
	t.Helper()
	goMod, err := exec.Command("go", "env", "GOMOD").Output()
	require.NoError(t, err)
	repoRoot := filepath.Dir(strings.TrimSpace(string(goMod)))
	require.NotEqual(t, ".", repoRoot, "go env GOMOD returned empty")

	binary := filepath.Join(t.TempDir(), "riftlens")
	build := exec.Command("go", "build", "-o", binary, "./cmd/riftlens")
	build.Dir = repoRoot
	build.Env = os.Environ()
	out, err := build.CombinedOutput()
	require.NoError(t, err, string(out))
	return binary
}

func TestStandaloneBinaryRunsOutsideRepo(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("standalone binary exec test is unix-focused")
	}
	binary := buildBinary(t)
	outside := t.TempDir()

	run := func(args ...string) (string, error) {
		cmd := exec.Command(binary, args...)
		cmd.Dir = outside
		cmd.Env = append(os.Environ(), "HOME="+outside, "XDG_CONFIG_HOME="+outside)
		out, err := cmd.CombinedOutput()
		return string(out), err
	}

	out, err := run("version")
	require.NoError(t, err, out)
	assert.Contains(t, out, "riftlens")

	out, err = run("--help")
	require.NoError(t, err, out)
	for _, sub := range []string{"serve", "match", "rate-limit", "health"} {
		assert.Contains(t, out, sub)
	}

	out, err = run("match")
	assert.Error(t, err, "match without a player or --random must fail")
	assert.NotEmpty(t, out)
}
