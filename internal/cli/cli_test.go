package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with args and returns what it wrote.
func runCLI(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// isolate points HOME at a temp dir so the default config, log and history
// paths stay inside the test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

// writeConfig writes a config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	assert.Equal(t, "sqlzen", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	for _, name := range []string{"config", "log-level", "log-format", "log-file", "connect-timeout", "query-timeout"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "persistent flag %q should exist", name)
	}
	for _, name := range []string{"connection", "theme"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %q should exist", name)
	}

	var subs []string
	for _, c := range cmd.Commands() {
		subs = append(subs, c.Name())
	}
	for _, want := range []string{"version", "exec", "repl", "serve", "history", "connections"} {
		assert.Contains(t, subs, want)
	}
}

func TestNewExecCommand(t *testing.T) {
	cmd := NewExecCommand()

	assert.Equal(t, "exec [sql]", cmd.Use)
	assert.NotEmpty(t, cmd.Example)
	for _, name := range []string{"driver", "url", "connection", "file", "output", "watch"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %q should exist", name)
	}
}

func TestNewConnectionsCommand(t *testing.T) {
	cmd := NewConnectionsCommand()

	assert.Equal(t, []string{"conn"}, cmd.Aliases)
	var subs []string
	for _, c := range cmd.Commands() {
		subs = append(subs, c.Name())
	}
	assert.ElementsMatch(t, []string{"list", "add", "remove", "test"}, subs)
}

func TestInvalidConfigIsReported(t *testing.T) {
	isolate(t)
	cfg := writeConfig(t, `
connections:
  - name: broken
    driver: oracle
    url: whatever
`)

	_, _, err := runCLI(t, "", "--config", cfg, "connections", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config error")
	assert.Contains(t, err.Error(), `connection "broken"`)
}
