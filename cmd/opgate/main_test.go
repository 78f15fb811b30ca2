package main

import (
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/opgate/pkg/connector/connectors/memory"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeMemoryConfig(t *testing.T, pooled bool) string {
	t.Helper()
	store := "cli-" + t.Name()
	t.Cleanup(func() { memory.DropStore(store) })

	path := filepath.Join(t.TempDir(), "memory.yaml")
	content := "name: cli\ntype: memory\nconnection:\n  properties:\n    store: " + store + "\nobservability:\n  log_level: error\n"
	if pooled {
		content += "pool:\n  enabled: true\n  max_objects: 1\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCLI_CreateSearchGetDelete(t *testing.T) {
	for _, pooled := range []bool{false, true} {
		cfg := writeMemoryConfig(t, pooled)

		out, err := run(t, "create", "-c", cfg, "--class", "users", "--set", "name=alice", "--set", "age=31")
		require.NoError(t, err)
		var created map[string]string
		require.NoError(t, json.Unmarshal([]byte(out), &created))
		uid := created["uid"]
		require.NotEmpty(t, uid)

		_, err = run(t, "create", "-c", cfg, "--class", "users", "--set", "name=bob", "--set", "age=40")
		require.NoError(t, err)

		out, err = run(t, "search", "-c", cfg, "--class", "users", "--where", "name=alice")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], uid)

		out, err = run(t, "get", "-c", cfg, "--class", "users", "--uid", uid)
		require.NoError(t, err)
		assert.Contains(t, out, "alice")

		_, err = run(t, "delete", "-c", cfg, "--class", "users", "--uid", uid)
		require.NoError(t, err)

		_, err = run(t, "get", "-c", cfg, "--class", "users", "--uid", uid)
		assert.Equal(t, 3, exitCode(err))

		_, err = run(t, "delete", "-c", cfg, "--class", "users", "--uid", uid)
		assert.Equal(t, 3, exitCode(err))
	}
}

func TestCLI_Test(t *testing.T) {
	out, err := run(t, "test", "-c", writeMemoryConfig(t, false))
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestCLI_List(t *testing.T) {
	out, err := run(t, "list")
	require.NoError(t, err)
	for _, name := range []string{"memory", "postgresql", "mysql", "snowflake", "mongodb", "kafka", "s3", "gcs"} {
		assert.Contains(t, out, "- "+name+" ")
	}
}

func TestCLI_MissingConfig(t *testing.T) {
	_, err := run(t, "test")
	assert.ErrorContains(t, err, "--config is required")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(stderrors.New("plain")))
	assert.Equal(t, 2, exitCode(errors.New(errors.ErrorTypeValidation, "bad")))
	assert.Equal(t, 4, exitCode(errors.New(errors.ErrorTypeConflict, "dup")))
	assert.Equal(t, 5, exitCode(errors.New(errors.ErrorTypePoolExhausted, "busy")))
}
