package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/opgate/pkg/connector/core"
)

func TestParseAssignments(t *testing.T) {
	attrs, err := parseAssignments([]string{"name=alice", "age=31", "active=true", "team=null", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"name":   "alice",
		"age":    float64(31),
		"active": true,
		"team":   nil,
		"note":   "a=b",
	}, attrs)

	_, err = parseAssignments([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseAssignments([]string{"=x"})
	assert.Error(t, err)
}

func TestParseWhere(t *testing.T) {
	filter, err := parseWhere(nil)
	require.NoError(t, err)
	assert.Nil(t, filter)

	filter, err = parseWhere([]string{"uid=42"})
	require.NoError(t, err)
	assert.Equal(t, core.Equals(core.UidAttribute, "42"), filter)

	filter, err = parseWhere([]string{"team=core", "age=31"})
	require.NoError(t, err)
	and, ok := filter.(*core.AndFilter)
	require.True(t, ok)
	assert.Equal(t, []core.Filter{core.Equals("age", float64(31)), core.Equals("team", "core")}, and.Filters)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: crm
type: memory
connection:
  password: ${OPGATE_TEST_SECRET}
  tables:
    Users: app_users
pool:
  enabled: true
  max_objects: 4
  max_wait: 2s
`), 0o600))
	t.Setenv("OPGATE_TEST_SECRET", "s3cret")
	t.Setenv("OPGATE_POOL_MAX_OBJECTS", "6")

	cfg, err := loadConfig(&globalFlags{configFile: path, logLevel: "debug"})
	require.NoError(t, err)
	assert.Equal(t, "crm", cfg.Name)
	assert.Equal(t, "s3cret", cfg.Connection.Password)
	assert.True(t, cfg.Pool.Enabled)
	assert.Equal(t, 6, cfg.Pool.MaxObjects)
	assert.Equal(t, "app_users", cfg.Connection.Table("Users"))
	assert.Equal(t, "2s", cfg.Pool.MaxWait.String())
	assert.Equal(t, 1, cfg.Pool.MinIdle, "defaults survive")
	assert.Equal(t, "debug", cfg.Observability.LogLevel)

	_, err = loadConfig(&globalFlags{})
	assert.Error(t, err)
}
