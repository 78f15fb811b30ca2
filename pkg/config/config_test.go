package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*BaseConfig)
		wantError string
	}{
		{name: "defaults", mutate: func(*BaseConfig) {}},
		{name: "missing name", mutate: func(c *BaseConfig) { c.Name = "" }, wantError: "name is required"},
		{name: "missing type", mutate: func(c *BaseConfig) { c.Type = "" }, wantError: "type is required"},
		{
			name: "pool without capacity",
			mutate: func(c *BaseConfig) {
				c.Pool.Enabled = true
				c.Pool.MaxObjects = 0
			},
			wantError: "pool.max_objects",
		},
		{
			name: "min idle above max",
			mutate: func(c *BaseConfig) {
				c.Pool.Enabled = true
				c.Pool.MaxObjects = 2
				c.Pool.MinIdle = 3
			},
			wantError: "pool.min_idle",
		},
		{
			name: "disabled pool ignores limits",
			mutate: func(c *BaseConfig) {
				c.Pool.MaxObjects = 0
			},
		},
		{name: "negative retries", mutate: func(c *BaseConfig) { c.Reliability.RetryAttempts = -1 }, wantError: "retry_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewBaseConfig("crm", "memory")
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantError)
		})
	}
}

func TestConnectionConfig_Helpers(t *testing.T) {
	c := ConnectionConfig{
		Tables:     map[string]string{"__ACCOUNT__": "accounts"},
		Properties: map[string]string{"schema": "crm", "page": "50", "bad": "x"},
	}

	assert.Equal(t, "accounts", c.Table("__ACCOUNT__"))
	assert.Equal(t, "groups", c.Table("groups"))
	assert.Equal(t, "crm", c.Property("schema", "public"))
	assert.Equal(t, "public", c.Property("missing", "public"))
	assert.Equal(t, 50, c.IntProperty("page", 10))
	assert.Equal(t, 10, c.IntProperty("bad", 10))
	assert.Equal(t, 10, c.IntProperty("missing", 10))
}

func TestLoadBaseConfig(t *testing.T) {
	t.Setenv("OPGATE_TEST_PASSWORD", "s3cret")

	path := filepath.Join(t.TempDir(), "crm.yaml")
	content := `
name: crm
type: postgresql
connection:
  url: postgres://localhost:5432/crm
  password: ${OPGATE_TEST_PASSWORD}
  tables:
    __ACCOUNT__: accounts
pool:
  enabled: true
  max_objects: 4
  max_wait: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadBaseConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "crm", cfg.Name)
	assert.Equal(t, "s3cret", cfg.Connection.Password)
	assert.Equal(t, "accounts", cfg.Connection.Table("__ACCOUNT__"))
	assert.True(t, cfg.Pool.Enabled)
	assert.Equal(t, 4, cfg.Pool.MaxObjects)
	assert.Equal(t, 2*time.Second, cfg.Pool.MaxWait)
	// untouched defaults survive
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Connection)
}

func TestLoadBaseConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("type: memory\n"), 0600))

	_, err := LoadBaseConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := NewBaseConfig("cache", "memory")
	cfg.Connection.Properties["seed"] = "true"

	require.NoError(t, Save(path, cfg))

	loaded, err := LoadBaseConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "true", loaded.Connection.Properties["seed"])
}

func TestLoadBaseConfigWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: crm
type: postgresql
connection:
  host: db.internal
  tables:
    __ACCOUNT__: accounts
  properties:
    sslMode: require
pool:
  max_objects: 4
`), 0600))
	t.Setenv("OPGATE_CONNECTION_HOST", "db.override")
	t.Setenv("OPGATE_POOL_ENABLED", "true")
	t.Setenv("OPGATE_POOL_MAX_WAIT", "3s")

	cfg, err := LoadBaseConfigWithEnv(path, "OPGATE")
	require.NoError(t, err)
	assert.Equal(t, "db.override", cfg.Connection.Host)
	assert.True(t, cfg.Pool.Enabled)
	assert.Equal(t, 3*time.Second, cfg.Pool.MaxWait)
	assert.Equal(t, 4, cfg.Pool.MaxObjects)
	assert.Equal(t, "accounts", cfg.Connection.Table("__ACCOUNT__"))
	assert.Equal(t, "require", cfg.Connection.Property("sslMode", ""))

	t.Setenv("OPGATE_POOL_MAX_OBJECTS", "many")
	_, err = LoadBaseConfigWithEnv(path, "OPGATE")
	assert.Error(t, err)
}

func TestSettingKeys(t *testing.T) {
	keys := settingKeys(reflect.TypeOf(BaseConfig{}), "")
	assert.Contains(t, keys, "name")
	assert.Contains(t, keys, "connection.brokers")
	assert.Contains(t, keys, "pool.min_evictable_idle_time")
	assert.Contains(t, keys, "observability.log_level")
	assert.NotContains(t, keys, "connection.tables")
	assert.NotContains(t, keys, "connection.properties")
}
