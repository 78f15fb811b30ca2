// Package config provides the unified configuration system for opgate.
// A single BaseConfig describes one connector instance: which connector type to
// instantiate, how to reach the external system, and whether calls share
// connectors through a pool or create one per call.
//
// The configuration is organized into logical sections:
//   - Connection: endpoints, credentials and connector-specific properties
//   - Pool: connector pooling limits and eviction
//   - Timeouts: connection and request timeouts
//   - Reliability: retry behaviour while establishing connections
//   - Observability: metrics, tracing and logging
//
// Example usage:
//
//	cfg := config.NewBaseConfig("crm", "postgresql")
//	cfg.Connection.URL = "postgres://localhost:5432/crm"
//	cfg.Pool.Enabled = true
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"strconv"
	"time"
)

// BaseConfig is the configuration structure every connector is initialized with.
type BaseConfig struct {
	// Name identifies the connector instance; pools are keyed by it
	Name string `yaml:"name" json:"name" mapstructure:"name"`
	// Type selects the registered connector (e.g. "postgresql", "memory", "s3")
	Type string `yaml:"type" json:"type" mapstructure:"type"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version" mapstructure:"version"`

	Connection    ConnectionConfig    `yaml:"connection" json:"connection" mapstructure:"connection"`
	Pool          PoolConfig          `yaml:"pool" json:"pool" mapstructure:"pool"`
	Timeouts      TimeoutConfig       `yaml:"timeouts" json:"timeouts" mapstructure:"timeouts"`
	Reliability   ReliabilityConfig   `yaml:"reliability" json:"reliability" mapstructure:"reliability"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// ConnectionConfig describes how a connector reaches its external system.
// Not every connector uses every field.
type ConnectionConfig struct {
	// URL is a full connection string (postgres://, mongodb://, DSN for sql drivers)
	URL      string `yaml:"url" json:"url" mapstructure:"url"`
	Host     string `yaml:"host" json:"host" mapstructure:"host"`
	Port     int    `yaml:"port" json:"port" mapstructure:"port"`
	Database string `yaml:"database" json:"database" mapstructure:"database"`
	Username string `yaml:"username" json:"username" mapstructure:"username"`
	Password string `yaml:"password" json:"password" mapstructure:"password"`
	// Brokers lists Kafka bootstrap servers
	Brokers []string `yaml:"brokers" json:"brokers" mapstructure:"brokers"`
	// Bucket names the object storage bucket (s3, gcs)
	Bucket string `yaml:"bucket" json:"bucket" mapstructure:"bucket"`
	// Region is the cloud region (s3)
	Region string `yaml:"region" json:"region" mapstructure:"region"`
	// Endpoint overrides the service endpoint (s3-compatible stores, emulators)
	Endpoint string `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`
	// CredentialsFile points at a service account file (gcs)
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file" mapstructure:"credentials_file"`
	// Tables maps object classes to table or collection names
	Tables map[string]string `yaml:"tables" json:"tables" mapstructure:"tables"`
	// Properties holds connector-specific settings
	Properties map[string]string `yaml:"properties" json:"properties" mapstructure:"properties"`
}

// PoolConfig controls connector pooling. When Enabled is false every call
// creates, initializes and disposes its own connector.
type PoolConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	// MaxObjects caps connectors alive at once, idle or borrowed
	MaxObjects int `yaml:"max_objects" json:"max_objects" mapstructure:"max_objects"`
	// MinIdle is the number of idle connectors eviction leaves in place
	MinIdle int `yaml:"min_idle" json:"min_idle" mapstructure:"min_idle"`
	// MaxWait bounds how long Borrow blocks; zero waits until the caller's context ends
	MaxWait time.Duration `yaml:"max_wait" json:"max_wait" mapstructure:"max_wait"`
	// MaxLifetime destroys connectors older than this on return; zero disables it
	MaxLifetime time.Duration `yaml:"max_lifetime" json:"max_lifetime" mapstructure:"max_lifetime"`
	// MinEvictableIdleTime is how long a connector may sit idle before eviction
	MinEvictableIdleTime time.Duration `yaml:"min_evictable_idle_time" json:"min_evictable_idle_time" mapstructure:"min_evictable_idle_time"`
	// EvictionInterval is the idle sweep period; zero disables the sweeper
	EvictionInterval time.Duration `yaml:"eviction_interval" json:"eviction_interval" mapstructure:"eviction_interval"`
}

// TimeoutConfig contains timeout settings.
type TimeoutConfig struct {
	// Connection timeout for establishing connections
	Connection time.Duration `yaml:"connection" json:"connection" mapstructure:"connection"`
	// Request timeout for individual operations issued by connectors
	Request time.Duration `yaml:"request" json:"request" mapstructure:"request"`
}

// ReliabilityConfig contains retry settings used while connecting.
type ReliabilityConfig struct {
	RetryAttempts int           `yaml:"retry_attempts" json:"retry_attempts" mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay" json:"retry_delay" mapstructure:"retry_delay"`
}

// ObservabilityConfig contains monitoring settings.
type ObservabilityConfig struct {
	EnableMetrics bool   `yaml:"enable_metrics" json:"enable_metrics" mapstructure:"enable_metrics"`
	EnableTracing bool   `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
	LogLevel      string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
}

// NewBaseConfig creates a new BaseConfig with sensible defaults.
//
// Example:
//
//	cfg := config.NewBaseConfig("crm", "postgresql")
//	cfg.Pool.MaxObjects = 4
func NewBaseConfig(name, connectorType string) *BaseConfig {
	return &BaseConfig{
		Name:    name,
		Type:    connectorType,
		Version: "1.0.0",
		Connection: ConnectionConfig{
			Tables:     make(map[string]string),
			Properties: make(map[string]string),
		},
		Pool: PoolConfig{
			Enabled:              false,
			MaxObjects:           10,
			MinIdle:              1,
			MaxWait:              150 * time.Second,
			MinEvictableIdleTime: 2 * time.Minute,
			EvictionInterval:     30 * time.Second,
		},
		Timeouts: TimeoutConfig{
			Connection: 10 * time.Second,
			Request:    30 * time.Second,
		},
		Reliability: ReliabilityConfig{
			RetryAttempts: 3,
			RetryDelay:    time.Second,
		},
		Observability: ObservabilityConfig{
			EnableMetrics: true,
			EnableTracing: false,
			LogLevel:      "info",
		},
	}
}

// Validate validates the configuration for correctness.
func (bc *BaseConfig) Validate() error {
	if bc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if bc.Type == "" {
		return fmt.Errorf("type is required")
	}
	if bc.Pool.Enabled {
		if bc.Pool.MaxObjects <= 0 {
			return fmt.Errorf("pool.max_objects must be positive")
		}
		if bc.Pool.MinIdle < 0 || bc.Pool.MinIdle > bc.Pool.MaxObjects {
			return fmt.Errorf("pool.min_idle must be between 0 and pool.max_objects")
		}
		if bc.Pool.MaxWait < 0 {
			return fmt.Errorf("pool.max_wait cannot be negative")
		}
	}
	if bc.Reliability.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts cannot be negative")
	}
	return nil
}

// Property returns a connector property or def when it is unset.
func (c *ConnectionConfig) Property(key, def string) string {
	if v, ok := c.Properties[key]; ok && v != "" {
		return v
	}
	return def
}

// IntProperty returns a connector property parsed as int, or def.
func (c *ConnectionConfig) IntProperty(key string, def int) int {
	v, ok := c.Properties[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Table maps an object class onto a table or collection name. Unmapped object
// classes are used verbatim.
func (c *ConnectionConfig) Table(objectClass string) string {
	if t, ok := c.Tables[objectClass]; ok && t != "" {
		return t
	}
	return objectClass
}

// Attempts returns the number of connection attempts, at least one.
func (r *ReliabilityConfig) Attempts() int {
	if r.RetryAttempts < 1 {
		return 1
	}
	return r.RetryAttempts
}
