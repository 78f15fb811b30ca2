package operations

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

// OperationalContext is the per-facade configuration shared read-only by all
// calls made through the facade.
type OperationalContext struct {
	name    string
	factory func() core.Connector
	cfg     *config.BaseConfig
	pool    Pool
	logger  *zap.Logger
}

// NewOperationalContext builds a context. A nil pool selects transient mode:
// every call creates, initializes and disposes its own connector.
func NewOperationalContext(name string, factory func() core.Connector, cfg *config.BaseConfig, pool Pool, logger *zap.Logger) (*OperationalContext, error) {
	if name == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "operational context requires a connector name")
	}
	if factory == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "operational context requires a connector factory")
	}
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "operational context requires a connector configuration")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OperationalContext{
		name:    name,
		factory: factory,
		cfg:     cfg,
		pool:    pool,
		logger:  logger.With(zap.String("component", "operations"), zap.String("connector", name)),
	}, nil
}

// Name returns the connector key.
func (c *OperationalContext) Name() string { return c.name }

// Config returns the connector configuration.
func (c *OperationalContext) Config() *config.BaseConfig { return c.cfg }

// Pool returns the configured pool, or nil in transient mode.
func (c *OperationalContext) Pool() Pool { return c.pool }

// IsPooled reports whether connectors are borrowed from a pool.
func (c *OperationalContext) IsPooled() bool { return c.pool != nil }

// Logger returns the context logger.
func (c *OperationalContext) Logger() *zap.Logger { return c.logger }
