package operations

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/connector/registry"
	"github.com/ajitpratap0/opgate/pkg/errors"
	"github.com/ajitpratap0/opgate/pkg/pool"
)

// Builder assembles facades from connector configurations. Configurations with
// pooling enabled share one pool per connector name through the manager.
type Builder struct {
	manager  *pool.Manager
	registry *registry.Registry
	logger   *zap.Logger
}

// NewBuilder creates a builder resolving connector types in the global
// registry. manager may be nil when no configuration enables pooling.
func NewBuilder(manager *pool.Manager, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		manager:  manager,
		registry: registry.Default(),
		logger:   logger,
	}
}

// WithRegistry makes the builder resolve connector types in r.
func (b *Builder) WithRegistry(r *registry.Registry) *Builder {
	b.registry = r
	return b
}

// Build creates a facade for the connector type named by cfg.Type.
func (b *Builder) Build(ctx context.Context, cfg *config.BaseConfig) (*ConnectorFacade, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "connector configuration is required")
	}
	factory, err := b.registry.Factory(cfg.Type)
	if err != nil {
		return nil, err
	}
	return b.BuildWithFactory(ctx, cfg, factory)
}

// BuildWithFactory creates a facade for connectors produced by factory.
func (b *Builder) BuildWithFactory(ctx context.Context, cfg *config.BaseConfig, factory func() core.Connector) (*ConnectorFacade, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "connector configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	name := cfg.Name

	var p Pool
	if cfg.Pool.Enabled {
		if b.manager == nil {
			return nil, errors.Newf(errors.ErrorTypeConfig, "connector %s enables pooling but no pool manager is configured", name)
		}
		objectPool, err := b.manager.Pool(ctx, name, factory, cfg)
		if err != nil {
			return nil, err
		}
		p = FromObjectPool(objectPool)
	}

	opCtx, err := NewOperationalContext(name, factory, cfg, p, b.logger)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("connector facade built",
		zap.String("connector", name),
		zap.String("type", cfg.Type),
		zap.Bool("pooled", opCtx.IsPooled()))

	return NewConnectorFacade(opCtx), nil
}
