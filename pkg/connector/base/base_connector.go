// Package base provides the BaseConnector every opgate connector embeds. It
// carries the pieces all connectors share: identity, the configuration passed
// to Init, a logger scoped to the connector, the dial backoff used to open
// sessions and the once-only dispose guard.
//
// # Usage
//
//	type Connector struct {
//	    *base.BaseConnector
//	    conn *pgx.Conn
//	}
//
//	func New() core.Connector {
//	    return &Connector{BaseConnector: base.NewBaseConnector("postgresql", "1.0.0")}
//	}
//
//	func (c *Connector) Init(ctx context.Context, cfg *config.BaseConfig) error {
//	    if err := c.Initialize(ctx, cfg); err != nil {
//	        return err
//	    }
//	    return c.ExecuteWithRetry(ctx, func() error { ... dial ... })
//	}
//
// # Lifecycle
//
// Init is called once per instance, by the pool constructor or by the dispatch
// layer in transient mode. Dispose is called once when the instance is
// discarded; BeginDispose lets connectors make repeated calls harmless.
package base

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/errors"
	"github.com/ajitpratap0/opgate/pkg/logger"
)

// BaseConnector provides common functionality for all connectors.
type BaseConnector struct {
	name    string
	version string
	config  *config.BaseConfig
	logger  *zap.Logger

	backoff      *DialBackoff
	errorHandler *ErrorHandler
	health       *HealthChecker

	initialized atomic.Bool
	disposed    atomic.Bool
	mu          sync.RWMutex
}

// NewBaseConnector creates a base connector with the given name and version.
func NewBaseConnector(name, version string) *BaseConnector {
	return &BaseConnector{
		name:         name,
		version:      version,
		logger:       logger.Get().With(zap.String("connector", name)),
		backoff:      NewDialBackoff(3, time.Second),
		errorHandler: NewErrorHandler(),
	}
}

// Initialize validates cfg and stores it. Connectors call it first thing in Init.
func (bc *BaseConnector) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	if cfg == nil {
		return errors.New(errors.ErrorTypeConfig, "connector configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid connector configuration")
	}
	if bc.disposed.Load() {
		return errors.Newf(errors.ErrorTypeInternal, "connector %s already disposed", bc.name)
	}
	if !bc.initialized.CompareAndSwap(false, true) {
		return errors.Newf(errors.ErrorTypeInternal, "connector %s already initialized", bc.name)
	}

	bc.mu.Lock()
	bc.config = cfg
	bc.logger = logger.Get().With(
		zap.String("connector", bc.name),
		zap.String("instance", cfg.Name))
	bc.backoff = NewDialBackoff(cfg.Reliability.Attempts(), cfg.Reliability.RetryDelay)
	bc.mu.Unlock()

	bc.logger.Debug("connector initialized", zap.String("version", bc.version))
	return nil
}

// Name returns the connector type name.
func (bc *BaseConnector) Name() string {
	return bc.name
}

// Version returns the connector version.
func (bc *BaseConnector) Version() string {
	return bc.version
}

// Config returns the configuration passed to Initialize.
func (bc *BaseConnector) Config() *config.BaseConfig {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.config
}

// Logger returns the connector logger.
func (bc *BaseConnector) Logger() *zap.Logger {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.logger
}

// IsInitialized reports whether Initialize succeeded.
func (bc *BaseConnector) IsInitialized() bool {
	return bc.initialized.Load()
}

// RequireInitialized fails unless the connector is initialized and not disposed.
func (bc *BaseConnector) RequireInitialized() error {
	if !bc.initialized.Load() {
		return errors.Newf(errors.ErrorTypeInternal, "connector %s is not initialized", bc.name)
	}
	if bc.disposed.Load() {
		return errors.Newf(errors.ErrorTypeInternal, "connector %s is disposed", bc.name)
	}
	return nil
}

// BeginDispose returns true exactly once. Connectors release their sessions
// only when it does.
func (bc *BaseConnector) BeginDispose() bool {
	if !bc.disposed.CompareAndSwap(false, true) {
		return false
	}
	if bc.health != nil {
		bc.health.Reset()
	}
	bc.Logger().Debug("connector disposed")
	return true
}

// ExecuteWithRetry runs fn under the configured dial backoff. Only errors the
// error handler deems transient are retried.
func (bc *BaseConnector) ExecuteWithRetry(ctx context.Context, fn func() error) error {
	bc.mu.RLock()
	backoff := bc.backoff
	bc.mu.RUnlock()

	return backoff.Do(ctx, fn, func(err error, attempt int) bool {
		if !bc.errorHandler.ShouldRetry(err) {
			return false
		}
		bc.Logger().Warn("retrying after transient error",
			zap.Int("attempt", attempt),
			zap.Error(err))
		return true
	})
}

// Classify converts a driver error into a typed error. Typed errors pass
// through unchanged.
func (bc *BaseConnector) Classify(err error, message string) error {
	return bc.errorHandler.Classify(err, message)
}

// SetHealthCheck installs the probe used by CheckAlive.
func (bc *BaseConnector) SetHealthCheck(probe func(ctx context.Context) error) {
	bc.health = NewHealthChecker(bc.name, probe)
}

// CheckAlive runs the installed probe. Connectors without a probe are always
// considered alive while initialized.
func (bc *BaseConnector) CheckAlive(ctx context.Context) error {
	if err := bc.RequireInitialized(); err != nil {
		return err
	}
	if bc.health == nil {
		return nil
	}
	return bc.health.Check(ctx)
}
