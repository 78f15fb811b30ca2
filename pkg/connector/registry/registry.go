// Package registry maps connector type names to connector factories. Connector
// packages register themselves from init; the CLI and the facade builder look
// factories up by the type named in the connector configuration.
package registry

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
	"github.com/ajitpratap0/opgate/pkg/logger"
)

// Factory creates a fresh, uninitialized connector instance.
type Factory func() core.Connector

// ConnectorInfo describes a registered connector.
type ConnectorInfo struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	Version      string                 `json:"version"`
	Capabilities []string               `json:"capabilities"`
	ConfigSchema map[string]interface{} `json:"config_schema,omitempty"`
}

type entry struct {
	factory Factory
	info    *ConnectorInfo
}

// Registry is a concurrency-safe set of named connector factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

var global = NewRegistry()

// Default returns the process-wide registry connector packages register with.
func Default() *Registry {
	return global
}

// Register adds factory under name with a minimal description.
func (r *Registry) Register(name string, factory Factory) error {
	return r.RegisterInfo(factory, &ConnectorInfo{Name: name})
}

// RegisterInfo adds factory under info.Name. When info.Capabilities is empty
// they are derived from a sample instance.
func (r *Registry) RegisterInfo(factory Factory, info *ConnectorInfo) error {
	if factory == nil {
		return errors.Newf(errors.ErrorTypeConfig, "connector %s registered without a factory", info.Name)
	}
	if len(info.Capabilities) == 0 {
		if sample := factory(); sample != nil {
			info.Capabilities = core.Capabilities(sample)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[info.Name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "connector %s already registered", info.Name)
	}
	r.entries[info.Name] = entry{factory: factory, info: info}

	logger.Get().Debug("connector registered",
		zap.String("component", "connector_registry"),
		zap.String("name", info.Name),
		zap.Strings("capabilities", info.Capabilities))
	return nil
}

// Factory returns the factory registered under name.
func (r *Registry) Factory(name string) (Factory, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "connector %s not found", name).
			WithDetail("registered", r.List())
	}
	return e.factory, nil
}

// Create returns a fresh, uninitialized connector.
func (r *Registry) Create(name string) (core.Connector, error) {
	factory, err := r.Factory(name)
	if err != nil {
		return nil, err
	}
	if conn := factory(); conn != nil {
		return conn, nil
	}
	return nil, errors.Newf(errors.ErrorTypeInternal, "factory for connector %s returned nil", name)
}

// Info returns the description registered under name.
func (r *Registry) Info(name string) (*ConnectorInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "connector %s not found", name)
	}
	return e.info, nil
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Infos returns every registered description ordered by name.
func (r *Registry) Infos() []*ConnectorInfo {
	names := r.List()

	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]*ConnectorInfo, 0, len(names))
	for _, name := range names {
		if e, ok := r.entries[name]; ok {
			infos = append(infos, e.info)
		}
	}
	return infos
}

// RegisterConnector registers a connector with the default registry.
func RegisterConnector(name, description, version string, factory Factory, configSchema map[string]interface{}) error {
	return global.RegisterInfo(factory, &ConnectorInfo{
		Name:         name,
		Description:  description,
		Version:      version,
		ConfigSchema: configSchema,
	})
}

// GetConnectorInfo describes a connector in the default registry.
func GetConnectorInfo(name string) (*ConnectorInfo, error) {
	return global.Info(name)
}

// ListConnectorInfo describes every connector in the default registry.
func ListConnectorInfo() []*ConnectorInfo {
	return global.Infos()
}
