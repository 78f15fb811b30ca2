package pool

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

// Manager owns one pool per connector key.
type Manager struct {
	mu       sync.Mutex
	pools    map[string]*ObjectPool
	logger   *zap.Logger
	disposed bool
}

// NewManager creates an empty manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		pools:  make(map[string]*ObjectPool),
		logger: logger,
	}
}

// Pool returns the pool registered under key, creating it on first use.
func (m *Manager) Pool(ctx context.Context, key string, factory Factory, cfg *config.BaseConfig) (*ObjectPool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return nil, errors.New(errors.ErrorTypePoolUnavailable, "pool manager disposed")
	}
	if p, ok := m.pools[key]; ok {
		return p, nil
	}

	p, err := New(ctx, key, factory, cfg, m.logger)
	if err != nil {
		return nil, err
	}
	m.pools[key] = p
	return p, nil
}

// Stats returns a snapshot for every managed pool.
func (m *Manager) Stats() []Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Stats, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, p.Stats())
	}
	return out
}

// Dispose closes every pool. Later calls to Pool fail with pool_unavailable.
func (m *Manager) Dispose() {
	m.mu.Lock()
	pools := m.pools
	m.pools = make(map[string]*ObjectPool)
	m.disposed = true
	m.mu.Unlock()

	for key, p := range pools {
		p.Close()
		m.logger.Debug("disposed connector pool", zap.String("pool", key))
	}
}
