// Package pool keeps initialized connectors around between operations.
//
// An ObjectPool hands out one connector per Borrow; the returned Entry gives the
// connector back (or destroys it) on Close. Pools are sized and timed by the
// pool section of the connector configuration:
//
//	p, err := pool.New(ctx, "crm", factory, cfg, logger)
//	entry, err := p.Borrow(ctx)
//	defer entry.Close()
//	conn := entry.Connector()
//
// Storage and blocking are delegated to puddle; this package adds connector
// lifecycle, liveness checks, idle eviction and metrics.
package pool

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/puddle/v2"
	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
	"github.com/ajitpratap0/opgate/pkg/metrics"
)

// checkAliveTimeout bounds the liveness check run when an entry is returned.
const checkAliveTimeout = 5 * time.Second

// Factory creates an uninitialized connector.
type Factory func() core.Connector

// ObjectPool is a bounded pool of initialized connectors.
type ObjectPool struct {
	name    string
	cfg     *config.BaseConfig
	factory Factory
	logger  *zap.Logger
	pool    *puddle.Pool[core.Connector]

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Stats describes pool occupancy.
type Stats struct {
	Name             string `json:"name"`
	Idle             int32  `json:"idle"`
	Acquired         int32  `json:"acquired"`
	Constructing     int32  `json:"constructing"`
	Total            int32  `json:"total"`
	Max              int32  `json:"max"`
	AcquireCount     int64  `json:"acquire_count"`
	EmptyAcquires    int64  `json:"empty_acquires"`
	CanceledAcquires int64  `json:"canceled_acquires"`
}

// New creates a pool named name. Connectors are built with factory and
// initialized with cfg. The eviction loop starts immediately; call Close to
// stop it and dispose every pooled connector.
func New(ctx context.Context, name string, factory Factory, cfg *config.BaseConfig, logger *zap.Logger) (*ObjectPool, error) {
	if factory == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "pool requires a connector factory")
	}
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "pool requires a connector configuration")
	}
	if cfg.Pool.MaxObjects <= 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "pool %s: max_objects must be positive", name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &ObjectPool{
		name:    name,
		cfg:     cfg,
		factory: factory,
		logger:  logger.With(zap.String("component", "connector_pool"), zap.String("pool", name)),
		stopCh:  make(chan struct{}),
	}

	pp, err := puddle.NewPool(&puddle.Config[core.Connector]{
		Constructor: p.construct,
		Destructor:  p.destroy,
		MaxSize:     int32(cfg.Pool.MaxObjects),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create connector pool")
	}
	p.pool = pp

	if cfg.Pool.EvictionInterval > 0 {
		p.wg.Add(1)
		go p.evictionLoop(cfg.Pool.EvictionInterval)
	}

	p.logger.Info("connector pool created",
		zap.Int("max_objects", cfg.Pool.MaxObjects),
		zap.Int("min_idle", cfg.Pool.MinIdle),
		zap.Duration("max_wait", cfg.Pool.MaxWait))

	return p, nil
}

// Name returns the pool name.
func (p *ObjectPool) Name() string {
	return p.name
}

// Borrow returns an entry holding a connector nobody else is using. It blocks
// until a connector is free, the pool's max wait expires (pool_exhausted), the
// pool is closed (pool_unavailable) or ctx is done (ctx.Err()). Errors from
// creating a new connector are returned as produced.
func (p *ObjectPool) Borrow(ctx context.Context) (*Entry, error) {
	acquireCtx := ctx
	if p.cfg.Pool.MaxWait > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, p.cfg.Pool.MaxWait)
		defer cancel()
	}

	res, err := p.pool.Acquire(acquireCtx)
	if err != nil {
		switch {
		case stderrors.Is(err, puddle.ErrClosedPool):
			metrics.PoolBorrows.WithLabelValues(p.name, "unavailable").Inc()
			return nil, errors.Newf(errors.ErrorTypePoolUnavailable, "connector pool %s is closed", p.name)
		case ctx.Err() != nil:
			metrics.PoolBorrows.WithLabelValues(p.name, "canceled").Inc()
			return nil, ctx.Err()
		case stderrors.Is(err, context.DeadlineExceeded) && acquireCtx.Err() != nil:
			metrics.PoolBorrows.WithLabelValues(p.name, "exhausted").Inc()
			return nil, errors.Newf(errors.ErrorTypePoolExhausted,
				"no connector available in pool %s within %s", p.name, p.cfg.Pool.MaxWait).
				WithDetail("max_objects", p.cfg.Pool.MaxObjects)
		}
		metrics.PoolBorrows.WithLabelValues(p.name, "error").Inc()
		return nil, err
	}

	metrics.PoolBorrows.WithLabelValues(p.name, "success").Inc()
	p.updateGauges()
	return &Entry{pool: p, res: res}, nil
}

// Stats returns a snapshot of pool occupancy and refreshes the pool gauges.
func (p *ObjectPool) Stats() Stats {
	s := p.pool.Stat()
	p.publish(s)
	return Stats{
		Name:             p.name,
		Idle:             s.IdleResources(),
		Acquired:         s.AcquiredResources(),
		Constructing:     s.ConstructingResources(),
		Total:            s.TotalResources(),
		Max:              s.MaxResources(),
		AcquireCount:     s.AcquireCount(),
		EmptyAcquires:    s.EmptyAcquireCount(),
		CanceledAcquires: s.CanceledAcquireCount(),
	}
}

// Close stops eviction, rejects new borrows and disposes every connector. It
// blocks until all borrowed connectors have been returned.
func (p *ObjectPool) Close() {
	p.closeOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()
		p.pool.Close()
		p.publish(p.pool.Stat())
		p.logger.Info("connector pool closed")
	})
}

func (p *ObjectPool) construct(ctx context.Context) (core.Connector, error) {
	if d := p.cfg.Timeouts.Connection; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	conn := p.factory()
	if conn == nil {
		return nil, errors.Newf(errors.ErrorTypeInternal, "connector factory for pool %s returned nil", p.name)
	}
	if err := conn.Init(ctx, p.cfg); err != nil {
		if derr := conn.Dispose(); derr != nil {
			p.logger.Error("failed to dispose connector after init failure", zap.Error(derr))
		}
		return nil, err
	}

	p.logger.Debug("connector created")
	return conn, nil
}

func (p *ObjectPool) destroy(conn core.Connector) {
	if err := conn.Dispose(); err != nil {
		p.logger.Error("failed to dispose pooled connector", zap.Error(err))
		metrics.ReleaseFailures.WithLabelValues(p.name, metrics.ReleaseKindDispose).Inc()
	}
}

func (p *ObjectPool) evictionLoop(interval time.Duration) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.evict()
			p.ensureMinIdle()
		case <-p.stopCh:
			return
		}
	}
}

// evict destroys connectors idle for longer than MinEvictableIdleTime while
// keeping at least MinIdle idle connectors.
func (p *ObjectPool) evict() {
	idle := p.pool.AcquireAllIdle()
	if len(idle) == 0 {
		return
	}

	// longest idle first
	sort.Slice(idle, func(i, j int) bool {
		return idle[i].IdleDuration() > idle[j].IdleDuration()
	})

	removable := len(idle) - p.cfg.Pool.MinIdle
	evicted := 0
	for _, res := range idle {
		if evicted < removable && p.cfg.Pool.MinEvictableIdleTime > 0 && res.IdleDuration() > p.cfg.Pool.MinEvictableIdleTime {
			res.Destroy()
			evicted++
			continue
		}
		res.ReleaseUnused()
	}

	if evicted > 0 {
		metrics.PoolEvictions.WithLabelValues(p.name).Add(float64(evicted))
		p.logger.Info("evicted idle connectors",
			zap.Int("evicted", evicted),
			zap.Int("remaining_idle", len(idle)-evicted))
	}
	p.updateGauges()
}

func (p *ObjectPool) ensureMinIdle() {
	s := p.pool.Stat()
	missing := p.cfg.Pool.MinIdle - int(s.IdleResources())
	if room := int(s.MaxResources() - s.TotalResources()); missing > room {
		missing = room
	}
	for i := 0; i < missing; i++ {
		if err := p.pool.CreateResource(context.Background()); err != nil {
			p.logger.Warn("failed to create idle connector", zap.Error(err))
			return
		}
	}
}

func (p *ObjectPool) updateGauges() {
	p.publish(p.pool.Stat())
}

func (p *ObjectPool) publish(s *puddle.Stat) {
	metrics.PoolConnectors.WithLabelValues(p.name, "idle").Set(float64(s.IdleResources()))
	metrics.PoolConnectors.WithLabelValues(p.name, "acquired").Set(float64(s.AcquiredResources()))
	metrics.PoolConnectors.WithLabelValues(p.name, "total").Set(float64(s.TotalResources()))
}
