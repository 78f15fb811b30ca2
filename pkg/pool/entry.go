package pool

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jackc/puddle/v2"
	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
	"github.com/ajitpratap0/opgate/pkg/metrics"
)

// Entry is one borrowed connector. Close hands it back exactly once.
type Entry struct {
	pool   *ObjectPool
	res    *puddle.Resource[core.Connector]
	closed atomic.Bool
}

// Connector returns the borrowed connector.
func (e *Entry) Connector() core.Connector {
	return e.res.Value()
}

// Close returns the connector to its pool. Connectors that fail CheckAlive or
// outlived the pool's max lifetime are destroyed instead.
func (e *Entry) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return errors.New(errors.ErrorTypeInternal, "pool entry already closed")
	}

	p := e.pool
	if maxLife := p.cfg.Pool.MaxLifetime; maxLife > 0 && time.Since(e.res.CreationTime()) > maxLife {
		p.logger.Debug("destroying connector past max lifetime", zap.Duration("max_lifetime", maxLife))
		e.destroy()
		return nil
	}

	if pc, ok := e.res.Value().(core.PoolableConnector); ok {
		ctx, cancel := context.WithTimeout(context.Background(), checkAliveTimeout)
		err := pc.CheckAlive(ctx)
		cancel()
		if err != nil {
			p.logger.Warn("connector failed liveness check, destroying", zap.Error(err))
			e.destroy()
			return nil
		}
	}

	e.res.Release()
	metrics.PoolReturns.WithLabelValues(p.name, "reused").Inc()
	p.updateGauges()
	return nil
}

func (e *Entry) destroy() {
	e.res.Destroy()
	metrics.PoolReturns.WithLabelValues(e.pool.name, "destroyed").Inc()
	e.pool.updateGauges()
}
