package operations

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
	"github.com/ajitpratap0/opgate/pkg/logger"
	"github.com/ajitpratap0/opgate/pkg/metrics"
	"github.com/ajitpratap0/opgate/pkg/observability"
	"github.com/ajitpratap0/opgate/pkg/pool"
)

// Pool lends connectors for the duration of one call.
type Pool interface {
	Borrow(ctx context.Context) (PoolEntry, error)
}

// PoolEntry is one borrowed connector. Close hands it back.
type PoolEntry interface {
	Connector() core.Connector
	Close() error
}

// RunnerFactory binds a runner to the connector serving one call.
type RunnerFactory[R any] func(opCtx *OperationalContext, connector core.Connector) (R, error)

// Proxy binds an operational context to a runner factory.
type Proxy[R any] struct {
	opCtx   *OperationalContext
	factory RunnerFactory[R]
}

// NewProxy creates a proxy.
func NewProxy[R any](opCtx *OperationalContext, factory RunnerFactory[R]) *Proxy[R] {
	return &Proxy[R]{opCtx: opCtx, factory: factory}
}

// Context returns the operational context.
func (p *Proxy[R]) Context() *OperationalContext { return p.opCtx }

// String identifies the proxy without acquiring a connector.
func (p *Proxy[R]) String() string {
	mode := "transient"
	if p.opCtx.IsPooled() {
		mode = "pooled"
	}
	return fmt.Sprintf("ConnectorFacade{connector=%s, mode=%s}", p.opCtx.Name(), mode)
}

// Invoke runs call against a runner bound to a freshly acquired connector.
//
// The connector is released before Invoke returns, whether call succeeds,
// fails or panics. When call returns a core.Subscription the release is moved
// to the Close method of the returned subscription instead. Errors from
// acquisition, runner construction and call are returned unchanged; errors
// from releasing the connector are logged and dropped.
func Invoke[R, T any](ctx context.Context, p *Proxy[R], operation string, call func(ctx context.Context, runner R) (T, error)) (result T, err error) {
	opCtx := p.opCtx
	ctx = logger.ContextWithOperation(logger.ContextWithConnector(ctx, opCtx.Name()), operation)
	ctx, span := observability.StartOperation(ctx, opCtx.Name(), operation, opCtx.IsPooled())
	timer := metrics.NewTimer(operation)

	deferred := false
	defer func() {
		metrics.ObserveOperation(opCtx.Name(), operation, err, timer.Stop())
		observability.EndOperation(span, err, deferred)
	}()

	l, err := acquire(ctx, opCtx, operation)
	if err != nil {
		return result, err
	}

	handedOff := false
	defer func() {
		if !handedOff {
			l.release()
		}
	}()

	runner, err := p.factory(opCtx, l.connector)
	if err != nil {
		return result, err
	}

	ret, err := call(ctx, runner)
	if err != nil {
		// a stream opened before the failure must stop before its connector
		// goes back to the pool
		if sub, ok := any(ret).(core.Subscription); ok && sub != nil {
			if cerr := sub.Close(); cerr != nil {
				l.log.Error("failed to close subscription", zap.Error(cerr))
			}
		}
		return result, err
	}

	sub, ok := any(ret).(core.Subscription)
	if !ok || sub == nil {
		return ret, nil
	}

	wrapped := newDeferredSubscription(sub, l)
	out, ok := any(wrapped).(T)
	if !ok {
		// the deferred wrapper cannot travel back as T; shut the stream down
		// so the connector can be released now
		if cerr := sub.Close(); cerr != nil {
			l.log.Error("failed to close subscription", zap.Error(cerr))
		}
		wrapped.released.Store(true)
		metrics.DeferredOutstanding.WithLabelValues(opCtx.Name()).Dec()
		return result, errors.Newf(errors.ErrorTypeInternal,
			"operation %s returned a subscription as %T which cannot carry deferred release", operation, ret)
	}

	handedOff = true
	deferred = true
	return out, nil
}

// lease is one acquired connector together with the pool entry it came from.
// log carries the operation and request id of the call that acquired it.
type lease struct {
	opCtx     *OperationalContext
	connector core.Connector
	entry     PoolEntry
	log       *zap.Logger
}

func acquire(ctx context.Context, opCtx *OperationalContext, operation string) (*lease, error) {
	log := opCtx.logger.With(zap.String("operation", operation))
	if id, ok := logger.RequestID(ctx); ok {
		log = log.With(zap.String("request_id", id))
	}

	if opCtx.pool != nil {
		entry, err := opCtx.pool.Borrow(ctx)
		if err != nil {
			return nil, err
		}
		return &lease{opCtx: opCtx, connector: entry.Connector(), entry: entry, log: log}, nil
	}

	conn := opCtx.factory()
	if conn == nil {
		return nil, errors.Newf(errors.ErrorTypeInternal, "connector factory for %s returned nil", opCtx.name)
	}
	if err := conn.Init(ctx, opCtx.cfg); err != nil {
		if derr := conn.Dispose(); derr != nil {
			log.Error("failed to dispose connector after init failure", zap.Error(derr))
		}
		return nil, err
	}
	return &lease{opCtx: opCtx, connector: conn, log: log}, nil
}

// release gives the connector back. It never fails: cleanup errors are logged
// and counted.
func (l *lease) release() {
	if l.entry != nil {
		if err := l.entry.Close(); err != nil {
			l.log.Error("failed to return connector to pool", zap.Error(err))
			metrics.ReleaseFailures.WithLabelValues(l.opCtx.name, metrics.ReleaseKindPoolReturn).Inc()
		}
		return
	}
	if err := l.connector.Dispose(); err != nil {
		l.log.Error("failed to dispose connector", zap.Error(err))
		metrics.ReleaseFailures.WithLabelValues(l.opCtx.name, metrics.ReleaseKindDispose).Inc()
	}
}

type objectPool struct {
	p *pool.ObjectPool
}

// FromObjectPool adapts a connector pool to the Pool interface.
func FromObjectPool(p *pool.ObjectPool) Pool {
	return objectPool{p: p}
}

func (o objectPool) Borrow(ctx context.Context) (PoolEntry, error) {
	entry, err := o.p.Borrow(ctx)
	if err != nil {
		return nil, err
	}
	return entry, nil
}
