package operations

import (
	"sync/atomic"

	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/metrics"
)

// deferredSubscription keeps a connector bound to a live subscription and
// releases it on the first Close.
type deferredSubscription struct {
	inner    core.Subscription
	lease    *lease
	released atomic.Bool
}

func newDeferredSubscription(inner core.Subscription, l *lease) *deferredSubscription {
	metrics.DeferredOutstanding.WithLabelValues(l.opCtx.name).Inc()
	return &deferredSubscription{inner: inner, lease: l}
}

// Close stops the inner subscription, then releases the connector. Only the
// first of any number of concurrent Close calls releases; the release happens
// even if the inner Close fails or panics.
func (d *deferredSubscription) Close() error {
	defer func() {
		if d.released.CompareAndSwap(false, true) {
			d.lease.release()
			metrics.DeferredOutstanding.WithLabelValues(d.lease.opCtx.name).Dec()
		}
	}()
	return d.inner.Close()
}

// IsUnsubscribed reports the state of the inner subscription.
func (d *deferredSubscription) IsUnsubscribed() bool {
	return d.inner.IsUnsubscribed()
}

// Unwrap returns the connector's own subscription.
func (d *deferredSubscription) Unwrap() core.Subscription {
	return d.inner
}
