package operations

import (
	"context"
	stderrors "errors"
	"sync/atomic"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
)

// fakeConnector implements every operation capability against a fixed set of
// objects and counts lifecycle calls.
type fakeConnector struct {
	objects    []*core.ConnectorObject
	initErr    error
	disposeErr error
	opErr      error
	sub        *fakeSubscription

	inits    atomic.Int64
	disposes atomic.Int64
	calls    atomic.Int64
}

func (c *fakeConnector) Init(ctx context.Context, cfg *config.BaseConfig) error {
	c.inits.Add(1)
	return c.initErr
}

func (c *fakeConnector) Dispose() error {
	c.disposes.Add(1)
	return c.disposeErr
}

func (c *fakeConnector) Test(ctx context.Context) error {
	c.calls.Add(1)
	return c.opErr
}

func (c *fakeConnector) ExecuteQuery(ctx context.Context, oc core.ObjectClass, filter core.Filter, handler core.ResultsHandler, opts *core.OperationOptions) (*core.SearchResult, error) {
	c.calls.Add(1)
	if c.opErr != nil {
		return nil, c.opErr
	}
	// ignores the filter on purpose so the runner has to apply it
	for _, obj := range c.objects {
		if !handler(obj) {
			break
		}
	}
	return &core.SearchResult{RemainingResults: -1}, nil
}

func (c *fakeConnector) Create(ctx context.Context, oc core.ObjectClass, attrs map[string]interface{}, opts *core.OperationOptions) (core.Uid, error) {
	c.calls.Add(1)
	if c.opErr != nil {
		return "", c.opErr
	}
	return core.Uid("created-1"), nil
}

func (c *fakeConnector) Subscribe(ctx context.Context, oc core.ObjectClass, handler core.ChangeHandler, opts *core.OperationOptions) (core.Subscription, error) {
	c.calls.Add(1)
	if c.opErr != nil {
		return nil, c.opErr
	}
	if c.sub == nil {
		c.sub = &fakeSubscription{}
	}
	c.sub.handler = handler
	return c.sub, nil
}

// plainConnector only has a lifecycle.
type plainConnector struct {
	disposes atomic.Int64
}

func (c *plainConnector) Init(ctx context.Context, cfg *config.BaseConfig) error { return nil }
func (c *plainConnector) Dispose() error {
	c.disposes.Add(1)
	return nil
}

type fakeSubscription struct {
	handler  core.ChangeHandler
	closeErr error
	closes   atomic.Int64
	stopped  atomic.Bool
}

func (s *fakeSubscription) Close() error {
	s.closes.Add(1)
	s.stopped.Store(true)
	return s.closeErr
}

func (s *fakeSubscription) IsUnsubscribed() bool {
	return s.stopped.Load()
}

func (s *fakeSubscription) emit(event *core.ChangeEvent) bool {
	return s.handler(event)
}

// fakePool lends the same connector to every borrower.
type fakePool struct {
	connector core.Connector
	borrowErr error
	closeErr  error

	borrows atomic.Int64
	closes  atomic.Int64
}

func (p *fakePool) Borrow(ctx context.Context) (PoolEntry, error) {
	p.borrows.Add(1)
	if p.borrowErr != nil {
		return nil, p.borrowErr
	}
	return &fakeEntry{pool: p}, nil
}

type fakeEntry struct {
	pool *fakePool
}

func (e *fakeEntry) Connector() core.Connector { return e.pool.connector }

func (e *fakeEntry) Close() error {
	e.pool.closes.Add(1)
	return e.pool.closeErr
}

var errInvalidCredentials = stderrors.New("invalid credentials")

func testObjects() []*core.ConnectorObject {
	return []*core.ConnectorObject{
		{ObjectClass: "users", Uid: "1", Attributes: map[string]interface{}{"name": "alice", "team": "core", "age": 31}},
		{ObjectClass: "users", Uid: "2", Attributes: map[string]interface{}{"name": "bob", "team": "edge", "age": 45}},
		{ObjectClass: "users", Uid: "3", Attributes: map[string]interface{}{"name": "carol", "team": "core", "age": 28}},
		{ObjectClass: "users", Uid: "4", Attributes: map[string]interface{}{"name": "dave", "team": "core", "age": 52}},
	}
}
