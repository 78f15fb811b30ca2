package operations

import (
	"context"

	"github.com/ajitpratap0/opgate/pkg/connector/api"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
)

// ConnectorFacade is the caller-facing api.ConnectorFacade. Every method is one
// Invoke against a runner built by the facade's runner factory.
type ConnectorFacade struct {
	proxy *Proxy[api.ConnectorFacade]
}

var _ api.ConnectorFacade = (*ConnectorFacade)(nil)

// NewConnectorFacade creates a facade using the default ConnectorRunner.
func NewConnectorFacade(opCtx *OperationalContext) *ConnectorFacade {
	return NewConnectorFacadeWithFactory(opCtx, NewConnectorRunner)
}

// NewConnectorFacadeWithFactory creates a facade using a custom runner factory.
func NewConnectorFacadeWithFactory(opCtx *OperationalContext, factory RunnerFactory[api.ConnectorFacade]) *ConnectorFacade {
	return &ConnectorFacade{proxy: NewProxy(opCtx, factory)}
}

// Context returns the facade's operational context.
func (f *ConnectorFacade) Context() *OperationalContext {
	return f.proxy.Context()
}

// String identifies the facade. It never acquires a connector.
func (f *ConnectorFacade) String() string {
	return f.proxy.String()
}

func (f *ConnectorFacade) Test(ctx context.Context) error {
	_, err := Invoke(ctx, f.proxy, api.OpTest, func(ctx context.Context, r api.ConnectorFacade) (struct{}, error) {
		return struct{}{}, r.Test(ctx)
	})
	return err
}

func (f *ConnectorFacade) Schema(ctx context.Context) (*core.Schema, error) {
	return Invoke(ctx, f.proxy, api.OpSchema, func(ctx context.Context, r api.ConnectorFacade) (*core.Schema, error) {
		return r.Schema(ctx)
	})
}

func (f *ConnectorFacade) Search(ctx context.Context, objectClass core.ObjectClass, filter core.Filter, handler core.ResultsHandler, options *core.OperationOptions) (*core.SearchResult, error) {
	return Invoke(ctx, f.proxy, api.OpSearch, func(ctx context.Context, r api.ConnectorFacade) (*core.SearchResult, error) {
		return r.Search(ctx, objectClass, filter, handler, options)
	})
}

func (f *ConnectorFacade) GetObject(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, options *core.OperationOptions) (*core.ConnectorObject, error) {
	return Invoke(ctx, f.proxy, api.OpGet, func(ctx context.Context, r api.ConnectorFacade) (*core.ConnectorObject, error) {
		return r.GetObject(ctx, objectClass, uid, options)
	})
}

func (f *ConnectorFacade) Create(ctx context.Context, objectClass core.ObjectClass, attrs map[string]interface{}, options *core.OperationOptions) (core.Uid, error) {
	return Invoke(ctx, f.proxy, api.OpCreate, func(ctx context.Context, r api.ConnectorFacade) (core.Uid, error) {
		return r.Create(ctx, objectClass, attrs, options)
	})
}

func (f *ConnectorFacade) Update(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, attrs map[string]interface{}, options *core.OperationOptions) (core.Uid, error) {
	return Invoke(ctx, f.proxy, api.OpUpdate, func(ctx context.Context, r api.ConnectorFacade) (core.Uid, error) {
		return r.Update(ctx, objectClass, uid, attrs, options)
	})
}

func (f *ConnectorFacade) Delete(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, options *core.OperationOptions) error {
	_, err := Invoke(ctx, f.proxy, api.OpDelete, func(ctx context.Context, r api.ConnectorFacade) (struct{}, error) {
		return struct{}{}, r.Delete(ctx, objectClass, uid, options)
	})
	return err
}

func (f *ConnectorFacade) Subscribe(ctx context.Context, objectClass core.ObjectClass, filter core.Filter, handler core.ChangeHandler, options *core.OperationOptions) (core.Subscription, error) {
	return Invoke(ctx, f.proxy, api.OpSubscribe, func(ctx context.Context, r api.ConnectorFacade) (core.Subscription, error) {
		return r.Subscribe(ctx, objectClass, filter, handler, options)
	})
}
