package operations

import (
	"context"
	"strconv"

	"github.com/ajitpratap0/opgate/pkg/connector/api"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

// ConnectorRunner serves one call against one connector. It checks that the
// connector supports the operation, validates arguments and fills in behavior
// connectors may leave out: in-memory filtering, paging and projection.
type ConnectorRunner struct {
	opCtx     *OperationalContext
	connector core.Connector
}

var _ api.ConnectorFacade = (*ConnectorRunner)(nil)

// NewConnectorRunner is the default RunnerFactory.
func NewConnectorRunner(opCtx *OperationalContext, connector core.Connector) (api.ConnectorFacade, error) {
	if connector == nil {
		return nil, errors.New(errors.ErrorTypeInternal, "runner requires a connector")
	}
	return &ConnectorRunner{opCtx: opCtx, connector: connector}, nil
}

func (r *ConnectorRunner) unsupported(operation string) error {
	return errors.Newf(errors.ErrorTypeCapability, "connector %s does not support %s", r.opCtx.Name(), operation).
		WithDetail("capabilities", core.Capabilities(r.connector))
}

func (r *ConnectorRunner) Test(ctx context.Context) error {
	op, ok := r.connector.(core.TestOp)
	if !ok {
		return r.unsupported(api.OpTest)
	}
	return op.Test(ctx)
}

func (r *ConnectorRunner) Schema(ctx context.Context) (*core.Schema, error) {
	op, ok := r.connector.(core.SchemaOp)
	if !ok {
		return nil, r.unsupported(api.OpSchema)
	}
	return op.Schema(ctx)
}

func (r *ConnectorRunner) Search(ctx context.Context, objectClass core.ObjectClass, filter core.Filter, handler core.ResultsHandler, options *core.OperationOptions) (*core.SearchResult, error) {
	if err := requireObjectClass(objectClass); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "search requires a results handler")
	}
	op, ok := r.connector.(core.SearchOp)
	if !ok {
		return nil, r.unsupported(api.OpSearch)
	}

	var (
		pageSize, offset int
		attrs            []string
	)
	if options != nil {
		pageSize = options.PageSize
		offset = options.PagedResultsOffset
		attrs = options.AttributesToGet
	}
	if pageSize < 0 || offset < 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "page size and offset must not be negative")
	}

	delivered := 0
	pageFull := false
	result, err := op.ExecuteQuery(ctx, objectClass, filter, func(obj *core.ConnectorObject) bool {
		if obj == nil || !core.Matches(filter, obj) {
			return true
		}
		if pageSize > 0 && delivered >= pageSize {
			pageFull = true
			return false
		}
		delivered++
		if !handler(obj.Project(attrs)) {
			return false
		}
		if pageSize > 0 && delivered >= pageSize {
			pageFull = true
			return false
		}
		return true
	}, options)
	if err != nil {
		return nil, err
	}

	if result == nil {
		result = &core.SearchResult{RemainingResults: -1}
	}
	if pageFull && result.PagedResultsCookie == "" {
		result.PagedResultsCookie = strconv.Itoa(offset + delivered)
	}
	return result, nil
}

func (r *ConnectorRunner) GetObject(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, options *core.OperationOptions) (*core.ConnectorObject, error) {
	if err := requireUid(uid); err != nil {
		return nil, err
	}

	getOptions := &core.OperationOptions{}
	if options != nil {
		getOptions.AttributesToGet = options.AttributesToGet
	}

	var found *core.ConnectorObject
	_, err := r.Search(ctx, objectClass, core.Equals(core.UidAttribute, string(uid)), func(obj *core.ConnectorObject) bool {
		found = obj
		return false
	}, getOptions)
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (r *ConnectorRunner) Create(ctx context.Context, objectClass core.ObjectClass, attrs map[string]interface{}, options *core.OperationOptions) (core.Uid, error) {
	if err := requireObjectClass(objectClass); err != nil {
		return "", err
	}
	if len(attrs) == 0 {
		return "", errors.New(errors.ErrorTypeValidation, "create requires at least one attribute")
	}
	op, ok := r.connector.(core.CreateOp)
	if !ok {
		return "", r.unsupported(api.OpCreate)
	}
	return op.Create(ctx, objectClass, attrs, options)
}

func (r *ConnectorRunner) Update(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, attrs map[string]interface{}, options *core.OperationOptions) (core.Uid, error) {
	if err := requireObjectClass(objectClass); err != nil {
		return "", err
	}
	if err := requireUid(uid); err != nil {
		return "", err
	}
	if len(attrs) == 0 {
		return "", errors.New(errors.ErrorTypeValidation, "update requires at least one attribute")
	}
	op, ok := r.connector.(core.UpdateOp)
	if !ok {
		return "", r.unsupported(api.OpUpdate)
	}
	return op.Update(ctx, objectClass, uid, attrs, options)
}

func (r *ConnectorRunner) Delete(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, options *core.OperationOptions) error {
	if err := requireObjectClass(objectClass); err != nil {
		return err
	}
	if err := requireUid(uid); err != nil {
		return err
	}
	op, ok := r.connector.(core.DeleteOp)
	if !ok {
		return r.unsupported(api.OpDelete)
	}
	return op.Delete(ctx, objectClass, uid, options)
}

func (r *ConnectorRunner) Subscribe(ctx context.Context, objectClass core.ObjectClass, filter core.Filter, handler core.ChangeHandler, options *core.OperationOptions) (core.Subscription, error) {
	if err := requireObjectClass(objectClass); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "subscribe requires a change handler")
	}
	op, ok := r.connector.(core.SubscribeOp)
	if !ok {
		return nil, r.unsupported(api.OpSubscribe)
	}

	var attrs []string
	if options != nil {
		attrs = options.AttributesToGet
	}
	return op.Subscribe(ctx, objectClass, func(event *core.ChangeEvent) bool {
		if event == nil {
			return true
		}
		// deletes usually carry nothing but the uid
		if event.Object != nil && event.Type != core.ChangeTypeDelete {
			if !core.Matches(filter, event.Object) {
				return true
			}
			projected := *event
			projected.Object = event.Object.Project(attrs)
			return handler(&projected)
		}
		return handler(event)
	}, options)
}

func requireObjectClass(oc core.ObjectClass) error {
	if oc == "" {
		return errors.New(errors.ErrorTypeValidation, "object class must not be empty")
	}
	return nil
}

func requireUid(uid core.Uid) error {
	if uid == "" {
		return errors.New(errors.ErrorTypeValidation, "uid must not be empty")
	}
	return nil
}
