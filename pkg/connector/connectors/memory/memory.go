// Package memory provides an in-process connector. Objects live in named
// stores shared by every instance configured with the same store name, so
// pooled and transient instances see the same data.
package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/base"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

// Name is the registered connector type.
const Name = "memory"

// Connector is an in-memory connector supporting every operation.
type Connector struct {
	*base.BaseConnector
	store *store
}

var (
	_ core.PoolableConnector = (*Connector)(nil)
	_ core.TestOp            = (*Connector)(nil)
	_ core.SchemaOp          = (*Connector)(nil)
	_ core.SearchOp          = (*Connector)(nil)
	_ core.CreateOp          = (*Connector)(nil)
	_ core.UpdateOp          = (*Connector)(nil)
	_ core.DeleteOp          = (*Connector)(nil)
	_ core.SubscribeOp       = (*Connector)(nil)
)

// New creates an uninitialized memory connector.
func New() core.Connector {
	return &Connector{BaseConnector: base.NewBaseConnector(Name, "1.0.0")}
}

// Init attaches the connector to its store. The store name comes from the
// "store" property and defaults to the connector name.
func (c *Connector) Init(ctx context.Context, cfg *config.BaseConfig) error {
	if err := c.Initialize(ctx, cfg); err != nil {
		return err
	}
	name := cfg.Connection.Property("store", cfg.Name)
	c.store = openStore(name)
	c.SetHealthCheck(func(context.Context) error {
		if c.store == nil {
			return errors.New(errors.ErrorTypeHealth, "store detached")
		}
		return nil
	})
	c.Logger().Debug("memory connector attached", zap.String("store", name))
	return nil
}

// Dispose detaches from the store. Data stays in place for other instances.
func (c *Connector) Dispose() error {
	if !c.BeginDispose() {
		return nil
	}
	c.store = nil
	return nil
}

func (c *Connector) Test(ctx context.Context) error {
	return c.RequireInitialized()
}

// Schema infers attributes from the stored objects.
func (c *Connector) Schema(ctx context.Context) (*core.Schema, error) {
	if err := c.RequireInitialized(); err != nil {
		return nil, err
	}

	names := c.store.classNames()
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	schema := &core.Schema{ObjectClasses: make([]core.ObjectClassInfo, 0, len(names))}
	for _, name := range names {
		types := make(map[string]string)
		for _, obj := range c.store.snapshot(name) {
			for k, v := range obj.Attributes {
				if _, seen := types[k]; !seen {
					types[k] = fmt.Sprintf("%T", v)
				}
			}
		}
		info := core.ObjectClassInfo{Name: name}
		attrs := make([]string, 0, len(types))
		for attr := range types {
			attrs = append(attrs, attr)
		}
		sort.Strings(attrs)
		for _, attr := range attrs {
			info.Attributes = append(info.Attributes, core.AttributeInfo{Name: attr, Type: types[attr]})
		}
		schema.ObjectClasses = append(schema.ObjectClasses, info)
	}
	return schema, nil
}

// ExecuteQuery walks objects in insertion order.
func (c *Connector) ExecuteQuery(ctx context.Context, objectClass core.ObjectClass, filter core.Filter, handler core.ResultsHandler, options *core.OperationOptions) (*core.SearchResult, error) {
	if err := c.RequireInitialized(); err != nil {
		return nil, err
	}

	objects := c.store.snapshot(objectClass)
	emit := core.SkipMatching(filter, options.Offset(), handler)
	remaining := 0
	for i, obj := range objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !core.Matches(filter, obj) {
			continue
		}
		if !emit(obj) {
			for _, rest := range objects[i+1:] {
				if core.Matches(filter, rest) {
					remaining++
				}
			}
			break
		}
	}
	return &core.SearchResult{RemainingResults: remaining}, nil
}

// Create stores attrs under a new random Uid, or under attrs[__UID__] when set.
func (c *Connector) Create(ctx context.Context, objectClass core.ObjectClass, attrs map[string]interface{}, options *core.OperationOptions) (core.Uid, error) {
	if err := c.RequireInitialized(); err != nil {
		return "", err
	}

	uid := core.Uid(uuid.NewString())
	values := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		if k == core.UidAttribute {
			uid = core.Uid(fmt.Sprint(v))
			continue
		}
		values[k] = v
	}

	for _, obj := range c.store.snapshot(objectClass) {
		if obj.Uid == uid {
			return "", errors.Newf(errors.ErrorTypeConflict, "%s already exists", obj)
		}
	}
	c.store.put(objectClass, uid, values, false)
	return uid, nil
}

// Update merges attrs into the object. A nil value removes the attribute.
func (c *Connector) Update(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, attrs map[string]interface{}, options *core.OperationOptions) (core.Uid, error) {
	if err := c.RequireInitialized(); err != nil {
		return "", err
	}
	if ok, _ := c.store.put(objectClass, uid, attrs, true); !ok {
		return "", errors.Newf(errors.ErrorTypeNotFound, "%s/%s not found", objectClass, uid)
	}
	return uid, nil
}

func (c *Connector) Delete(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, options *core.OperationOptions) error {
	if err := c.RequireInitialized(); err != nil {
		return err
	}
	if !c.store.remove(objectClass, uid) {
		return errors.Newf(errors.ErrorTypeNotFound, "%s/%s not found", objectClass, uid)
	}
	return nil
}

// Subscribe delivers changes to objectClass made after the call returns.
// Close must not be called from inside handler; return false instead.
func (c *Connector) Subscribe(ctx context.Context, objectClass core.ObjectClass, handler core.ChangeHandler, options *core.OperationOptions) (core.Subscription, error) {
	if err := c.RequireInitialized(); err != nil {
		return nil, err
	}
	return newSubscription(c.store, objectClass, handler), nil
}
