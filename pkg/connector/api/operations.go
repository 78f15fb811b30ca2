// Package api defines the operation kinds callers invoke. Callers hold these
// interfaces as if they were talking to a connector directly; the dispatch
// layer behind them decides which connector instance serves each call.
package api

import (
	"context"

	"github.com/ajitpratap0/opgate/pkg/connector/core"
)

// TestAPIOp checks connectivity and configuration.
type TestAPIOp interface {
	Test(ctx context.Context) error
}

// SchemaAPIOp retrieves the connector schema.
type SchemaAPIOp interface {
	Schema(ctx context.Context) (*core.Schema, error)
}

// SearchAPIOp searches for objects of one object class matching filter.
// filter and options may be nil.
type SearchAPIOp interface {
	Search(ctx context.Context, objectClass core.ObjectClass, filter core.Filter, handler core.ResultsHandler, options *core.OperationOptions) (*core.SearchResult, error)
}

// GetAPIOp fetches a single object. It returns nil when the object does not exist.
type GetAPIOp interface {
	GetObject(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, options *core.OperationOptions) (*core.ConnectorObject, error)
}

// CreateAPIOp creates an object and returns its Uid.
type CreateAPIOp interface {
	Create(ctx context.Context, objectClass core.ObjectClass, attrs map[string]interface{}, options *core.OperationOptions) (core.Uid, error)
}

// UpdateAPIOp updates an object and returns its (possibly new) Uid.
type UpdateAPIOp interface {
	Update(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, attrs map[string]interface{}, options *core.OperationOptions) (core.Uid, error)
}

// DeleteAPIOp deletes an object.
type DeleteAPIOp interface {
	Delete(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, options *core.OperationOptions) error
}

// SubscribeAPIOp opens a change stream. The returned subscription owns the
// connector serving it until Close is called.
type SubscribeAPIOp interface {
	Subscribe(ctx context.Context, objectClass core.ObjectClass, filter core.Filter, handler core.ChangeHandler, options *core.OperationOptions) (core.Subscription, error)
}

// ConnectorFacade is the full set of operation kinds.
type ConnectorFacade interface {
	TestAPIOp
	SchemaAPIOp
	SearchAPIOp
	GetAPIOp
	CreateAPIOp
	UpdateAPIOp
	DeleteAPIOp
	SubscribeAPIOp
}

// Operation names used in logs, metrics and spans.
const (
	OpTest      = "test"
	OpSchema    = "schema"
	OpSearch    = "search"
	OpGet       = "get"
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpSubscribe = "subscribe"
)
