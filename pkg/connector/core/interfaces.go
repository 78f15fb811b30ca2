// Package core defines the connector service provider interface: the lifecycle
// every connector implements, the optional operation capabilities it may
// advertise, and the object model operations exchange.
package core

import (
	"context"

	"github.com/ajitpratap0/opgate/pkg/config"
)

// Connector is the base interface for all connectors. A connector is a live,
// stateful handle to an external system. It is used by at most one call at a
// time and is disposed exactly once.
type Connector interface {
	// Init establishes the connector's session with the external system.
	Init(ctx context.Context, cfg *config.BaseConfig) error
	// Dispose releases everything Init acquired.
	Dispose() error
}

// PoolableConnector is a connector that pools may keep between calls.
// CheckAlive is consulted whenever the connector is returned to its pool;
// a failing check makes the pool destroy it instead of reusing it.
type PoolableConnector interface {
	Connector
	CheckAlive(ctx context.Context) error
}

// TestOp verifies the connector configuration against the external system.
type TestOp interface {
	Test(ctx context.Context) error
}

// SchemaOp describes the object classes a connector exposes.
type SchemaOp interface {
	Schema(ctx context.Context) (*Schema, error)
}

// SearchOp executes queries. Implementations may translate the filter into a
// native query, or ignore parts of it: results are re-filtered by the caller.
type SearchOp interface {
	ExecuteQuery(ctx context.Context, objectClass ObjectClass, filter Filter, handler ResultsHandler, options *OperationOptions) (*SearchResult, error)
}

// CreateOp creates objects.
type CreateOp interface {
	Create(ctx context.Context, objectClass ObjectClass, attrs map[string]interface{}, options *OperationOptions) (Uid, error)
}

// UpdateOp replaces attribute values on existing objects.
type UpdateOp interface {
	Update(ctx context.Context, objectClass ObjectClass, uid Uid, attrs map[string]interface{}, options *OperationOptions) (Uid, error)
}

// DeleteOp deletes objects.
type DeleteOp interface {
	Delete(ctx context.Context, objectClass ObjectClass, uid Uid, options *OperationOptions) error
}

// SubscribeOp streams change events until the returned subscription is closed.
// The connector stays bound to the subscription for its whole lifetime.
type SubscribeOp interface {
	Subscribe(ctx context.Context, objectClass ObjectClass, handler ChangeHandler, options *OperationOptions) (Subscription, error)
}

// Subscription is a long-lived handle returned by streaming operations.
type Subscription interface {
	// Close stops the stream. It must be safe to call more than once.
	Close() error
	// IsUnsubscribed reports whether the stream has stopped.
	IsUnsubscribed() bool
}

// Capabilities lists the operation capabilities c implements.
func Capabilities(c Connector) []string {
	var caps []string
	if _, ok := c.(TestOp); ok {
		caps = append(caps, "test")
	}
	if _, ok := c.(SchemaOp); ok {
		caps = append(caps, "schema")
	}
	if _, ok := c.(SearchOp); ok {
		caps = append(caps, "search", "get")
	}
	if _, ok := c.(CreateOp); ok {
		caps = append(caps, "create")
	}
	if _, ok := c.(UpdateOp); ok {
		caps = append(caps, "update")
	}
	if _, ok := c.(DeleteOp); ok {
		caps = append(caps, "delete")
	}
	if _, ok := c.(SubscribeOp); ok {
		caps = append(caps, "subscribe")
	}
	if _, ok := c.(PoolableConnector); ok {
		caps = append(caps, "pooling")
	}
	return caps
}
