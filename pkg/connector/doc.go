// Package connector is the root of the connector framework. It holds no code
// itself; the framework is organized into sub-packages:
//
//   - core: the connector SPI (Connector, PoolableConnector and one interface
//     per operation kind), the object model, filters and subscriptions.
//
//   - base: BaseConnector, embedded by every connector. It carries the name,
//     configuration, logger, initialized flag, dial retry policy and the
//     CheckAlive health probe pools use on return.
//
//   - api: the operation kinds callers invoke through a facade.
//
//   - registry: a factory registry. Connectors self-register in init() and the
//     facade builder looks them up by config.BaseConfig.Type.
//
//   - connectors: concrete connectors (memory, postgresql, mysql, snowflake,
//     mongodb, kafka, s3, gcs) and the helpers they share (sqlcommon,
//     objectstore).
//
// # Writing a connector
//
// Embed base.BaseConnector, implement Init and Dispose, then implement only
// the operation interfaces the external system supports. The runner returns a
// capability error for the rest:
//
//	type Connector struct {
//	    *base.BaseConnector
//	    client *thing.Client
//	}
//
//	func New() core.Connector {
//	    return &Connector{BaseConnector: base.NewBaseConnector("thing", "1.0.0")}
//	}
//
//	func (c *Connector) Init(ctx context.Context, cfg *config.BaseConfig) error {
//	    if err := c.Initialize(ctx, cfg); err != nil {
//	        return err
//	    }
//	    return c.ExecuteWithRetry(ctx, func() error { ... })
//	}
//
//	func init() {
//	    _ = registry.RegisterConnector("thing", "Things", "1.0.0", New, nil)
//	}
//
// Search implementations may translate filters partially: the runner
// re-applies the full filter to every object handed back. They must honour
// OperationOptions.PagedResultsOffset, pushing it down only when the native
// query is exact and otherwise using core.SkipMatching.
package connector
