// Package operations dispatches connector operations.
//
// A caller holds an api.ConnectorFacade and never sees a connector. For every
// call the facade acquires a connector (borrowed from a pool, or created and
// initialized for this call only), binds a fresh runner to it, forwards the
// call and gives the connector back. Errors are returned exactly as the
// connector produced them.
//
// Subscriptions are the exception to the release-on-return rule: the connector
// serving a subscription stays bound to it until the subscription is closed.
//
//	facade, err := operations.NewBuilder(manager, logger).Build(ctx, cfg)
//	sub, err := facade.Subscribe(ctx, "orders", nil, handler, nil)
//	...
//	sub.Close() // connector goes back to the pool here
//
// Invoke is the generic entry point for runners other than the default one.
package operations
