// Package opgate is the operation dispatch layer of a connector platform.
//
// Callers hold a ConnectorFacade and invoke operations on it as if they were
// talking to one connector. Behind the facade, every call acquires a connector,
// binds a fresh runner to it, forwards the call and releases the connector:
//
//   - Pooled mode borrows from a pool keyed by the connector name and returns
//     the connector afterwards. Connectors failing their health probe on
//     return are destroyed.
//   - Transient mode creates and initializes a connector for the call and
//     disposes it afterwards.
//
// Errors from the connector reach the caller unchanged. Cleanup failures are
// logged and counted, never returned.
//
// Subscriptions are the exception to release-after-call: the facade hands
// back a wrapper that keeps the connector checked out until the subscription
// is closed. Close releases the connector exactly once no matter how many
// goroutines call it.
//
// # Quick Start
//
//	import (
//	    "github.com/ajitpratap0/opgate/pkg/config"
//	    "github.com/ajitpratap0/opgate/pkg/operations"
//	    "github.com/ajitpratap0/opgate/pkg/pool"
//	    _ "github.com/ajitpratap0/opgate/pkg/connector/connectors/postgresql"
//	)
//
//	cfg := config.NewBaseConfig("crm", "postgresql")
//	cfg.Connection.URL = "postgres://app@localhost:5432/crm"
//	cfg.Pool.Enabled = true
//
//	manager := pool.NewManager(logger)
//	defer manager.Dispose()
//
//	facade, err := operations.NewBuilder(manager, logger).Build(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	uid, err := facade.Create(ctx, "users", map[string]interface{}{"name": "alice"}, nil)
//
// # Connectors
//
//   - memory: in-process store for tests and local development
//   - postgresql: pgx, with LISTEN/NOTIFY subscriptions
//   - mysql, snowflake: database/sql through sqlx
//   - mongodb: collections with change stream subscriptions
//   - kafka: produce JSON messages, consume change events
//   - s3, gcs: JSON documents in a bucket
//
// # Command Line
//
// cmd/opgate runs single operations against a YAML-configured connector:
//
//	opgate list
//	opgate search -c crm.yaml --class users --where team=core
//	opgate watch -c crm.yaml --class users --metrics-addr :9090
//
// Environment variables are supported in configuration files with ${VAR_NAME}
// syntax, and OPGATE_* variables override keys present in the file.
package opgate
