// Package sqldb serves tables over database/sql drivers through sqlx. It
// registers the mysql and snowflake connectors, which differ only in driver,
// DSN layout and SQL dialect.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/base"
	"github.com/ajitpratap0/opgate/pkg/connector/connectors/sqlcommon"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

// flavor describes one database/sql backend.
type flavor struct {
	name    string
	driver  string
	dialect string
	dsn     func(conn *config.ConnectionConfig) (string, error)
	// lastInsertID is true when the driver reports generated keys
	lastInsertID bool
	classify     func(err error) (errors.ErrorType, bool)
}

// Connector is a table connector over a single database/sql connection.
type Connector struct {
	*base.BaseConnector

	flavor  flavor
	db      *sqlx.DB
	builder *sqlcommon.Builder
}

var (
	_ core.PoolableConnector = (*Connector)(nil)
	_ core.TestOp            = (*Connector)(nil)
	_ core.SearchOp          = (*Connector)(nil)
	_ core.CreateOp          = (*Connector)(nil)
	_ core.UpdateOp          = (*Connector)(nil)
	_ core.DeleteOp          = (*Connector)(nil)
)

func newConnector(f flavor) *Connector {
	return &Connector{
		BaseConnector: base.NewBaseConnector(f.name, "1.0.0"),
		flavor:        f,
	}
}

// Init opens the database handle and pins it to one connection.
func (c *Connector) Init(ctx context.Context, cfg *config.BaseConfig) error {
	if err := c.Initialize(ctx, cfg); err != nil {
		return err
	}

	dsn, err := c.flavor.dsn(&cfg.Connection)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid connection settings")
	}

	connectCtx := ctx
	if cfg.Timeouts.Connection > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.Timeouts.Connection)
		defer cancel()
	}

	err = c.ExecuteWithRetry(connectCtx, func() error {
		db, err := sqlx.ConnectContext(connectCtx, c.flavor.driver, dsn)
		if err != nil {
			return c.classify(err, "failed to connect")
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		c.db = db
		return nil
	})
	if err != nil {
		return err
	}

	c.builder = sqlcommon.NewBuilder(c.flavor.dialect, &cfg.Connection)
	c.SetHealthCheck(func(ctx context.Context) error {
		return c.db.PingContext(ctx)
	})
	c.Logger().Info("database handle opened", zap.String("driver", c.flavor.driver))
	return nil
}

func (c *Connector) Dispose() error {
	if !c.BeginDispose() || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Connector) Test(ctx context.Context) error {
	if err := c.RequireInitialized(); err != nil {
		return err
	}
	return c.classify(c.db.PingContext(ctx), "ping failed")
}

func (c *Connector) ExecuteQuery(ctx context.Context, objectClass core.ObjectClass, filter core.Filter, handler core.ResultsHandler, options *core.OperationOptions) (*core.SearchResult, error) {
	if err := c.RequireInitialized(); err != nil {
		return nil, err
	}
	query, args, exact, err := c.builder.Select(objectClass, filter, options)
	if err != nil {
		return nil, err
	}
	if !exact {
		handler = core.SkipMatching(filter, options.Offset(), handler)
	}

	rows, err := c.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, c.classify(err, "query failed")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, c.classify(err, "failed to read columns")
	}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, c.classify(err, "failed to read row")
		}
		if !handler(sqlcommon.RowToObject(objectClass, c.builder.UidColumn(), columns, values)) {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, c.classify(err, "query failed")
	}
	return &core.SearchResult{RemainingResults: -1}, nil
}

// Create inserts a row. When the caller supplies no Uid and the driver cannot
// report generated keys, a random UUID is written to the key column.
func (c *Connector) Create(ctx context.Context, objectClass core.ObjectClass, attrs map[string]interface{}, options *core.OperationOptions) (core.Uid, error) {
	if err := c.RequireInitialized(); err != nil {
		return "", err
	}

	values := make(map[string]interface{}, len(attrs)+1)
	for k, v := range attrs {
		values[k] = v
	}
	explicit, hasUid := values[core.UidAttribute]
	if !hasUid {
		explicit, hasUid = values[c.builder.UidColumn()]
	}
	if !hasUid && !c.flavor.lastInsertID {
		explicit, hasUid = uuid.NewString(), true
		values[core.UidAttribute] = explicit
	}

	query, args, err := c.builder.Insert(objectClass, values, false)
	if err != nil {
		return "", err
	}
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return "", c.classify(err, "insert failed")
	}
	if hasUid {
		return core.Uid(fmt.Sprint(explicit)), nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", c.classify(err, "failed to read generated key")
	}
	return core.Uid(strconv.FormatInt(id, 10)), nil
}

func (c *Connector) Update(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, attrs map[string]interface{}, options *core.OperationOptions) (core.Uid, error) {
	if err := c.RequireInitialized(); err != nil {
		return "", err
	}
	query, args, err := c.builder.Update(objectClass, uid, attrs, false)
	if err != nil {
		return "", err
	}
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return "", c.classify(err, "update failed")
	}
	if err := c.requireAffected(res, objectClass, uid); err != nil {
		return "", err
	}
	if renamed, ok := attrs[core.UidAttribute]; ok {
		return core.Uid(fmt.Sprint(renamed)), nil
	}
	return uid, nil
}

func (c *Connector) Delete(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, options *core.OperationOptions) error {
	if err := c.RequireInitialized(); err != nil {
		return err
	}
	query, args, err := c.builder.Delete(objectClass, uid)
	if err != nil {
		return err
	}
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return c.classify(err, "delete failed")
	}
	return c.requireAffected(res, objectClass, uid)
}

func (c *Connector) requireAffected(res sql.Result, objectClass core.ObjectClass, uid core.Uid) error {
	n, err := res.RowsAffected()
	if err != nil {
		return c.classify(err, "failed to read affected rows")
	}
	if n == 0 {
		return errors.Newf(errors.ErrorTypeNotFound, "%s/%s not found", objectClass, uid)
	}
	return nil
}

func (c *Connector) classify(err error, message string) error {
	if err == nil {
		return nil
	}
	if c.flavor.classify != nil {
		if t, ok := c.flavor.classify(err); ok {
			return errors.Wrap(err, t, message)
		}
	}
	return c.Classify(err, message)
}
