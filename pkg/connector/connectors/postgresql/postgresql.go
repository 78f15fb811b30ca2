// Package postgresql connects to PostgreSQL over a single pgx session. Object
// classes are tables; change streams use LISTEN/NOTIFY.
package postgresql

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/base"
	"github.com/ajitpratap0/opgate/pkg/connector/connectors/sqlcommon"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

// Name is the registered connector type.
const Name = "postgresql"

const disposeTimeout = 5 * time.Second

// Connector is a PostgreSQL connector backed by one pgx connection.
type Connector struct {
	*base.BaseConnector

	conn    *pgx.Conn
	builder *sqlcommon.Builder
	schema  string
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

// New creates an uninitialized PostgreSQL connector.
func New() core.Connector {
	return &Connector{BaseConnector: base.NewBaseConnector(Name, "1.0.0")}
}

// Init opens the session, retrying transient failures.
func (c *Connector) Init(ctx context.Context, cfg *config.BaseConfig) error {
	if err := c.Initialize(ctx, cfg); err != nil {
		return err
	}

	pgCfg, err := pgx.ParseConfig(ConnString(&cfg.Connection))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid postgresql connection settings")
	}
	if cfg.Timeouts.Connection > 0 {
		pgCfg.ConnectTimeout = cfg.Timeouts.Connection
	}

	err = c.ExecuteWithRetry(ctx, func() error {
		conn, err := pgx.ConnectConfig(ctx, pgCfg)
		if err != nil {
			return classify(err, "failed to connect to postgresql")
		}
		c.conn = conn
		return nil
	})
	if err != nil {
		return err
	}

	c.builder = sqlcommon.NewBuilder(sqlcommon.DialectPostgres, &cfg.Connection)
	c.schema = cfg.Connection.Property("schema", "public")
	c.SetHealthCheck(func(ctx context.Context) error {
		var one int
		return c.conn.QueryRow(ctx, "SELECT 1").Scan(&one)
	})

	c.Logger().Info("postgresql session opened",
		zap.String("host", pgCfg.Host),
		zap.String("database", pgCfg.Database))
	return nil
}

// ConnString returns conn.URL, or a URL assembled from the discrete fields.
func ConnString(conn *config.ConnectionConfig) string {
	if conn.URL != "" {
		return conn.URL
	}
	u := url.URL{Scheme: "postgres", Host: conn.Host, Path: "/" + conn.Database}
	if conn.Port > 0 {
		u.Host = fmt.Sprintf("%s:%d", conn.Host, conn.Port)
	}
	if conn.Username != "" {
		u.User = url.UserPassword(conn.Username, conn.Password)
	}
	if mode := conn.Property("sslmode", ""); mode != "" {
		u.RawQuery = url.Values{"sslmode": []string{mode}}.Encode()
	}
	return u.String()
}

func (c *Connector) Dispose() error {
	if !c.BeginDispose() {
		return nil
	}
	if c.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), disposeTimeout)
	defer cancel()
	return c.conn.Close(ctx)
}

func (c *Connector) Test(ctx context.Context) error {
	if err := c.RequireInitialized(); err != nil {
		return err
	}
	return classify(c.conn.Ping(ctx), "postgresql ping failed")
}

// Schema lists the tables of the configured schema.
func (c *Connector) Schema(ctx context.Context) (*core.Schema, error) {
	if err := c.RequireInitialized(); err != nil {
		return nil, err
	}
	query, args, err := c.builder.ColumnsQuery(c.schema)
	if err != nil {
		return nil, err
	}

	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "failed to read information_schema")
	}
	defer rows.Close()

	sb := sqlcommon.NewSchemaBuilder()
	for rows.Next() {
		var table, column, dataType, nullable string
		if err := rows.Scan(&table, &column, &dataType, &nullable); err != nil {
			return nil, classify(err, "failed to scan column")
		}
		sb.Add(table, column, dataType, nullable)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "failed to read information_schema")
	}
	return sb.Schema(), nil
}

// ExecuteQuery pushes the translatable part of filter into the WHERE clause.
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

	c.Logger().Debug("executing query", zap.String("sql", query), zap.Bool("exact", exact))
	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "query failed")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, classify(err, "failed to read row")
		}
		if !handler(sqlcommon.RowToObject(objectClass, c.builder.UidColumn(), columns, values)) {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "query failed")
	}
	return &core.SearchResult{RemainingResults: -1}, nil
}

func (c *Connector) Create(ctx context.Context, objectClass core.ObjectClass, attrs map[string]interface{}, options *core.OperationOptions) (core.Uid, error) {
	if err := c.RequireInitialized(); err != nil {
		return "", err
	}
	query, args, err := c.builder.Insert(objectClass, attrs, true)
	if err != nil {
		return "", err
	}
	return c.returningUid(ctx, query, args, "insert failed")
}

func (c *Connector) Update(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, attrs map[string]interface{}, options *core.OperationOptions) (core.Uid, error) {
	if err := c.RequireInitialized(); err != nil {
		return "", err
	}
	query, args, err := c.builder.Update(objectClass, uid, attrs, true)
	if err != nil {
		return "", err
	}
	newUid, err := c.returningUid(ctx, query, args, "update failed")
	if stderrors.Is(err, pgx.ErrNoRows) {
		return "", errors.Newf(errors.ErrorTypeNotFound, "%s/%s not found", objectClass, uid)
	}
	return newUid, err
}

func (c *Connector) Delete(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, options *core.OperationOptions) error {
	if err := c.RequireInitialized(); err != nil {
		return err
	}
	query, args, err := c.builder.Delete(objectClass, uid)
	if err != nil {
		return err
	}
	tag, err := c.conn.Exec(ctx, query, args...)
	if err != nil {
		return classify(err, "delete failed")
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.ErrorTypeNotFound, "%s/%s not found", objectClass, uid)
	}
	return nil
}

func (c *Connector) returningUid(ctx context.Context, query string, args []interface{}, msg string) (core.Uid, error) {
	var key interface{}
	if err := c.conn.QueryRow(ctx, query, args...).Scan(&key); err != nil {
		return "", classify(err, msg)
	}
	switch v := key.(type) {
	case int64:
		return core.Uid(strconv.FormatInt(v, 10)), nil
	case int32:
		return core.Uid(strconv.FormatInt(int64(v), 10)), nil
	}
	return core.Uid(fmt.Sprint(key)), nil
}
