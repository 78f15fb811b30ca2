package sqldb

import (
	"fmt"

	"github.com/snowflakedb/gosnowflake"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/connectors/sqlcommon"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
)

// SnowflakeName is the registered connector type for Snowflake.
const SnowflakeName = "snowflake"

// Snowflake folds unquoted identifiers to upper case; the generated SQL quotes
// every identifier, so table and column names must match their stored case.
var snowflakeFlavor = flavor{
	name:    SnowflakeName,
	driver:  "snowflake",
	dialect: sqlcommon.DialectDefault,
	dsn:     SnowflakeDSN,
}

// NewSnowflake creates an uninitialized Snowflake connector.
func NewSnowflake() core.Connector {
	return newConnector(snowflakeFlavor)
}

// SnowflakeDSN returns conn.URL, or a DSN built from the account (property
// "account", falling back to Host) and the warehouse, schema and role properties.
func SnowflakeDSN(conn *config.ConnectionConfig) (string, error) {
	if conn.URL != "" {
		return conn.URL, nil
	}
	account := conn.Property("account", conn.Host)
	if account == "" {
		return "", fmt.Errorf("account is required")
	}
	return gosnowflake.DSN(&gosnowflake.Config{
		Account:   account,
		User:      conn.Username,
		Password:  conn.Password,
		Database:  conn.Database,
		Schema:    conn.Property("schema", "PUBLIC"),
		Warehouse: conn.Property("warehouse", ""),
		Role:      conn.Property("role", ""),
	})
}
