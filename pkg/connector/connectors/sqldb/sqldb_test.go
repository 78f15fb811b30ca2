package sqldb

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

func TestMySQLDSN(t *testing.T) {
	dsn, err := MySQLDSN(&config.ConnectionConfig{Host: "db", Database: "crm", Username: "app", Password: "secret"})
	require.NoError(t, err)

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "crm", parsed.DBName)
	assert.Equal(t, "app", parsed.User)
	assert.True(t, parsed.ParseTime)

	_, err = MySQLDSN(&config.ConnectionConfig{})
	assert.Error(t, err)

	_, err = MySQLDSN(&config.ConnectionConfig{URL: "not a dsn"})
	assert.Error(t, err)
}

func TestSnowflakeDSN(t *testing.T) {
	dsn, err := SnowflakeDSN(&config.ConnectionConfig{
		Username:   "loader",
		Password:   "secret",
		Database:   "ANALYTICS",
		Properties: map[string]string{"account": "acme-eu", "warehouse": "WH"},
	})
	require.NoError(t, err)
	assert.Contains(t, dsn, "loader")
	assert.Contains(t, dsn, "acme-eu")
	assert.Contains(t, dsn, "ANALYTICS")

	_, err = SnowflakeDSN(&config.ConnectionConfig{})
	assert.Error(t, err)
}

func TestClassifyMySQL(t *testing.T) {
	c := NewMySQL().(*Connector)

	err := c.classify(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, "insert failed")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

	err = c.classify(&mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"}, "query failed")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	var myErr *mysql.MySQLError
	assert.ErrorAs(t, err, &myErr)
}

func TestFlavors(t *testing.T) {
	assert.Equal(t, MySQLName, NewMySQL().(*Connector).Name())
	assert.Equal(t, SnowflakeName, NewSnowflake().(*Connector).Name())
	assert.True(t, mysqlFlavor.lastInsertID)
	assert.False(t, snowflakeFlavor.lastInsertID)

	caps := core.Capabilities(NewSnowflake())
	assert.Contains(t, caps, "search")
	assert.NotContains(t, caps, "subscribe")
}
