package sqldb

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/connectors/sqlcommon"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

// MySQLName is the registered connector type for MySQL.
const MySQLName = "mysql"

var mysqlFlavor = flavor{
	name:         MySQLName,
	driver:       "mysql",
	dialect:      sqlcommon.DialectMySQL,
	dsn:          MySQLDSN,
	lastInsertID: true,
	classify:     classifyMySQL,
}

// NewMySQL creates an uninitialized MySQL connector.
func NewMySQL() core.Connector {
	return newConnector(mysqlFlavor)
}

// MySQLDSN returns conn.URL, or a DSN assembled from the discrete fields.
func MySQLDSN(conn *config.ConnectionConfig) (string, error) {
	if conn.URL != "" {
		if _, err := mysql.ParseDSN(conn.URL); err != nil {
			return "", err
		}
		return conn.URL, nil
	}
	if conn.Host == "" {
		return "", fmt.Errorf("host or url is required")
	}

	port := conn.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = conn.Username
	cfg.Passwd = conn.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", conn.Host, port)
	cfg.DBName = conn.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

func classifyMySQL(err error) (errors.ErrorType, bool) {
	var myErr *mysql.MySQLError
	if !stderrors.As(err, &myErr) {
		return "", false
	}
	switch myErr.Number {
	case 1062:
		return errors.ErrorTypeConflict, true
	case 1045, 1044:
		return errors.ErrorTypeAuthentication, true
	case 1146, 1054:
		return errors.ErrorTypeNotFound, true
	case 1205, 3024:
		return errors.ErrorTypeTimeout, true
	case 1048, 1264, 1366, 1406:
		return errors.ErrorTypeValidation, true
	}
	return errors.ErrorTypeQuery, true
}
