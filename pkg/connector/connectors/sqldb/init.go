package sqldb

import (
	"github.com/ajitpratap0/opgate/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterConnector(MySQLName, "MySQL tables over database/sql", "1.0.0", NewMySQL,
		map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "go-sql-driver DSN; host, port, database, username and password are used when empty",
			},
			"uid_column": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"default":     "id",
				"description": "Key column used as object Uid",
			},
		})

	_ = registry.RegisterConnector(SnowflakeName, "Snowflake tables over database/sql", "1.0.0", NewSnowflake,
		map[string]interface{}{
			"account": map[string]interface{}{
				"type":        "string",
				"required":    true,
				"description": "Snowflake account identifier",
			},
			"warehouse": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "Virtual warehouse used for queries",
			},
			"schema": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"default":     "PUBLIC",
				"description": "Default schema",
			},
			"role": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "Role assumed by the session",
			},
		})
}
