package postgresql

import (
	"github.com/ajitpratap0/opgate/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterConnector(Name, "PostgreSQL tables over a single pgx session", "1.0.0", New,
		map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "postgres:// connection URL; host, port, database, username and password are used when empty",
			},
			"schema": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"default":     "public",
				"description": "Schema inspected by schema discovery",
			},
			"uid_column": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"default":     "id",
				"description": "Key column used as object Uid",
			},
			"notify_channel": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "LISTEN channel for subscriptions; defaults to <table>_changes",
			},
		})
}
