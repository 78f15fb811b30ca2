package mongodb

import (
	"github.com/ajitpratap0/opgate/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterConnector(Name, "MongoDB collections with change stream subscriptions", "1.0.0", New,
		map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"required":    true,
				"description": "mongodb:// or mongodb+srv:// connection URI",
			},
			"database": map[string]interface{}{
				"type":        "string",
				"required":    true,
				"description": "Database holding the collections",
			},
		})
}
