package memory

import (
	"github.com/ajitpratap0/opgate/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterConnector(Name, "In-process object store for tests and local development", "1.0.0", New,
		map[string]interface{}{
			"store": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "Store shared by connectors with the same name; defaults to the connector name",
			},
		})
}
