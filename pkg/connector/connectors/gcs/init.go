package gcs

import (
	"github.com/ajitpratap0/opgate/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterConnector(Name, "JSON documents in a Google Cloud Storage bucket", "1.0.0", New,
		map[string]interface{}{
			"bucket": map[string]interface{}{
				"type":        "string",
				"required":    true,
				"description": "Bucket name",
			},
			"credentials_file": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "Service account key file; application default credentials are used when empty",
			},
			"endpoint": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "Custom endpoint, e.g. a local emulator",
			},
			"prefix": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "Key prefix under which object classes live",
			},
		})
}
