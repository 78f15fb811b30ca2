package s3

import (
	"github.com/ajitpratap0/opgate/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterConnector(Name, "JSON documents in an S3 bucket", "1.0.0", New,
		map[string]interface{}{
			"bucket": map[string]interface{}{
				"type":        "string",
				"required":    true,
				"description": "Bucket name",
			},
			"region": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "AWS region; the default chain is used when empty",
			},
			"endpoint": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "Custom endpoint for S3-compatible stores; enables path-style addressing",
			},
			"prefix": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "Key prefix under which object classes live",
			},
		})
}
