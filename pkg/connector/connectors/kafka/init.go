package kafka

import (
	"github.com/ajitpratap0/opgate/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterConnector(Name, "Kafka topics: produce JSON messages and consume change events", "1.0.0", New,
		map[string]interface{}{
			"brokers": map[string]interface{}{
				"type":        "array",
				"required":    true,
				"description": "Bootstrap servers",
			},
			"version": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "Kafka protocol version, e.g. 3.6.0",
			},
			"compression": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"default":     "none",
				"description": "none, gzip, snappy, lz4 or zstd",
			},
			"initial_offset": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"default":     "newest",
				"description": "Where subscriptions start: newest or oldest",
			},
		})
}
