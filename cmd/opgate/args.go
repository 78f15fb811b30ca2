package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/opgate/pkg/connector/core"
)

// parseAssignments turns attr=value pairs into attributes. Values that parse
// as JSON (numbers, booleans, null, arrays, objects) keep their type; anything
// else is a string.
func parseAssignments(pairs []string) (map[string]interface{}, error) {
	raw, err := splitAssignments(pairs)
	if err != nil {
		return nil, err
	}
	attrs := make(map[string]interface{}, len(raw))
	for key, value := range raw {
		attrs[key] = parseValue(value)
	}
	return attrs, nil
}

func splitAssignments(pairs []string) (map[string]string, error) {
	raw := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected attr=value", pair)
		}
		raw[key] = value
	}
	return raw, nil
}

func parseValue(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// parseWhere builds an AND of equality filters. "uid" addresses the object
// Uid and is always compared as a string.
func parseWhere(conditions []string) (core.Filter, error) {
	raw, err := splitAssignments(conditions)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	filters := make([]core.Filter, 0, len(keys))
	for _, key := range keys {
		if key == "uid" {
			filters = append(filters, core.Equals(core.UidAttribute, raw[key]))
			continue
		}
		filters = append(filters, core.Equals(key, parseValue(raw[key])))
	}
	return core.And(filters...), nil
}
