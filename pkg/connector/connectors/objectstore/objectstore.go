// Package objectstore holds the layout shared by the bucket connectors: every
// object is one JSON document stored at <prefix><class>/<uid>.json.
package objectstore

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

const extension = ".json"

// Layout maps object classes and Uids to keys.
type Layout struct {
	prefix string
	conn   *config.ConnectionConfig
}

// NewLayout reads the optional "prefix" property.
func NewLayout(conn *config.ConnectionConfig) *Layout {
	prefix := strings.Trim(conn.Property("prefix", ""), "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Layout{prefix: prefix, conn: conn}
}

// ClassPrefix is the key prefix listing every object of objectClass.
func (l *Layout) ClassPrefix(objectClass core.ObjectClass) string {
	return l.prefix + l.conn.Table(string(objectClass)) + "/"
}

// Key returns the key of one object.
func (l *Layout) Key(objectClass core.ObjectClass, uid core.Uid) string {
	return l.ClassPrefix(objectClass) + string(uid) + extension
}

// Uid extracts the Uid from a key listed under ClassPrefix. Keys in nested
// "directories" or without the extension are not objects.
func (l *Layout) Uid(objectClass core.ObjectClass, key string) (core.Uid, bool) {
	rest, ok := strings.CutPrefix(key, l.ClassPrefix(objectClass))
	if !ok || strings.Contains(rest, "/") {
		return "", false
	}
	name, ok := strings.CutSuffix(rest, extension)
	if !ok || name == "" {
		return "", false
	}
	return core.Uid(name), true
}

// NewUid returns attrs[__UID__] when present, or a random UUID.
func NewUid(attrs map[string]interface{}) (core.Uid, error) {
	v, ok := attrs[core.UidAttribute]
	if !ok {
		return core.Uid(uuid.NewString()), nil
	}
	uid := fmt.Sprint(v)
	if uid == "" || uid == "." || uid == ".." || strings.Contains(uid, "/") {
		return "", errors.Newf(errors.ErrorTypeValidation, "uid %q cannot be used as an object key", uid)
	}
	return core.Uid(uid), nil
}

// Encode renders attrs as the stored document. __UID__ is not stored.
func Encode(attrs map[string]interface{}) ([]byte, error) {
	doc := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		if k == core.UidAttribute {
			continue
		}
		doc[k] = v
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "attributes are not JSON encodable")
	}
	return body, nil
}

// Decode parses a stored document.
func Decode(objectClass core.ObjectClass, uid core.Uid, body []byte) (*core.ConnectorObject, error) {
	obj := &core.ConnectorObject{ObjectClass: objectClass, Uid: uid, Attributes: map[string]interface{}{}}
	if err := json.Unmarshal(body, &obj.Attributes); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, fmt.Sprintf("object %s is not a JSON document", obj))
	}
	return obj, nil
}

// Merge applies an update: nil values remove attributes.
func Merge(current, attrs map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(current)+len(attrs))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range attrs {
		if k == core.UidAttribute {
			continue
		}
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// UidLookup reports whether filter selects exactly one Uid, which lets
// connectors fetch a single key instead of listing the prefix.
func UidLookup(filter core.Filter) (core.Uid, bool) {
	eq, ok := filter.(*core.EqualsFilter)
	if !ok || eq.Attribute != core.UidAttribute || eq.Value == nil {
		return "", false
	}
	return core.Uid(fmt.Sprint(eq.Value)), true
}
