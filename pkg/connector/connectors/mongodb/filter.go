package mongodb

import (
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ajitpratap0/opgate/pkg/connector/core"
)

const idField = "_id"

// translate converts filter into a query document. Parts that cannot be
// expressed are widened to match everything and exact is reported false.
func translate(filter core.Filter) (doc bson.M, exact bool) {
	if filter == nil {
		return bson.M{}, true
	}
	doc, exact = translateNode(filter)
	if doc == nil {
		return bson.M{}, false
	}
	return doc, exact
}

func translateNode(filter core.Filter) (bson.M, bool) {
	switch f := filter.(type) {
	case *core.EqualsFilter:
		name, value := fieldValue(f.Attribute, f.Value)
		return bson.M{name: value}, true
	case *core.ContainsFilter:
		return bson.M{field(f.Attribute): bson.M{"$regex": regexp.QuoteMeta(f.Value)}}, true
	case *core.StartsWithFilter:
		return bson.M{field(f.Attribute): bson.M{"$regex": "^" + regexp.QuoteMeta(f.Value)}}, true
	case *core.GreaterThanFilter:
		name, value := fieldValue(f.Attribute, f.Value)
		return bson.M{name: bson.M{"$gt": value}}, true
	case *core.LessThanFilter:
		name, value := fieldValue(f.Attribute, f.Value)
		return bson.M{name: bson.M{"$lt": value}}, true
	case *core.AndFilter:
		exact := true
		parts := bson.A{}
		for _, child := range f.Filters {
			doc, ok := translateNode(child)
			exact = exact && ok
			if doc != nil {
				parts = append(parts, doc)
			}
		}
		if len(parts) == 0 {
			return nil, exact
		}
		return bson.M{"$and": parts}, exact
	case *core.OrFilter:
		parts := bson.A{}
		for _, child := range f.Filters {
			doc, ok := translateNode(child)
			if !ok || doc == nil {
				return nil, false
			}
			parts = append(parts, doc)
		}
		return bson.M{"$or": parts}, true
	case *core.NotFilter:
		doc, ok := translateNode(f.Filter)
		if !ok || doc == nil {
			return nil, false
		}
		return bson.M{"$nor": bson.A{doc}}, true
	}
	return nil, false
}

func field(attribute string) string {
	if attribute == core.UidAttribute {
		return idField
	}
	return attribute
}

func fieldValue(attribute string, value interface{}) (string, interface{}) {
	if attribute == core.UidAttribute {
		return idField, idValue(fmt.Sprint(value))
	}
	return attribute, value
}

// idValue turns a Uid back into the stored _id. Hex strings of ObjectID
// length are treated as ObjectIDs.
func idValue(uid string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(uid); err == nil {
		return oid
	}
	return uid
}

func uidString(id interface{}) core.Uid {
	if oid, ok := id.(primitive.ObjectID); ok {
		return core.Uid(oid.Hex())
	}
	return core.Uid(fmt.Sprint(id))
}

// toObject converts a decoded document. _id becomes the Uid and stays
// available as an attribute in string form.
func toObject(objectClass core.ObjectClass, doc bson.M) *core.ConnectorObject {
	obj := &core.ConnectorObject{
		ObjectClass: objectClass,
		Attributes:  make(map[string]interface{}, len(doc)),
	}
	for k, v := range doc {
		if k == idField {
			obj.Uid = uidString(v)
			obj.Attributes[k] = string(obj.Uid)
			continue
		}
		obj.Attributes[k] = normalize(v)
	}
	return obj
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC()
	case bson.M:
		out := make(map[string]interface{}, len(t))
		for k, inner := range t {
			out[k] = normalize(inner)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(t))
		for i, inner := range t {
			out[i] = normalize(inner)
		}
		return out
	}
	return v
}
