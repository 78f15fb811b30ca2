// Package sqlcommon builds the SQL statements shared by the SQL connectors.
// Object classes map to tables, the Uid maps to a configurable key column and
// filters are translated to goqu expressions where possible.
package sqlcommon

import (
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"    // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

// Dialect names understood by NewBuilder.
const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectDefault  = "default"
)

// DefaultUidColumn is used when the connection does not set uid_column.
const DefaultUidColumn = "id"

// Builder renders parameterized statements for one dialect.
type Builder struct {
	dialect   goqu.DialectWrapper
	name      string
	uidColumn string
	conn      *config.ConnectionConfig
}

// NewBuilder creates a builder. The uid column is read from the connection
// property "uid_column".
func NewBuilder(dialect string, conn *config.ConnectionConfig) *Builder {
	if conn == nil {
		conn = &config.ConnectionConfig{}
	}
	return &Builder{
		dialect:   goqu.Dialect(dialect),
		name:      dialect,
		uidColumn: conn.Property("uid_column", DefaultUidColumn),
		conn:      conn,
	}
}

// UidColumn returns the key column name.
func (b *Builder) UidColumn() string {
	return b.uidColumn
}

// Table returns the table backing objectClass.
func (b *Builder) Table(objectClass core.ObjectClass) exp.IdentifierExpression {
	name := b.conn.Table(string(objectClass))
	if schema, table, ok := strings.Cut(name, "."); ok {
		return goqu.S(schema).Table(table)
	}
	return goqu.T(name)
}

// Select renders a query for objectClass. The second return reports whether
// the filter was translated completely; when it was not, paging is left to the
// caller because the database sees a wider result set.
func (b *Builder) Select(objectClass core.ObjectClass, filter core.Filter, options *core.OperationOptions) (string, []interface{}, bool, error) {
	ds := b.dialect.From(b.Table(objectClass)).Prepared(true)

	expr, exact := b.FilterExpression(filter)
	if expr != nil {
		ds = ds.Where(expr)
	}

	if options != nil {
		for _, key := range options.SortBy {
			col := goqu.C(b.column(key.Field))
			if key.Ascending {
				ds = ds.OrderAppend(col.Asc())
			} else {
				ds = ds.OrderAppend(col.Desc())
			}
		}
		if exact && options.PageSize > 0 {
			ds = ds.Limit(uint(options.PageSize))
		}
		if exact && options.PagedResultsOffset > 0 {
			ds = ds.Offset(uint(options.PagedResultsOffset))
		}
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return "", nil, false, errors.Wrap(err, errors.ErrorTypeQuery, "failed to build select query")
	}
	return query, args, exact, nil
}

// Insert renders an insert. With returning set the statement returns the key
// column.
func (b *Builder) Insert(objectClass core.ObjectClass, attrs map[string]interface{}, returning bool) (string, []interface{}, error) {
	ds := b.dialect.Insert(b.Table(objectClass)).Prepared(true).Rows(b.record(attrs))
	if returning {
		ds = ds.Returning(goqu.C(b.uidColumn))
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to build insert query")
	}
	return query, args, nil
}

// Update renders an update of the row keyed by uid.
func (b *Builder) Update(objectClass core.ObjectClass, uid core.Uid, attrs map[string]interface{}, returning bool) (string, []interface{}, error) {
	ds := b.dialect.Update(b.Table(objectClass)).Prepared(true).
		Set(b.record(attrs)).
		Where(goqu.C(b.uidColumn).Eq(string(uid)))
	if returning {
		ds = ds.Returning(goqu.C(b.uidColumn))
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to build update query")
	}
	return query, args, nil
}

// Delete renders a delete of the row keyed by uid.
func (b *Builder) Delete(objectClass core.ObjectClass, uid core.Uid) (string, []interface{}, error) {
	query, args, err := b.dialect.Delete(b.Table(objectClass)).Prepared(true).
		Where(goqu.C(b.uidColumn).Eq(string(uid))).
		ToSQL()
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to build delete query")
	}
	return query, args, nil
}

// ColumnsQuery renders the information_schema lookup used for schema
// discovery. Rows carry table_name, column_name, data_type and is_nullable.
func (b *Builder) ColumnsQuery(schema string) (string, []interface{}, error) {
	query, args, err := b.dialect.From(goqu.S("information_schema").Table("columns")).Prepared(true).
		Select("table_name", "column_name", "data_type", "is_nullable").
		Where(goqu.C("table_schema").Eq(schema)).
		Order(goqu.C("table_name").Asc(), goqu.C("ordinal_position").Asc()).
		ToSQL()
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to build columns query")
	}
	return query, args, nil
}

// SchemaBuilder groups information_schema rows into object classes, in the
// order the rows arrive.
type SchemaBuilder struct {
	schema *core.Schema
	index  map[string]int
}

// NewSchemaBuilder creates an empty SchemaBuilder.
func NewSchemaBuilder() *SchemaBuilder {
	return &SchemaBuilder{schema: &core.Schema{}, index: make(map[string]int)}
}

// Add records one column.
func (s *SchemaBuilder) Add(table, column, dataType, nullable string) {
	i, ok := s.index[table]
	if !ok {
		i = len(s.schema.ObjectClasses)
		s.index[table] = i
		s.schema.ObjectClasses = append(s.schema.ObjectClasses, core.ObjectClassInfo{Name: core.ObjectClass(table)})
	}
	s.schema.ObjectClasses[i].Attributes = append(s.schema.ObjectClasses[i].Attributes, core.AttributeInfo{
		Name:     column,
		Type:     dataType,
		Required: strings.EqualFold(nullable, "NO"),
	})
}

// Schema returns the collected schema.
func (s *SchemaBuilder) Schema() *core.Schema {
	return s.schema
}

// FilterExpression translates filter. Parts that cannot be expressed are
// widened to "match everything"; exact is false when that happened.
func (b *Builder) FilterExpression(filter core.Filter) (expr exp.Expression, exact bool) {
	if filter == nil {
		return nil, true
	}

	switch f := filter.(type) {
	case *core.EqualsFilter:
		col := goqu.C(b.column(f.Attribute))
		if f.Value == nil {
			return col.IsNull(), true
		}
		return col.Eq(f.Value), true
	case *core.ContainsFilter:
		return goqu.C(b.column(f.Attribute)).Like("%" + escapeLike(f.Value) + "%"), true
	case *core.StartsWithFilter:
		return goqu.C(b.column(f.Attribute)).Like(escapeLike(f.Value) + "%"), true
	case *core.GreaterThanFilter:
		return goqu.C(b.column(f.Attribute)).Gt(f.Value), true
	case *core.LessThanFilter:
		return goqu.C(b.column(f.Attribute)).Lt(f.Value), true
	case *core.AndFilter:
		exact = true
		parts := make([]exp.Expression, 0, len(f.Filters))
		for _, child := range f.Filters {
			e, ok := b.FilterExpression(child)
			exact = exact && ok
			if e != nil {
				parts = append(parts, e)
			}
		}
		if len(parts) == 0 {
			return nil, exact
		}
		return goqu.And(parts...), exact
	case *core.OrFilter:
		parts := make([]exp.Expression, 0, len(f.Filters))
		for _, child := range f.Filters {
			e, ok := b.FilterExpression(child)
			if !ok || e == nil {
				return nil, false
			}
			parts = append(parts, e)
		}
		return goqu.Or(parts...), true
	case *core.NotFilter:
		e, ok := b.FilterExpression(f.Filter)
		if !ok || e == nil {
			return nil, false
		}
		return goqu.L("NOT (?)", e), true
	}
	return nil, false
}

func (b *Builder) column(attribute string) string {
	if attribute == core.UidAttribute {
		return b.uidColumn
	}
	return attribute
}

func (b *Builder) record(attrs map[string]interface{}) goqu.Record {
	rec := make(goqu.Record, len(attrs))
	for k, v := range attrs {
		rec[b.column(k)] = v
	}
	return rec
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// RowToObject builds a connector object from one result row. The key column
// becomes the Uid and is also kept as an attribute.
func RowToObject(objectClass core.ObjectClass, uidColumn string, columns []string, values []interface{}) *core.ConnectorObject {
	obj := &core.ConnectorObject{
		ObjectClass: objectClass,
		Attributes:  make(map[string]interface{}, len(columns)),
	}
	for i, col := range columns {
		if i >= len(values) {
			break
		}
		v := normalize(values[i])
		obj.Attributes[col] = v
		if col == uidColumn && v != nil {
			obj.Uid = core.Uid(fmt.Sprint(v))
		}
	}
	return obj
}

func normalize(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
