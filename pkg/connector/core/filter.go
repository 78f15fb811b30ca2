package core

import (
	"fmt"
	"strings"
	"time"
)

// Filter selects connector objects. Connectors that query natively inspect
// the concrete filter types; everything else evaluates Accept.
type Filter interface {
	Accept(obj *ConnectorObject) bool
}

// EqualsFilter matches objects whose attribute equals Value.
type EqualsFilter struct {
	Attribute string
	Value     interface{}
}

// ContainsFilter matches string attributes containing Value.
type ContainsFilter struct {
	Attribute string
	Value     string
}

// StartsWithFilter matches string attributes starting with Value.
type StartsWithFilter struct {
	Attribute string
	Value     string
}

// GreaterThanFilter matches attributes strictly greater than Value.
type GreaterThanFilter struct {
	Attribute string
	Value     interface{}
}

// LessThanFilter matches attributes strictly less than Value.
type LessThanFilter struct {
	Attribute string
	Value     interface{}
}

// AndFilter matches when every child matches.
type AndFilter struct {
	Filters []Filter
}

// OrFilter matches when any child matches.
type OrFilter struct {
	Filters []Filter
}

// NotFilter inverts its child.
type NotFilter struct {
	Filter Filter
}

// Equals builds an EqualsFilter.
func Equals(attribute string, value interface{}) *EqualsFilter {
	return &EqualsFilter{Attribute: attribute, Value: value}
}

// And combines filters, dropping nils. It returns nil when nothing remains.
func And(filters ...Filter) Filter {
	kept := compact(filters)
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &AndFilter{Filters: kept}
}

// Or combines filters, dropping nils. It returns nil when nothing remains.
func Or(filters ...Filter) Filter {
	kept := compact(filters)
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &OrFilter{Filters: kept}
}

// Matches evaluates f against obj; a nil filter matches everything.
func Matches(f Filter, obj *ConnectorObject) bool {
	if f == nil {
		return true
	}
	return f.Accept(obj)
}

func compact(filters []Filter) []Filter {
	kept := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			kept = append(kept, f)
		}
	}
	return kept
}

func (f *EqualsFilter) Accept(obj *ConnectorObject) bool {
	v, ok := obj.Attribute(f.Attribute)
	if !ok {
		return f.Value == nil
	}
	if c, ok := compareValues(v, f.Value); ok {
		return c == 0
	}
	return fmt.Sprint(v) == fmt.Sprint(f.Value)
}

func (f *ContainsFilter) Accept(obj *ConnectorObject) bool {
	s, ok := stringAttribute(obj, f.Attribute)
	return ok && strings.Contains(s, f.Value)
}

func (f *StartsWithFilter) Accept(obj *ConnectorObject) bool {
	s, ok := stringAttribute(obj, f.Attribute)
	return ok && strings.HasPrefix(s, f.Value)
}

func (f *GreaterThanFilter) Accept(obj *ConnectorObject) bool {
	v, ok := obj.Attribute(f.Attribute)
	if !ok {
		return false
	}
	c, ok := compareValues(v, f.Value)
	return ok && c > 0
}

func (f *LessThanFilter) Accept(obj *ConnectorObject) bool {
	v, ok := obj.Attribute(f.Attribute)
	if !ok {
		return false
	}
	c, ok := compareValues(v, f.Value)
	return ok && c < 0
}

func (f *AndFilter) Accept(obj *ConnectorObject) bool {
	for _, child := range f.Filters {
		if !Matches(child, obj) {
			return false
		}
	}
	return true
}

func (f *OrFilter) Accept(obj *ConnectorObject) bool {
	for _, child := range f.Filters {
		if Matches(child, obj) {
			return true
		}
	}
	return false
}

func (f *NotFilter) Accept(obj *ConnectorObject) bool {
	return !Matches(f.Filter, obj)
}

func stringAttribute(obj *ConnectorObject, name string) (string, bool) {
	v, ok := obj.Attribute(name)
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// compareValues orders numbers, strings and timestamps. The bool is false when
// the two values are not comparable.
func compareValues(a, b interface{}) (int, bool) {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
