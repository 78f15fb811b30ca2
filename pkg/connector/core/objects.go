package core

import (
	"fmt"
	"sort"
	"time"
)

// ObjectClass names a kind of object on the external system (a table,
// collection, topic or key prefix).
type ObjectClass string

// Uid identifies an object within its object class.
type Uid string

// UidAttribute is the attribute name filters use to address an object's Uid.
const UidAttribute = "__UID__"

// ConnectorObject is one object read from or written to a connector.
type ConnectorObject struct {
	ObjectClass ObjectClass            `json:"object_class"`
	Uid         Uid                    `json:"uid"`
	Attributes  map[string]interface{} `json:"attributes"`
}

// Attribute returns the named attribute. The Uid is reachable as UidAttribute.
func (o *ConnectorObject) Attribute(name string) (interface{}, bool) {
	if name == UidAttribute {
		return string(o.Uid), o.Uid != ""
	}
	v, ok := o.Attributes[name]
	return v, ok
}

// Project returns a copy that only carries the listed attributes. An empty
// list keeps everything.
func (o *ConnectorObject) Project(attrs []string) *ConnectorObject {
	if len(attrs) == 0 {
		return o
	}
	out := &ConnectorObject{
		ObjectClass: o.ObjectClass,
		Uid:         o.Uid,
		Attributes:  make(map[string]interface{}, len(attrs)),
	}
	for _, name := range attrs {
		if v, ok := o.Attributes[name]; ok {
			out.Attributes[name] = v
		}
	}
	return out
}

// OperationOptions carries optional per-call settings.
type OperationOptions struct {
	// PageSize limits the number of objects a search returns; zero is unlimited
	PageSize int `json:"page_size,omitempty"`
	// PagedResultsOffset skips that many matching objects
	PagedResultsOffset int `json:"paged_results_offset,omitempty"`
	// AttributesToGet restricts returned attributes
	AttributesToGet []string `json:"attributes_to_get,omitempty"`
	// SortBy orders search results by attribute (connectors that can sort natively)
	SortBy []SortKey `json:"sort_by,omitempty"`
}

// SortKey orders results by one attribute.
type SortKey struct {
	Field     string `json:"field"`
	Ascending bool   `json:"ascending"`
}

// SearchResult summarizes a completed search.
type SearchResult struct {
	// PagedResultsCookie lets the caller resume a paged search; empty when done
	PagedResultsCookie string `json:"paged_results_cookie,omitempty"`
	// RemainingResults is -1 when unknown
	RemainingResults int `json:"remaining_results"`
}

// ResultsHandler receives search results. Returning false stops the search.
type ResultsHandler func(obj *ConnectorObject) bool

// ChangeType classifies a change event.
type ChangeType string

const (
	ChangeTypeCreate ChangeType = "create"
	ChangeTypeUpdate ChangeType = "update"
	ChangeTypeDelete ChangeType = "delete"
)

// ChangeEvent is one change delivered to a subscription.
type ChangeEvent struct {
	Type      ChangeType       `json:"type"`
	Object    *ConnectorObject `json:"object"`
	Timestamp time.Time        `json:"timestamp"`
	// Position is an opaque connector-specific resume marker
	Position string `json:"position,omitempty"`
}

// ChangeHandler receives change events. Returning false asks the connector to
// stop delivering; the subscription still has to be closed by its owner.
// Handlers run on the delivery goroutine and must not call Close on their own
// subscription: database and broker streams wait for that goroutine to exit.
type ChangeHandler func(event *ChangeEvent) bool

// Schema describes the object classes a connector exposes.
type Schema struct {
	ObjectClasses []ObjectClassInfo `json:"object_classes"`
}

// ObjectClassInfo describes one object class.
type ObjectClassInfo struct {
	Name       ObjectClass     `json:"name"`
	Attributes []AttributeInfo `json:"attributes"`
}

// AttributeInfo describes one attribute.
type AttributeInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// FindObjectClass returns the named object class.
func (s *Schema) FindObjectClass(name ObjectClass) (*ObjectClassInfo, bool) {
	for i := range s.ObjectClasses {
		if s.ObjectClasses[i].Name == name {
			return &s.ObjectClasses[i], true
		}
	}
	return nil, false
}

// SortedKeys returns attribute names in a stable order.
func SortedKeys(attrs map[string]interface{}) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the object for logs.
func (o *ConnectorObject) String() string {
	return fmt.Sprintf("%s/%s", o.ObjectClass, o.Uid)
}
