package core

// SkipMatching wraps handler so that the first offset objects matching filter
// are dropped. Connectors that cannot push an offset down to the external
// system use it to honor PagedResultsOffset.
func SkipMatching(filter Filter, offset int, handler ResultsHandler) ResultsHandler {
	if offset <= 0 {
		return handler
	}
	skipped := 0
	return func(obj *ConnectorObject) bool {
		if skipped < offset && Matches(filter, obj) {
			skipped++
			return true
		}
		return handler(obj)
	}
}

// Offset returns options.PagedResultsOffset, tolerating nil options.
func (o *OperationOptions) Offset() int {
	if o == nil {
		return 0
	}
	return o.PagedResultsOffset
}
