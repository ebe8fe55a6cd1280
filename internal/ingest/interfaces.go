package ingest

// Walker runs a selector against a decoded document tree.
type Walker interface {
	// Query executes selector against root and returns the matches in
	// document order.
	Query(root any, selector string) ([]Match, error)
}

// Match is one value selected from the document tree.
type Match interface {
	// Object returns the match as a JSON object. ok is false for arrays
	// and primitives, which cannot be scene nodes.
	Object() (obj map[string]any, ok bool)

	// Raw returns the matched value unchanged.
	Raw() any
}
