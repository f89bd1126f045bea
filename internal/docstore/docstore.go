// Package docstore defines the document-store contract the repository layer
// consumes, with a MongoDB implementation for production and an in-process
// implementation for tests. The document store is the source of truth; the
// cache layer never writes to it.
package docstore

import (
	"context"
)

// Record is implemented by any persisted document type (on its pointer
// receiver). The store assigns an id on insert when none is set.
type Record interface {
	DocumentID() string
	SetDocumentID(id string)
}

// Doc constrains a pointer-to-document type.
type Doc[T any] interface {
	*T
	Record
}

// Sort orders a find by a single field.
type Sort struct {
	Field string
	Desc  bool
}

// Query describes a filtered, sorted, offset/limit find. A nil Sort leaves
// store order; Limit 0 means no limit.
type Query struct {
	Filter map[string]any
	Sort   *Sort
	Skip   int64
	Limit  int64
}

// Collection is one entity's document collection. Absent records come back
// as nil with no error; callers distinguish "failed" from "nothing there".
// Store errors (uniqueness violations included) propagate untranslated.
type Collection[T any, PT Doc[T]] interface {
	// Insert writes the record, assigning an id if it has none.
	Insert(ctx context.Context, record PT) error

	// FindByID returns the record or nil when absent.
	FindByID(ctx context.Context, id string) (PT, error)

	// Find returns every record matching the query.
	Find(ctx context.Context, q Query) ([]PT, error)

	// Count returns the number of records matching the filter.
	Count(ctx context.Context, filter map[string]any) (int64, error)

	// UpdateByID applies a field update and returns the post-update record,
	// or nil when no record matched.
	UpdateByID(ctx context.Context, id string, fields map[string]any) (PT, error)

	// DeleteByID removes the record and returns it, or nil when no record
	// matched.
	DeleteByID(ctx context.Context, id string) (PT, error)
}
