// Package store defines the entity store contract the GraphQL engine compiles
// queries against, along with the filter, option and schema types that cross it.
package store

import (
	"context"
	"errors"
)

// ID identifies one record of an entity type.
type ID int64

// Record is the flat attribute map returned by Read for a single record.
// Many-to-one values are ID or nil; one-to-many values are []ID.
type Record map[string]any

// IDAttribute is the attribute every entity type exposes its identifier under.
const IDAttribute = "id"

var (
	ErrUnknownEntityType   = errors.New("unknown entity type")
	ErrUnknownAttribute    = errors.New("unknown attribute")
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrInvalidFilter       = errors.New("invalid filter")
	ErrInvalidOrder        = errors.New("invalid order")
)

// Store is a searchable entity store.
//
// Read returns one record per id that exists, in the order of ids. Callers
// rely on this to keep Search ordering through the read.
type Store interface {
	Schema(ctx context.Context) (*Schema, error)
	Search(ctx context.Context, entityType string, filter Filter, opts Options) ([]ID, error)
	Read(ctx context.Context, entityType string, ids []ID, attributes []string) ([]Record, error)
}

// Options are the recognized pagination and ordering options of a search.
// Zero values mean unset.
type Options struct {
	Offset int
	Limit  int
	Order  string
}
