// Package interfaces defines the two capability sets the storage engine
// exposes to the rest of KotaDB: Storage (the document store) and Index (the
// trigram text index). Concrete implementations are wired together once at
// construction; everything above this layer is polymorphic over the
// capability set rather than any concrete type, per §9's "dynamic dispatch
// across storage/index backends" note.
package interfaces

import (
	"context"

	"github.com/kotadb/kotadb/internal/types"
)

// Storage is the document storage capability set.
type Storage interface {
	Put(ctx context.Context, doc *types.Document) error
	Get(ctx context.Context, id types.DocumentID) (*types.Document, error)
	Delete(ctx context.Context, id types.DocumentID) error
	List(ctx context.Context, pathPrefix string) (DocumentIterator, error)
	Close() error
}

// DocumentIterator lazily walks a List result. Next advances and reports
// whether a document is available; Err reports any iteration failure.
type DocumentIterator interface {
	Next() bool
	Document() *types.Document
	Err() error
	Close() error
}

// Index is the full-text search capability set.
type Index interface {
	Insert(ctx context.Context, id types.DocumentID, content []byte) error
	Remove(ctx context.Context, id types.DocumentID) error
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
	Close() error
}

// SearchHit is one ranked Index.Search result.
type SearchHit struct {
	DocumentID    types.DocumentID
	MatchingGrams int
	RecencyRank   int64
}
