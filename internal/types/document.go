// Package types defines the data model shared across KotaDB's storage,
// index, parser, symbol, and graph layers: documents, pages, WAL records,
// symbols, and edges.
package types

import (
	"crypto/sha256"
	"time"

	"github.com/google/uuid"
)

// DocumentID uniquely and immutably identifies a Document. IDs are version-4
// random UUIDs assigned at creation and never reused or mutated.
type DocumentID = uuid.UUID

// NewDocumentID mints a fresh version-4 document identifier.
func NewDocumentID() DocumentID {
	return uuid.New()
}

// Document is the unit of storage in KotaDB: a logical path plus an opaque
// content blob. ID is immutable; Size always equals len(Content); Hash always
// equals SHA-256(Content) — DocumentStore.Put enforces both on every write.
type Document struct {
	ID          DocumentID
	Path        string
	Title       string
	Content     []byte
	ContentType string
	Size        int64
	Hash        [32]byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewDocument builds a Document with Size/Hash derived from content, ready to
// hand to DocumentStore.Put. The caller supplies ID only when overwriting an
// existing document (a re-ingest); pass a freshly minted NewDocumentID()
// otherwise.
func NewDocument(id DocumentID, path string, content []byte, contentType, title string) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:          id,
		Path:        path,
		Title:       title,
		Content:     content,
		ContentType: contentType,
		Size:        int64(len(content)),
		Hash:        sha256.Sum256(content),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks the Document's invariants from §3: size and hash must
// match the content exactly.
func (d *Document) Validate() bool {
	if d.Size != int64(len(d.Content)) {
		return false
	}
	return d.Hash == sha256.Sum256(d.Content)
}
