package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	kerrors "github.com/kotadb/kotadb/internal/errors"
	"github.com/kotadb/kotadb/internal/interfaces"
	"github.com/kotadb/kotadb/internal/types"
)

// DocumentStore is the on-disk document engine described in §4.3: a WAL for
// durability, a PageStore for materialized storage, and a bounded in-memory
// cache, bound together by a primary index of document ID to its page chain
// head. Writes are single-writer; reads may run concurrently with a writer.
type DocumentStore struct {
	pages *PageStore
	wal   *WAL
	cache *documentCache

	writeMu sync.Mutex // serializes Put/Delete, per the single-writer model

	indexMu sync.RWMutex
	primary map[types.DocumentID]types.PageID // doc id -> head page
	byPath  map[string]types.DocumentID       // path -> doc id, for List
}

var _ interfaces.Storage = (*DocumentStore)(nil)

// DocumentStoreConfig bundles the tunables OpenDocumentStore needs beyond a
// directory: whether every write fsyncs before returning, and the LRU cache
// capacity in documents.
type DocumentStoreConfig struct {
	Durable       bool
	CacheCapacity int
}

// OpenDocumentStore opens (or creates) the page file and WAL under dir and
// runs crash recovery: read the superblock, replay the WAL to rebuild the
// primary index and re-materialize any pages a crash may have left
// incomplete, fsync the page file, then start a fresh WAL generation.
func OpenDocumentStore(dir string, cfg DocumentStoreConfig) (*DocumentStore, error) {
	pages, err := OpenPageStore(filepath.Join(dir, "data.pages"), cfg.Durable)
	if err != nil {
		return nil, err
	}
	wal, err := OpenWAL(filepath.Join(dir, "wal.log"), cfg.Durable)
	if err != nil {
		pages.Close()
		return nil, err
	}

	ds := &DocumentStore{
		pages:   pages,
		wal:     wal,
		cache:   newDocumentCache(cfg.CacheCapacity),
		primary: make(map[types.DocumentID]types.PageID),
		byPath:  make(map[string]types.DocumentID),
	}

	lastLSN := uint64(0)
	replayErr := wal.Replay(0, func(rec types.WALRecord) error {
		lastLSN = rec.LSN
		switch rec.Kind {
		case types.WALPut:
			doc, err := decodeDocument(rec.Payload)
			if err != nil {
				return err
			}
			if old, ok := ds.primary[rec.Target]; ok {
				if err := ds.freeChain(old); err != nil {
					return err
				}
			}
			head, err := ds.writePages(rec.Payload, rec.LSN)
			if err != nil {
				return err
			}
			ds.primary[rec.Target] = head
			ds.byPath[doc.Path] = rec.Target
		case types.WALDelete:
			if head, ok := ds.primary[rec.Target]; ok {
				if err := ds.freeChain(head); err != nil {
					return err
				}
				delete(ds.primary, rec.Target)
				for p, id := range ds.byPath {
					if id == rec.Target {
						delete(ds.byPath, p)
						break
					}
				}
			}
		}
		return nil
	})
	if replayErr != nil {
		pages.Close()
		wal.Close()
		return nil, replayErr
	}

	if err := pages.Sync(); err != nil {
		pages.Close()
		wal.Close()
		return nil, err
	}
	if err := wal.Checkpoint(lastLSN); err != nil {
		pages.Close()
		wal.Close()
		return nil, err
	}

	return ds, nil
}

// Put writes doc durably: the WAL record lands first, then the page chain is
// (re)materialized and the in-memory index updated.
func (ds *DocumentStore) Put(ctx context.Context, doc *types.Document) error {
	if err := ctx.Err(); err != nil {
		return kerrors.New(kerrors.Cancelled, "DocumentStore.Put", err)
	}
	if !doc.Validate() {
		return kerrors.New(kerrors.BadRequest, "DocumentStore.Put", fmt.Errorf("document %s: size or hash does not match content", doc.ID))
	}

	ds.writeMu.Lock()
	defer ds.writeMu.Unlock()

	payload := encodeDocument(doc)
	lsn, err := ds.wal.Append(types.WALPut, doc.ID, payload)
	if err != nil {
		return kerrors.Wrap("DocumentStore.Put", err)
	}

	ds.indexMu.Lock()
	oldHead, hadOld := ds.primary[doc.ID]
	ds.indexMu.Unlock()
	if hadOld {
		if err := ds.freeChain(oldHead); err != nil {
			return kerrors.Wrap("DocumentStore.Put", err)
		}
	}

	head, err := ds.writePages(payload, lsn)
	if err != nil {
		return kerrors.Wrap("DocumentStore.Put", err)
	}

	ds.indexMu.Lock()
	ds.primary[doc.ID] = head
	ds.byPath[doc.Path] = doc.ID
	ds.indexMu.Unlock()

	ds.cache.put(doc.ID, doc)
	return nil
}

// Get returns the document for id, served from cache when present.
func (ds *DocumentStore) Get(ctx context.Context, id types.DocumentID) (*types.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, kerrors.New(kerrors.Cancelled, "DocumentStore.Get", err)
	}

	if doc, ok := ds.cache.get(id); ok {
		return doc, nil
	}

	ds.indexMu.RLock()
	head, ok := ds.primary[id]
	ds.indexMu.RUnlock()
	if !ok {
		return nil, kerrors.New(kerrors.NotFound, "DocumentStore.Get", errDocumentNotFound)
	}

	payload, err := ds.readPages(head)
	if err != nil {
		return nil, kerrors.Wrap("DocumentStore.Get", err)
	}
	doc, err := decodeDocument(payload)
	if err != nil {
		return nil, kerrors.Wrap("DocumentStore.Get", err)
	}
	ds.cache.put(id, doc)
	return doc, nil
}

// Delete removes a document, freeing its page chain after the delete record
// is durable.
func (ds *DocumentStore) Delete(ctx context.Context, id types.DocumentID) error {
	if err := ctx.Err(); err != nil {
		return kerrors.New(kerrors.Cancelled, "DocumentStore.Delete", err)
	}

	ds.writeMu.Lock()
	defer ds.writeMu.Unlock()

	ds.indexMu.RLock()
	head, ok := ds.primary[id]
	ds.indexMu.RUnlock()
	if !ok {
		return kerrors.New(kerrors.NotFound, "DocumentStore.Delete", errDocumentNotFound)
	}

	if _, err := ds.wal.Append(types.WALDelete, id, nil); err != nil {
		return kerrors.Wrap("DocumentStore.Delete", err)
	}
	if err := ds.freeChain(head); err != nil {
		return kerrors.Wrap("DocumentStore.Delete", err)
	}

	ds.indexMu.Lock()
	delete(ds.primary, id)
	for p, pid := range ds.byPath {
		if pid == id {
			delete(ds.byPath, p)
			break
		}
	}
	ds.indexMu.Unlock()

	ds.cache.remove(id)
	return nil
}

// List returns an iterator over every document whose path has pathPrefix.
// The snapshot of matching IDs is taken under lock; each document is then
// fetched lazily as the caller advances the iterator.
func (ds *DocumentStore) List(ctx context.Context, pathPrefix string) (interfaces.DocumentIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, kerrors.New(kerrors.Cancelled, "DocumentStore.List", err)
	}

	ds.indexMu.RLock()
	ids := make([]types.DocumentID, 0, len(ds.byPath))
	for path, id := range ds.byPath {
		if strings.HasPrefix(path, pathPrefix) {
			ids = append(ids, id)
		}
	}
	ds.indexMu.RUnlock()

	return &documentIterator{ctx: ctx, store: ds, ids: ids}, nil
}

// Lookup returns the document ID currently stored at path, if any. Ingest
// uses this to decide whether a walked file is a fresh Put or a re-ingest of
// an existing path, and to resolve deleted-file paths to an ID to remove.
func (ds *DocumentStore) Lookup(path string) (types.DocumentID, bool) {
	ds.indexMu.RLock()
	defer ds.indexMu.RUnlock()
	id, ok := ds.byPath[path]
	return id, ok
}

// Close flushes and closes the WAL and page store.
func (ds *DocumentStore) Close() error {
	walErr := ds.wal.Close()
	pagesErr := ds.pages.Close()
	if walErr != nil {
		return walErr
	}
	return pagesErr
}

func (ds *DocumentStore) writePages(payload []byte, lsn uint64) (types.PageID, error) {
	chunkSize := types.PagePayloadSize
	var chunks [][]byte
	for i := 0; i < len(payload); i += chunkSize {
		end := i + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, payload[i:end])
	}
	if len(chunks) == 0 {
		chunks = [][]byte{{}}
	}

	ids := make([]types.PageID, len(chunks))
	for i := range chunks {
		id, err := ds.pages.Allocate()
		if err != nil {
			return types.InvalidPageID, err
		}
		ids[i] = id
	}

	for i, chunk := range chunks {
		next := types.InvalidPageID
		if i+1 < len(ids) {
			next = ids[i+1]
		}
		kind := types.PageKindOverflow
		if i == 0 {
			kind = types.PageKindData
		}
		if err := ds.pages.Write(ids[i], kind, chunk, next, lsn); err != nil {
			return types.InvalidPageID, err
		}
	}
	return ids[0], nil
}

func (ds *DocumentStore) readPages(head types.PageID) ([]byte, error) {
	var buf []byte
	id := head
	for id != types.InvalidPageID {
		payload, err := ds.pages.Read(id)
		if err != nil {
			return nil, err
		}
		hdr, err := ds.pages.ReadHeader(id)
		if err != nil {
			return nil, err
		}
		buf = append(buf, payload...)
		id = hdr.NextPage
	}
	return buf, nil
}

func (ds *DocumentStore) freeChain(head types.PageID) error {
	id := head
	for id != types.InvalidPageID {
		hdr, err := ds.pages.ReadHeader(id)
		if err != nil {
			return err
		}
		next := hdr.NextPage
		if err := ds.pages.Free(id); err != nil {
			return err
		}
		id = next
	}
	return nil
}

var errDocumentNotFound = kerrors.IsNotFound

// documentIterator walks a fixed snapshot of document IDs taken at List
// time, fetching each document (cache-first) as the caller advances.
type documentIterator struct {
	ctx   context.Context
	store *DocumentStore
	ids   []types.DocumentID
	pos   int
	cur   *types.Document
	err   error
}

func (it *documentIterator) Next() bool {
	if it.err != nil || it.pos >= len(it.ids) {
		return false
	}
	doc, err := it.store.Get(it.ctx, it.ids[it.pos])
	it.pos++
	if err != nil {
		it.err = err
		return false
	}
	it.cur = doc
	return true
}

func (it *documentIterator) Document() *types.Document { return it.cur }
func (it *documentIterator) Err() error                 { return it.err }
func (it *documentIterator) Close() error               { return nil }
