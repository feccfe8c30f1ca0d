package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kotadb/kotadb/internal/types"
)

type fakeFetcher struct {
	docs map[types.DocumentID]*types.Document
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{docs: make(map[types.DocumentID]*types.Document)}
}

func (f *fakeFetcher) put(id types.DocumentID, content string) {
	f.docs[id] = types.NewDocument(id, "f", []byte(content), "text/plain", "f")
}

func (f *fakeFetcher) Get(_ context.Context, id types.DocumentID) (*types.Document, error) {
	return f.docs[id], nil
}

func TestTrigramIndexInsertAndSearch(t *testing.T) {
	dir := t.TempDir()
	fetch := newFakeFetcher()
	ti, err := Open(dir, fetch, Config{FlushThreshold: 100, CompactAt: 8})
	require.NoError(t, err)
	defer ti.Close()

	ctx := context.Background()
	id1 := types.NewDocumentID()
	id2 := types.NewDocumentID()
	fetch.put(id1, "the quick brown fox")
	fetch.put(id2, "a slow brown bear")

	require.NoError(t, ti.Insert(ctx, id1, []byte("the quick brown fox")))
	require.NoError(t, ti.Insert(ctx, id2, []byte("a slow brown bear")))

	hits, err := ti.Search(ctx, "brown", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	hits, err = ti.Search(ctx, "quick", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, id1, hits[0].DocumentID)
}

func TestTrigramIndexSearchIsCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	fetch := newFakeFetcher()
	ti, err := Open(dir, fetch, Config{FlushThreshold: 100, CompactAt: 8})
	require.NoError(t, err)
	defer ti.Close()

	ctx := context.Background()
	id := types.NewDocumentID()
	fetch.put(id, "The Quick Brown Fox")
	require.NoError(t, ti.Insert(ctx, id, []byte("The Quick Brown Fox")))

	hits, err := ti.Search(ctx, "quick", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	hits, err = ti.Search(ctx, "QUICK", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestTrigramIndexShortQueryDegradesToScan(t *testing.T) {
	dir := t.TempDir()
	fetch := newFakeFetcher()
	ti, err := Open(dir, fetch, Config{FlushThreshold: 100, CompactAt: 8})
	require.NoError(t, err)
	defer ti.Close()

	ctx := context.Background()
	id := types.NewDocumentID()
	fetch.put(id, "ab cd ef")
	require.NoError(t, ti.Insert(ctx, id, []byte("ab cd ef")))

	hits, err := ti.Search(ctx, "cd", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestTrigramIndexRemoveStopsMatching(t *testing.T) {
	dir := t.TempDir()
	fetch := newFakeFetcher()
	ti, err := Open(dir, fetch, Config{FlushThreshold: 100, CompactAt: 8})
	require.NoError(t, err)
	defer ti.Close()

	ctx := context.Background()
	id := types.NewDocumentID()
	fetch.put(id, "unique content here")
	require.NoError(t, ti.Insert(ctx, id, []byte("unique content here")))
	require.NoError(t, ti.Remove(ctx, id))

	hits, err := ti.Search(ctx, "unique", 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestTrigramIndexFlushAndReopen(t *testing.T) {
	dir := t.TempDir()
	fetch := newFakeFetcher()
	ti, err := Open(dir, fetch, Config{FlushThreshold: 1, CompactAt: 8})
	require.NoError(t, err)

	ctx := context.Background()
	id := types.NewDocumentID()
	fetch.put(id, "persisted segment content")
	require.NoError(t, ti.Insert(ctx, id, []byte("persisted segment content")))
	require.NoError(t, ti.Close())

	ti2, err := Open(dir, fetch, Config{FlushThreshold: 1, CompactAt: 8})
	require.NoError(t, err)
	defer ti2.Close()

	hits, err := ti2.Search(ctx, "segment", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestTrigramIndexReindexSupersedesOldVersion(t *testing.T) {
	dir := t.TempDir()
	fetch := newFakeFetcher()
	ti, err := Open(dir, fetch, Config{FlushThreshold: 1, CompactAt: 100})
	require.NoError(t, err)
	defer ti.Close()

	ctx := context.Background()
	id := types.NewDocumentID()
	fetch.put(id, "original wording")
	require.NoError(t, ti.Insert(ctx, id, []byte("original wording")))

	fetch.put(id, "rewritten text")
	require.NoError(t, ti.Insert(ctx, id, []byte("rewritten text")))

	hits, err := ti.Search(ctx, "original", 10)
	require.NoError(t, err)
	require.Empty(t, hits)

	hits, err = ti.Search(ctx, "rewritten", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}
