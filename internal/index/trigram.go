package index

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	kerrors "github.com/kotadb/kotadb/internal/errors"
	"github.com/kotadb/kotadb/internal/interfaces"
	"github.com/kotadb/kotadb/internal/types"
)

// ContentFetcher is the narrow slice of Storage a trigram index needs for
// substring verification — a search candidate that survives intersection
// still has to be confirmed against real content, since trigram overlap
// alone doesn't prove the query occurs contiguously.
type ContentFetcher interface {
	Get(ctx context.Context, id types.DocumentID) (*types.Document, error)
}

// TrigramIndex is the full-text index over document content. Inserts land in
// an in-memory posting buffer that flushes to an immutable sorted segment
// file once it crosses flushThreshold; deletes and re-indexes are handled by
// bumping a per-document version counter rather than rewriting postings —
// a posting is live only while it still carries the document's current
// version, so compaction is the only place stale postings are ever reclaimed.
type TrigramIndex struct {
	mu    sync.RWMutex
	dir   string
	fetch ContentFetcher

	flushThreshold int
	compactAt      int

	active      map[uint32]map[types.DocumentID]uint64
	activeCount int

	docVersion map[types.DocumentID]uint64

	recency    map[types.DocumentID]int64
	recencySeq int64

	segments      []*segment
	nextSegmentID uint64
}

var _ interfaces.Index = (*TrigramIndex)(nil)

// Config tunes the index's flush and compaction cadence.
type Config struct {
	FlushThreshold int // postings buffered before an automatic flush
	CompactAt      int // segment count that triggers automatic compaction
}

// Open loads any existing segment files from dir (named seg-<id>.trg, sorted
// by generation) and returns a ready index. fetch is used only for the
// post-intersection substring verification step in Search.
func Open(dir string, fetch ContentFetcher, cfg Config) (*TrigramIndex, error) {
	if cfg.FlushThreshold <= 0 {
		cfg.FlushThreshold = 4096
	}
	if cfg.CompactAt <= 0 {
		cfg.CompactAt = 8
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, kerrors.New(kerrors.IO, "index.Open", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, kerrors.New(kerrors.IO, "index.Open", err)
	}

	ti := &TrigramIndex{
		dir:            dir,
		fetch:          fetch,
		flushThreshold: cfg.FlushThreshold,
		compactAt:      cfg.CompactAt,
		active:         make(map[uint32]map[types.DocumentID]uint64),
		docVersion:     make(map[types.DocumentID]uint64),
		recency:        make(map[types.DocumentID]int64),
	}

	var ids []uint64
	for _, e := range entries {
		var id uint64
		if _, err := fmt.Sscanf(e.Name(), "seg-%020d.trg", &id); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		seg, err := loadSegment(segmentPath(dir, id), id)
		if err != nil {
			return nil, err
		}
		ti.segments = append(ti.segments, seg)
		if id >= ti.nextSegmentID {
			ti.nextSegmentID = id + 1
		}
	}

	// Rebuild docVersion/recency from the newest posting of each document
	// across every loaded segment, so a reopened index's live set survives
	// a restart even though recency itself is best-effort across restarts.
	for _, seg := range ti.segments {
		for _, r := range seg.records {
			if r.Version > ti.docVersion[r.Doc] {
				ti.docVersion[r.Doc] = r.Version
			}
		}
	}
	for doc := range ti.docVersion {
		ti.recencySeq++
		ti.recency[doc] = ti.recencySeq
	}

	return ti, nil
}

// Insert indexes content under id, superseding any prior version of id.
func (ti *TrigramIndex) Insert(ctx context.Context, id types.DocumentID, content []byte) error {
	if err := ctx.Err(); err != nil {
		return kerrors.New(kerrors.Cancelled, "TrigramIndex.Insert", err)
	}

	ti.mu.Lock()
	defer ti.mu.Unlock()

	ti.docVersion[id]++
	v := ti.docVersion[id]
	ti.recencySeq++
	ti.recency[id] = ti.recencySeq

	for _, g := range extractTrigrams(normalizeASCII(content)) {
		bucket, ok := ti.active[g]
		if !ok {
			bucket = make(map[types.DocumentID]uint64)
			ti.active[g] = bucket
		}
		if _, exists := bucket[id]; !exists {
			ti.activeCount++
		}
		bucket[id] = v
	}

	if ti.activeCount >= ti.flushThreshold {
		if err := ti.flushLocked(); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes id from the live set. Its postings become unreachable
// immediately (docVersion no longer matches) and are physically reclaimed
// at the next compaction.
func (ti *TrigramIndex) Remove(ctx context.Context, id types.DocumentID) error {
	if err := ctx.Err(); err != nil {
		return kerrors.New(kerrors.Cancelled, "TrigramIndex.Remove", err)
	}

	ti.mu.Lock()
	defer ti.mu.Unlock()

	delete(ti.docVersion, id)
	delete(ti.recency, id)
	for g, bucket := range ti.active {
		if _, ok := bucket[id]; ok {
			delete(bucket, id)
			ti.activeCount--
			if len(bucket) == 0 {
				delete(ti.active, g)
			}
		}
	}
	return nil
}

// Hit is one ranked search result.
type Hit struct {
	DocumentID  types.DocumentID
	MatchCount  int
	RecencyRank int64
}

// Search returns documents containing query, ranked by occurrence count
// descending then recency descending. Queries shorter than three bytes
// can't address the trigram index at all, so they degrade to a linear scan
// over every live document's content — documented as the accepted cost of
// supporting short queries rather than rejecting them outright.
func (ti *TrigramIndex) Search(ctx context.Context, query string, limit int) ([]interfaces.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, kerrors.New(kerrors.Cancelled, "TrigramIndex.Search", err)
	}
	if limit <= 0 {
		limit = 20
	}

	normQuery := string(normalizeASCII([]byte(query)))

	if len(normQuery) < 3 {
		return ti.scanSearch(ctx, normQuery, limit)
	}

	ti.mu.RLock()
	grams := extractTrigrams([]byte(normQuery))
	docSets := make([]map[types.DocumentID]struct{}, len(grams))
	for i, g := range grams {
		docSets[i] = ti.liveDocsForTrigramLocked(g)
	}
	recency := make(map[types.DocumentID]int64, len(ti.recency))
	for k, v := range ti.recency {
		recency[k] = v
	}
	ti.mu.RUnlock()

	if len(docSets) == 0 {
		return nil, nil
	}
	sort.Slice(docSets, func(i, j int) bool { return len(docSets[i]) < len(docSets[j]) })

	candidates := docSets[0]
	for _, s := range docSets[1:] {
		next := make(map[types.DocumentID]struct{}, len(candidates))
		for doc := range candidates {
			if _, ok := s[doc]; ok {
				next[doc] = struct{}{}
			}
		}
		candidates = next
		if len(candidates) == 0 {
			return nil, nil
		}
	}

	var hits []interfaces.SearchHit
	for doc := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, kerrors.New(kerrors.Cancelled, "TrigramIndex.Search", err)
		}
		d, err := ti.fetch.Get(ctx, doc)
		if err != nil {
			continue // a race with a concurrent delete; skip rather than fail the whole search
		}
		count := strings.Count(string(normalizeASCII(d.Content)), normQuery)
		if count == 0 {
			continue // trigram false positive: grams overlapped without the query occurring contiguously
		}
		hits = append(hits, interfaces.SearchHit{DocumentID: doc, MatchingGrams: count, RecencyRank: recency[doc]})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].MatchingGrams != hits[j].MatchingGrams {
			return hits[i].MatchingGrams > hits[j].MatchingGrams
		}
		return hits[i].RecencyRank > hits[j].RecencyRank
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// scanSearch expects query already normalized (see Search).
func (ti *TrigramIndex) scanSearch(ctx context.Context, query string, limit int) ([]interfaces.SearchHit, error) {
	ti.mu.RLock()
	docs := make([]types.DocumentID, 0, len(ti.docVersion))
	for doc := range ti.docVersion {
		docs = append(docs, doc)
	}
	recency := make(map[types.DocumentID]int64, len(ti.recency))
	for k, v := range ti.recency {
		recency[k] = v
	}
	ti.mu.RUnlock()

	var hits []interfaces.SearchHit
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, kerrors.New(kerrors.Cancelled, "TrigramIndex.Search", err)
		}
		d, err := ti.fetch.Get(ctx, doc)
		if err != nil {
			continue
		}
		count := strings.Count(string(normalizeASCII(d.Content)), query)
		if count == 0 {
			continue
		}
		hits = append(hits, interfaces.SearchHit{DocumentID: doc, MatchingGrams: count, RecencyRank: recency[doc]})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].MatchingGrams != hits[j].MatchingGrams {
			return hits[i].MatchingGrams > hits[j].MatchingGrams
		}
		return hits[i].RecencyRank > hits[j].RecencyRank
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// liveDocsForTrigramLocked must be called with ti.mu held (read or write).
func (ti *TrigramIndex) liveDocsForTrigramLocked(g uint32) map[types.DocumentID]struct{} {
	live := make(map[types.DocumentID]struct{})
	if bucket, ok := ti.active[g]; ok {
		for doc, v := range bucket {
			if ti.docVersion[doc] == v {
				live[doc] = struct{}{}
			}
		}
	}
	for _, seg := range ti.segments {
		for _, r := range seg.lookup(g) {
			if ti.docVersion[r.Doc] == r.Version {
				live[r.Doc] = struct{}{}
			}
		}
	}
	return live
}

func (ti *TrigramIndex) flushLocked() error {
	if ti.activeCount == 0 {
		return nil
	}
	var records []posting
	for g, bucket := range ti.active {
		for doc, v := range bucket {
			records = append(records, posting{Trigram: g, Doc: doc, Version: v})
		}
	}
	seg, err := writeSegment(ti.dir, ti.nextSegmentID, records)
	if err != nil {
		return err
	}
	ti.nextSegmentID++
	ti.segments = append(ti.segments, seg)
	ti.active = make(map[uint32]map[types.DocumentID]uint64)
	ti.activeCount = 0

	if len(ti.segments) >= ti.compactAt {
		return ti.compactLocked()
	}
	return nil
}

// compactLocked merges every segment's still-live postings into one new
// segment and atomically swaps it in, deleting the superseded files only
// after the merged segment is durably written — a crash mid-compaction
// leaves the old segments intact, never a half-written result.
func (ti *TrigramIndex) compactLocked() error {
	var merged []posting
	for _, seg := range ti.segments {
		for _, r := range seg.records {
			if ti.docVersion[r.Doc] == r.Version {
				merged = append(merged, r)
			}
		}
	}

	newID := ti.nextSegmentID
	ti.nextSegmentID++
	newSeg, err := writeSegment(ti.dir, newID, merged)
	if err != nil {
		return err
	}

	old := ti.segments
	ti.segments = []*segment{newSeg}
	for _, seg := range old {
		os.Remove(seg.path)
	}
	return nil
}

// Flush forces any buffered postings to disk without waiting for the
// automatic threshold, for callers that need a consistent on-disk state
// (e.g. before closing the process).
func (ti *TrigramIndex) Flush() error {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	return ti.flushLocked()
}

// Close flushes any buffered postings.
func (ti *TrigramIndex) Close() error {
	return ti.Flush()
}

// normalizeASCII lowercases ASCII letters and passes every other byte
// through unchanged, per §4.4's "lowercase ASCII; non-ASCII passes through
// byte-identical" normalization rule.
func normalizeASCII(content []byte) []byte {
	out := make([]byte, len(content))
	for i, c := range content {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}

func extractTrigrams(content []byte) []uint32 {
	if len(content) < 3 {
		return nil
	}
	seen := make(map[uint32]struct{})
	for i := 0; i+2 < len(content); i++ {
		g := uint32(content[i])<<16 | uint32(content[i+1])<<8 | uint32(content[i+2])
		seen[g] = struct{}{}
	}
	grams := make([]uint32, 0, len(seen))
	for g := range seen {
		grams = append(grams, g)
	}
	return grams
}
