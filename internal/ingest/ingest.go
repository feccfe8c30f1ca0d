package ingest

import (
	"context"
	"os"
	"sync"

	"github.com/kotadb/kotadb/internal/config"
	kerrors "github.com/kotadb/kotadb/internal/errors"
	"github.com/kotadb/kotadb/internal/graph"
	"github.com/kotadb/kotadb/internal/interfaces"
	"github.com/kotadb/kotadb/internal/parser"
	"github.com/kotadb/kotadb/internal/symbols"
	"github.com/kotadb/kotadb/internal/types"
	"github.com/kotadb/kotadb/internal/workerpool"
)

// Ingester ties the document store, text index, symbol store, and parser
// together into a single per-file pipeline, then rebuilds the dependency
// graph once a walk completes. One Ingester serves one repository's data
// directory.
type Ingester struct {
	docs    interfaces.Storage
	index   interfaces.Index
	symbols *symbols.Store
	parser  *parser.Parser

	graphPath string
}

// New builds an Ingester over already-open storage components.
func New(docs interfaces.Storage, index interfaces.Index, symbolStore *symbols.Store, p *parser.Parser, graphPath string) *Ingester {
	return &Ingester{docs: docs, index: index, symbols: symbolStore, parser: p, graphPath: graphPath}
}

// Stats summarizes one Ingest call.
type Stats struct {
	FilesIngested int
	FilesSkipped  int
	FilesDeleted  int
	SymbolCount   int
	UnresolvedRef int
}

// Ingest walks root, runs every surviving file through read -> Put -> Parse
// -> ExtractSymbols -> Insert, removes documents for paths no longer present,
// and finishes with a single DependencyGraph.Build + Save, per §4's
// "ingestion pipeline" description.
func (ig *Ingester) Ingest(ctx context.Context, root string, cfg config.Ingest) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, kerrors.New(kerrors.Cancelled, "Ingester.Ingest", err)
	}

	files, err := walkTree(root, cfg)
	if err != nil {
		return Stats{}, kerrors.New(kerrors.IO, "Ingester.Ingest", err)
	}

	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		seen[f.relPath] = struct{}{}
	}

	pool := workerpool.New(cfg.ParallelWorkers)
	var stats Stats
	var allRefs []types.Reference
	var mu sync.Mutex

	tasks := make([]func(ctx context.Context) error, len(files))
	for i, f := range files {
		f := f
		tasks[i] = func(ctx context.Context) error {
			refs, ingested, err := ig.ingestFile(ctx, f)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.FilesSkipped++
				return nil
			}
			if ingested {
				stats.FilesIngested++
			}
			allRefs = append(allRefs, refs...)
			return nil
		}
	}
	if err := pool.Go(ctx, tasks); err != nil {
		return stats, kerrors.Wrap("Ingester.Ingest", err)
	}

	deleted, err := ig.pruneMissing(ctx, seen)
	if err != nil {
		return stats, err
	}
	stats.FilesDeleted = deleted

	g := graph.Build(ig.symbols, allRefs)
	if err := g.Save(ig.graphPath); err != nil {
		return stats, err
	}

	stats.SymbolCount = len(ig.symbols.GetAll())
	stats.UnresolvedRef = g.UnresolvedReferences()
	return stats, nil
}

// ingestFile runs the single-file pipeline, returning the references the
// parser found in it (for the caller to accumulate before the one graph
// rebuild at the end of the walk).
func (ig *Ingester) ingestFile(ctx context.Context, f walkFile) ([]types.Reference, bool, error) {
	content, err := os.ReadFile(f.absPath)
	if err != nil {
		return nil, false, kerrors.New(kerrors.IO, "Ingester.ingestFile", err)
	}

	id := types.NewDocumentID()
	if existing, ok := ig.lookupDocID(f.relPath); ok {
		id = existing
	}
	doc := types.NewDocument(id, f.relPath, content, contentTypeFor(f.relPath), f.relPath)
	if err := ig.docs.Put(ctx, doc); err != nil {
		return nil, false, kerrors.Wrap("Ingester.ingestFile", err)
	}

	if err := ig.index.Insert(ctx, doc.ID, content); err != nil {
		return nil, false, kerrors.Wrap("Ingester.ingestFile", err)
	}

	lang, ok := parser.DetectLanguage(f.relPath)
	if !ok {
		return nil, true, nil
	}

	result, err := ig.parser.Parse(ctx, f.relPath, content, lang, func(qualifiedName string, kind types.SymbolKind, startLine int) types.SymbolID {
		return symbols.DeriveSymbolID(f.relPath, qualifiedName, kind, startLine)
	})
	if err != nil {
		return nil, true, nil
	}

	if err := ig.symbols.ExtractSymbols(ctx, result); err != nil {
		return nil, true, kerrors.Wrap("Ingester.ingestFile", err)
	}

	return result.References, true, nil
}

// pruneMissing removes documents and symbols for files the previous ingest
// knew about but the current walk no longer sees.
func (ig *Ingester) pruneMissing(ctx context.Context, seen map[string]struct{}) (int, error) {
	removed := 0
	for _, path := range ig.symbols.Files() {
		if _, ok := seen[path]; ok {
			continue
		}
		// ExtractSymbols with an empty symbol set tombstones every symbol
		// currently recorded for path, which is exactly "this file is gone".
		if err := ig.symbols.ExtractSymbols(ctx, types.ParseResult{FilePath: path, Symbols: nil}); err != nil {
			return removed, kerrors.Wrap("Ingester.pruneMissing", err)
		}
		if id, ok := ig.lookupDocID(path); ok {
			if err := ig.docs.Delete(ctx, id); err != nil && kerrors.KindOf(err) != kerrors.NotFound {
				return removed, kerrors.Wrap("Ingester.pruneMissing", err)
			}
			if err := ig.index.Remove(ctx, id); err != nil && kerrors.KindOf(err) != kerrors.NotFound {
				return removed, kerrors.Wrap("Ingester.pruneMissing", err)
			}
		}
		removed++
	}
	return removed, nil
}

// lookupDocID resolves path to an existing DocumentID, if the underlying
// store exposes one. DocumentStore always does; a test double may not,
// in which case every file is treated as a fresh insert.
func (ig *Ingester) lookupDocID(path string) (types.DocumentID, bool) {
	type pathLookup interface {
		Lookup(path string) (types.DocumentID, bool)
	}
	if pl, ok := ig.docs.(pathLookup); ok {
		return pl.Lookup(path)
	}
	return types.DocumentID{}, false
}

func contentTypeFor(path string) string {
	if lang, ok := parser.DetectLanguage(path); ok {
		return "text/x-" + string(lang)
	}
	return "text/plain"
}
