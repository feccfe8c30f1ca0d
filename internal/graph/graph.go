// Package graph builds and serves the dependency graph described in §4.7: a
// directed multigraph over symbols, built by resolving the unresolved
// references the parser emits into concrete edges.
package graph

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"

	"github.com/natefinch/atomic"

	kerrors "github.com/kotadb/kotadb/internal/errors"
	"github.com/kotadb/kotadb/internal/symbols"
	"github.com/kotadb/kotadb/internal/types"
)

// Graph is the built, queryable dependency graph: every symbol as a node,
// every resolved reference as a directed Edge, indexed both forward and
// backward for O(1)-ish neighbor lookups in either direction.
type Graph struct {
	symbols map[types.SymbolID]types.Symbol
	out     map[types.SymbolID][]types.Edge
	in      map[types.SymbolID][]types.Edge

	generation     uint64 // the SymbolStore generation this graph was built from
	unresolvedRefs int    // references that could not be resolved to any symbol, per §4.7's drop-and-count rule
}

// Build resolves every reference against store's current symbol set using
// the three-tier rule from §4.7: (a) an exact qualified-name match within
// the same file, (b) a unique simple-name match among the names the
// reference's enclosing file imports, (c) a unique global simple-name
// match. A reference that still can't be resolved is dropped and counted
// rather than rejected — an unresolved call is common (a std-library call,
// a dynamically dispatched method) and not itself an error.
func Build(store *symbols.Store, allRefs []types.Reference) *Graph {
	allSymbols := store.GetAll()

	g := &Graph{
		symbols:    make(map[types.SymbolID]types.Symbol, len(allSymbols)),
		out:        make(map[types.SymbolID][]types.Edge),
		in:         make(map[types.SymbolID][]types.Edge),
		generation: store.Generation(),
	}
	for _, s := range allSymbols {
		g.symbols[s.ID] = s
	}

	byFileAndName := make(map[string]map[string][]types.Symbol, len(allSymbols))
	byName := make(map[string][]types.Symbol, len(allSymbols))
	for _, s := range allSymbols {
		if byFileAndName[s.FilePath] == nil {
			byFileAndName[s.FilePath] = make(map[string][]types.Symbol)
		}
		byFileAndName[s.FilePath][s.QualifiedName] = append(byFileAndName[s.FilePath][s.QualifiedName], s)
		byName[s.Name] = append(byName[s.Name], s)
	}

	for _, ref := range allRefs {
		target, ok := resolve(ref, byFileAndName, byName)
		if !ok {
			g.unresolvedRefs++
			continue
		}
		if ref.EnclosingSymbol.IsZero() {
			g.unresolvedRefs++
			continue
		}
		kind := types.EdgeCalls
		if len(ref.ImportedNames) > 0 {
			kind = types.EdgeImports
		}
		edge := types.Edge{
			Source:   ref.EnclosingSymbol,
			Target:   target,
			Kind:     kind,
			CallSite: ref.ByteSpan,
		}
		g.out[edge.Source] = append(g.out[edge.Source], edge)
		g.in[edge.Target] = append(g.in[edge.Target], edge)
	}

	return g
}

// resolve implements the three-tier lookup. Tier (a) and (b) only apply to
// references carrying useful file/import context; tier (c) is the fallback
// that requires the simple name to be globally unique, since an ambiguous
// name can't be safely guessed at.
func resolve(ref types.Reference, byFileAndName map[string]map[string][]types.Symbol, byName map[string][]types.Symbol) (types.SymbolID, bool) {
	if inFile, ok := byFileAndName[ref.FilePath]; ok {
		if matches, ok := inFile[ref.Name]; ok && len(matches) == 1 {
			return matches[0].ID, true
		}
	}

	for _, imported := range ref.ImportedNames {
		if matches, ok := byName[imported]; ok && len(matches) == 1 {
			return matches[0].ID, true
		}
	}

	if matches, ok := byName[ref.Name]; ok && len(matches) == 1 {
		return matches[0].ID, true
	}

	return types.ZeroSymbolID, false
}

// Neighbors returns every edge of kind (or of every kind, when anyKind is
// true and kind is ignored) incident on symbol in the given direction.
func (g *Graph) Neighbors(symbol types.SymbolID, direction Direction, kind types.EdgeKind, anyKind bool) []types.Edge {
	var edges []types.Edge
	if direction == Outgoing || direction == Both {
		edges = append(edges, g.out[symbol]...)
	}
	if direction == Incoming || direction == Both {
		edges = append(edges, g.in[symbol]...)
	}
	if anyKind {
		return edges
	}
	out := edges[:0]
	for _, e := range edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Symbol returns the symbol metadata for id.
func (g *Graph) Symbol(id types.SymbolID) (types.Symbol, bool) {
	s, ok := g.symbols[id]
	return s, ok
}

// Generation returns the SymbolStore generation this graph was built from.
func (g *Graph) Generation() uint64 { return g.generation }

// UnresolvedReferences returns how many references Build could not resolve.
func (g *Graph) UnresolvedReferences() int { return g.unresolvedRefs }

// Direction selects which edge direction Neighbors walks.
type Direction uint8

const (
	Outgoing Direction = iota
	Incoming
	Both
)

const (
	graphMagic   uint32 = 0x4B475048 // "KGPH"
	graphVersion uint32 = 1
)

// Save persists the graph in the exact binary format §6 pins: "KGPH" magic,
// u32 version, u64 symbol_count, u64 edge_count, symbol records (id[16] |
// kind[1] | name_len[u16] | name | path_len[u16] | path | start_line[u32] |
// end_line[u32]), a CSR-style adjacency-offsets table (u64[symbol_count+1]),
// edge records (target_idx[u64] | kind[1]) grouped by source symbol index in
// offset order, and a CRC32C trailer over everything preceding it.
func (g *Graph) Save(path string) error {
	var buf []byte
	var tmp [8]byte

	putU16 := func(v uint16) { binary.LittleEndian.PutUint16(tmp[:2], v); buf = append(buf, tmp[:2]...) }
	putU32 := func(v uint32) { binary.LittleEndian.PutUint32(tmp[:4], v); buf = append(buf, tmp[:4]...) }
	putU64 := func(v uint64) { binary.LittleEndian.PutUint64(tmp[:8], v); buf = append(buf, tmp[:8]...) }
	putStr16 := func(s string) { putU16(uint16(len(s))); buf = append(buf, s...) }

	ids := make([]types.SymbolID, 0, len(g.symbols))
	for id := range g.symbols {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
	idIndex := make(map[types.SymbolID]uint64, len(ids))
	for i, id := range ids {
		idIndex[id] = uint64(i)
	}

	offsets := make([]uint64, len(ids)+1)
	type edgeRecord struct {
		targetIdx uint64
		kind      types.EdgeKind
	}
	var edges []edgeRecord
	for i, id := range ids {
		offsets[i] = uint64(len(edges))
		out := append([]types.Edge(nil), g.out[id]...)
		sort.Slice(out, func(a, b int) bool {
			if out[a].Target != out[b].Target {
				return lessID(out[a].Target, out[b].Target)
			}
			return out[a].Kind < out[b].Kind
		})
		for _, e := range out {
			edges = append(edges, edgeRecord{targetIdx: idIndex[e.Target], kind: e.Kind})
		}
	}
	offsets[len(ids)] = uint64(len(edges))

	putU32(graphMagic)
	putU32(graphVersion)
	putU64(uint64(len(ids)))
	putU64(uint64(len(edges)))

	for _, id := range ids {
		s := g.symbols[id]
		buf = append(buf, id[:]...)
		buf = append(buf, byte(s.Kind))
		putStr16(s.Name)
		putStr16(s.FilePath)
		putU32(uint32(int32(s.LineSpan.Start)))
		putU32(uint32(int32(s.LineSpan.End)))
	}

	for _, off := range offsets {
		putU64(off)
	}

	for _, e := range edges {
		putU64(e.targetIdx)
		buf = append(buf, byte(e.kind))
	}

	crc := crc32Checksum(buf)
	binary.LittleEndian.PutUint32(tmp[:4], crc)
	buf = append(buf, tmp[:4]...)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return kerrors.New(kerrors.IO, "graph.Save", err)
	}
	if err := atomic.WriteFile(path, bytesReader(buf)); err != nil {
		return kerrors.New(kerrors.IO, "graph.Save", err)
	}
	return nil
}

func lessID(a, b types.SymbolID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
