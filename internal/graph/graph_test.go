package graph

import (
	"context"
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kotadb/kotadb/internal/symbols"
	"github.com/kotadb/kotadb/internal/types"
)

func buildTestGraph(t *testing.T) (*Graph, map[string]types.SymbolID) {
	t.Helper()
	dir := t.TempDir()
	store, err := symbols.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mainID := symbols.DeriveSymbolID("main.go", "main", types.KindFunction, 1)
	helperID := symbols.DeriveSymbolID("main.go", "helper", types.KindFunction, 10)
	unrelatedID := symbols.DeriveSymbolID("other.go", "unrelated", types.KindFunction, 1)

	result := types.ParseResult{
		FilePath: "main.go",
		Symbols: []types.Symbol{
			{ID: mainID, Name: "main", QualifiedName: "main", Kind: types.KindFunction, FilePath: "main.go", LineSpan: types.Span{Start: 1, End: 5}},
			{ID: helperID, Name: "helper", QualifiedName: "helper", Kind: types.KindFunction, FilePath: "main.go", LineSpan: types.Span{Start: 10, End: 15}},
		},
	}
	require.NoError(t, store.ExtractSymbols(context.Background(), result))
	require.NoError(t, store.ExtractSymbols(context.Background(), types.ParseResult{
		FilePath: "other.go",
		Symbols:  []types.Symbol{{ID: unrelatedID, Name: "unrelated", QualifiedName: "unrelated", Kind: types.KindFunction, FilePath: "other.go"}},
	}))

	refs := []types.Reference{
		{Name: "helper", FilePath: "main.go", EnclosingSymbol: mainID},
		{Name: "nonexistent_symbol", FilePath: "main.go", EnclosingSymbol: mainID},
	}

	g := Build(store, refs)
	return g, map[string]types.SymbolID{"main": mainID, "helper": helperID, "unrelated": unrelatedID}
}

func TestGraphBuildResolvesSameFileCall(t *testing.T) {
	g, ids := buildTestGraph(t)

	edges := g.Neighbors(ids["main"], Outgoing, types.EdgeCalls, false)
	require.Len(t, edges, 1)
	require.Equal(t, ids["helper"], edges[0].Target)

	require.Equal(t, 1, g.UnresolvedReferences())
}

func TestGraphSaveAndLoadRoundTrip(t *testing.T) {
	g, ids := buildTestGraph(t)
	path := t.TempDir() + "/graph.kgph"
	require.NoError(t, g.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	edges := loaded.Neighbors(ids["main"], Outgoing, types.EdgeCalls, false)
	require.Len(t, edges, 1)
	require.Equal(t, ids["helper"], edges[0].Target)

	main, ok := loaded.Symbol(ids["main"])
	require.True(t, ok)
	require.Equal(t, "main", main.Name)
	require.Equal(t, types.Span{Start: 1, End: 5}, main.LineSpan)
}

// TestGraphSaveMatchesDocumentedLayout decodes the header fields an external
// reader built only from §6's format description would expect: u32 magic,
// u32 version, u64 symbol_count, u64 edge_count, then a symbol_count+1-long
// u64 adjacency-offsets table whose final entry equals edge_count.
func TestGraphSaveMatchesDocumentedLayout(t *testing.T) {
	g, _ := buildTestGraph(t)
	path := t.TempDir() + "/graph.kgph"
	require.NoError(t, g.Save(path))

	buf, err := os.ReadFile(path)
	require.NoError(t, err)

	off := 0
	readU32 := func() uint32 { v := binary.LittleEndian.Uint32(buf[off:]); off += 4; return v }
	readU64 := func() uint64 { v := binary.LittleEndian.Uint64(buf[off:]); off += 8; return v }

	require.Equal(t, uint32(0x4B475048), readU32(), "magic")
	require.Equal(t, uint32(1), readU32(), "version")
	symbolCount := readU64()
	edgeCount := readU64()
	require.Equal(t, uint64(3), symbolCount)
	require.Equal(t, uint64(1), edgeCount)

	for i := 0; i < int(symbolCount); i++ {
		off += 16 + 1 // id + kind
		nameLen := binary.LittleEndian.Uint16(buf[off:])
		off += 2 + int(nameLen)
		pathLen := binary.LittleEndian.Uint16(buf[off:])
		off += 2 + int(pathLen)
		off += 4 + 4 // start_line, end_line
	}

	offsets := make([]uint64, symbolCount+1)
	for i := range offsets {
		offsets[i] = readU64()
	}
	require.Equal(t, edgeCount, offsets[symbolCount])
}

func TestQueryEngineFindCallersAndCallees(t *testing.T) {
	g, ids := buildTestGraph(t)
	qe := NewQueryEngine(g)

	callees, err := qe.FindCallees(context.Background(), ids["main"], Options{})
	require.NoError(t, err)
	require.Len(t, callees.Symbols, 1)
	require.Equal(t, "helper", callees.Symbols[0].Name)

	callers, err := qe.FindCallers(context.Background(), ids["helper"], Options{})
	require.NoError(t, err)
	require.Len(t, callers.Symbols, 1)
	require.Equal(t, "main", callers.Symbols[0].Name)
}

func TestQueryEngineFindPaths(t *testing.T) {
	g, ids := buildTestGraph(t)
	qe := NewQueryEngine(g)

	path, _, err := qe.FindPaths(context.Background(), ids["main"], ids["helper"], Options{})
	require.NoError(t, err)
	require.Len(t, path, 2)
	require.Equal(t, "main", path[0].Name)
	require.Equal(t, "helper", path[1].Name)
}

func TestQueryEngineSymbolSearch(t *testing.T) {
	g, _ := buildTestGraph(t)
	qe := NewQueryEngine(g)

	got := qe.SymbolSearch("helper")
	require.Len(t, got, 1)
	require.Equal(t, "helper", got[0].Name)
}
