package symbols

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kotadb/kotadb/internal/types"
)

func TestDeriveSymbolIDIsReproducible(t *testing.T) {
	id1 := DeriveSymbolID("a.go", "pkg.Foo", types.KindFunction, 10)
	id2 := DeriveSymbolID("a.go", "pkg.Foo", types.KindFunction, 10)
	require.Equal(t, id1, id2)

	id3 := DeriveSymbolID("a.go", "pkg.Foo", types.KindFunction, 11)
	require.NotEqual(t, id1, id3)
}

func TestStoreExtractAndLookup(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	sym := types.Symbol{
		ID: DeriveSymbolID("a.go", "Foo", types.KindFunction, 3), Name: "Foo",
		QualifiedName: "Foo", Kind: types.KindFunction, FilePath: "a.go",
		Language: "go", LineSpan: types.Span{Start: 3, End: 5},
	}
	result := types.ParseResult{FilePath: "a.go", Language: "go", Symbols: []types.Symbol{sym}}

	require.NoError(t, s.ExtractSymbols(context.Background(), result))

	got, ok := s.Get(sym.ID)
	require.True(t, ok)
	require.Equal(t, "Foo", got.Name)

	byName := s.LookupByName("Foo")
	require.Len(t, byName, 1)

	inFile := s.ListInFile("a.go")
	require.Len(t, inFile, 1)

	require.Equal(t, uint64(1), s.Generation())
}

func TestStoreReindexSupersedesOldSymbols(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	old := types.Symbol{ID: DeriveSymbolID("a.go", "Old", types.KindFunction, 1), Name: "Old", FilePath: "a.go"}
	require.NoError(t, s.ExtractSymbols(context.Background(), types.ParseResult{FilePath: "a.go", Symbols: []types.Symbol{old}}))

	fresh := types.Symbol{ID: DeriveSymbolID("a.go", "New", types.KindFunction, 1), Name: "New", FilePath: "a.go"}
	require.NoError(t, s.ExtractSymbols(context.Background(), types.ParseResult{FilePath: "a.go", Symbols: []types.Symbol{fresh}}))

	_, ok := s.Get(old.ID)
	require.False(t, ok)

	got := s.ListInFile("a.go")
	require.Len(t, got, 1)
	require.Equal(t, "New", got[0].Name)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	sym := types.Symbol{ID: DeriveSymbolID("a.go", "Foo", types.KindFunction, 3), Name: "Foo", FilePath: "a.go"}
	require.NoError(t, s.ExtractSymbols(context.Background(), types.ParseResult{FilePath: "a.go", Symbols: []types.Symbol{sym}}))
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	got, ok := s2.Get(sym.ID)
	require.True(t, ok)
	require.Equal(t, "Foo", got.Name)
}
