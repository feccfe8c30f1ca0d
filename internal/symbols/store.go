// Package symbols implements the append-mostly symbol store described in
// §4.6: a durable record of every declared symbol, keyed by a 128-bit ID
// reproducibly derived from where the symbol is declared.
package symbols

import (
	"bufio"
	"context"
	"encoding/binary"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"

	kerrors "github.com/kotadb/kotadb/internal/errors"
	"github.com/kotadb/kotadb/internal/types"
)

// DeriveSymbolID computes a reproducible 128-bit identity from the tuple
// that names a declaration site. Two independent parses of the same file
// always produce the same ID for the same declaration, which is what lets
// DependencyGraph edges survive a re-index. The two halves are xxhash64 of
// the same input under different salts — simple, fast, and collision-safe
// at the scale this index operates at.
func DeriveSymbolID(filePath, qualifiedName string, kind types.SymbolKind, startLine int) types.SymbolID {
	key := make([]byte, 0, len(filePath)+len(qualifiedName)+16)
	key = append(key, filePath...)
	key = append(key, 0)
	key = append(key, qualifiedName...)
	key = append(key, 0)
	key = append(key, byte(kind))
	var lineBuf [8]byte
	binary.LittleEndian.PutUint64(lineBuf[:], uint64(startLine))
	key = append(key, lineBuf[:]...)

	const salt2 = "kotadb-symbol-id-v1"

	h1 := xxhash.Sum64(key)
	h2 := xxhash.Sum64(append(append([]byte{}, key...), salt2...))

	var id types.SymbolID
	binary.LittleEndian.PutUint64(id[0:8], h1)
	binary.LittleEndian.PutUint64(id[8:16], h2)
	return id
}

// Store is the symbol table: a parallel-array in-memory index (grounded on
// the same array-plus-index-map shape used elsewhere in this codebase for
// hot lookup paths) backed by an append-only file so symbols survive a
// restart.
type Store struct {
	mu sync.RWMutex

	path string
	file *os.File

	data  []types.Symbol
	index map[types.SymbolID]int

	byName map[string][]types.SymbolID
	byFile map[string][]types.SymbolID

	generation uint64
}

// Open loads an existing symbols.bin (if any) and returns a ready Store.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, kerrors.New(kerrors.IO, "symbols.Open", err)
	}
	path := dir + "/symbols.bin"

	s := &Store{
		path:   path,
		index:  make(map[types.SymbolID]int),
		byName: make(map[string][]types.SymbolID),
		byFile: make(map[string][]types.SymbolID),
	}

	if existing, err := os.ReadFile(path); err == nil {
		if err := s.loadFrom(existing); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, kerrors.New(kerrors.IO, "symbols.Open", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, kerrors.New(kerrors.IO, "symbols.Open", err)
	}
	s.file = f
	return s, nil
}

const (
	recordKindSymbol    byte = 0
	recordKindTombstone byte = 1
)

func (s *Store) loadFrom(buf []byte) error {
	off := 0
	for off < len(buf) {
		if off+4 > len(buf) {
			break // torn tail record, discard
		}
		n := int(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
		if off+n > len(buf) || n == 0 {
			break
		}
		payload := buf[off : off+n]
		off += n

		switch payload[0] {
		case recordKindTombstone:
			if len(payload) < 17 {
				break
			}
			var id types.SymbolID
			copy(id[:], payload[1:17])
			s.removeLocked(id)
		default:
			sym, err := decodeSymbol(payload[1:])
			if err != nil {
				return err
			}
			s.indexLocked(sym)
		}
	}
	return nil
}

func (s *Store) indexLocked(sym types.Symbol) {
	if idx, ok := s.index[sym.ID]; ok {
		s.data[idx] = sym
		return
	}
	idx := len(s.data)
	s.data = append(s.data, sym)
	s.index[sym.ID] = idx
	s.byName[sym.Name] = append(s.byName[sym.Name], sym.ID)
	s.byFile[sym.FilePath] = append(s.byFile[sym.FilePath], sym.ID)
}

// ExtractSymbols replaces every symbol previously recorded for result's file
// with the freshly parsed set, appending the new records durably and
// bumping the store's generation counter.
func (s *Store) ExtractSymbols(ctx context.Context, result types.ParseResult) error {
	if err := ctx.Err(); err != nil {
		return kerrors.New(kerrors.Cancelled, "symbols.ExtractSymbols", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w := bufio.NewWriter(s.file)
	writeRecord := func(payload []byte) error {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return err
		}
		_, err := w.Write(payload)
		return err
	}

	for _, old := range append([]types.SymbolID(nil), s.byFile[result.FilePath]...) {
		tomb := append([]byte{recordKindTombstone}, old[:]...)
		if err := writeRecord(tomb); err != nil {
			return kerrors.New(kerrors.IO, "symbols.ExtractSymbols", err)
		}
		s.removeLocked(old)
	}

	for _, sym := range result.Symbols {
		payload := append([]byte{recordKindSymbol}, encodeSymbol(sym)...)
		if err := writeRecord(payload); err != nil {
			return kerrors.New(kerrors.IO, "symbols.ExtractSymbols", err)
		}
		s.indexLocked(sym)
	}
	if err := w.Flush(); err != nil {
		return kerrors.New(kerrors.IO, "symbols.ExtractSymbols", err)
	}
	if err := s.file.Sync(); err != nil {
		return kerrors.New(kerrors.IO, "symbols.ExtractSymbols", err)
	}

	s.generation++
	return nil
}

func (s *Store) removeLocked(id types.SymbolID) {
	idx, ok := s.index[id]
	if !ok {
		return
	}
	sym := s.data[idx]
	delete(s.index, id)
	s.byName[sym.Name] = removeID(s.byName[sym.Name], id)
	s.byFile[sym.FilePath] = removeID(s.byFile[sym.FilePath], id)
}

func removeID(ids []types.SymbolID, target types.SymbolID) []types.SymbolID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// Get returns the symbol for id.
func (s *Store) Get(id types.SymbolID) (types.Symbol, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.index[id]
	if !ok {
		return types.Symbol{}, false
	}
	return s.data[idx], true
}

// LookupByName returns every live symbol named name.
func (s *Store) LookupByName(name string) []types.Symbol {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byName[name]
	out := make([]types.Symbol, 0, len(ids))
	for _, id := range ids {
		if idx, ok := s.index[id]; ok {
			out = append(out, s.data[idx])
		}
	}
	return out
}

// ListInFile returns every live symbol declared in path.
func (s *Store) ListInFile(path string) []types.Symbol {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byFile[path]
	out := make([]types.Symbol, 0, len(ids))
	for _, id := range ids {
		if idx, ok := s.index[id]; ok {
			out = append(out, s.data[idx])
		}
	}
	return out
}

// Files returns every file path that currently has at least one live
// symbol, for ingest's deleted-file detection (a path that drops out of a
// fresh walk but is still present here was removed from the working tree).
func (s *Store) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byFile))
	for path, ids := range s.byFile {
		if len(ids) > 0 {
			out = append(out, path)
		}
	}
	return out
}

// GetAll returns every live symbol, for DependencyGraph.Build.
func (s *Store) GetAll() []types.Symbol {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Symbol, 0, len(s.index))
	for _, idx := range s.index {
		out = append(out, s.data[idx])
	}
	return out
}

// Generation returns the store's current generation counter. graph.Build
// records it on the Graph it builds; nothing compares the two to detect a
// stale graph — the graph is rebuilt at the end of every ingest.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Stats summarizes the store's current contents.
type Stats struct {
	LiveSymbols int
	Files       int
	Generation  uint64
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{LiveSymbols: len(s.index), Files: len(s.byFile), Generation: s.generation}
}

// Close flushes and closes the backing file.
func (s *Store) Close() error {
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return kerrors.New(kerrors.IO, "symbols.Close", err)
	}
	return s.file.Close()
}
