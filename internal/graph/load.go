package graph

import (
	"encoding/binary"
	"os"

	kerrors "github.com/kotadb/kotadb/internal/errors"
	"github.com/kotadb/kotadb/internal/types"
)

// Load reads back a graph persisted by Save, per §6's exact "KGPH" layout.
// Fields Save does not persist (generation, unresolved-reference count,
// qualified name) come back zero-valued — they are run-scoped bookkeeping,
// not part of the durable format.
func Load(path string) (*Graph, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kerrors.New(kerrors.NotFound, "graph.Load", err)
		}
		return nil, kerrors.New(kerrors.IO, "graph.Load", err)
	}
	if len(buf) < 24 {
		return nil, kerrors.New(kerrors.Corruption, "graph.Load", errShort)
	}

	crcOffset := len(buf) - 4
	wantCRC := binary.LittleEndian.Uint32(buf[crcOffset:])
	if crc32Checksum(buf[:crcOffset]) != wantCRC {
		return nil, kerrors.New(kerrors.Corruption, "graph.Load", errBadChecksum)
	}
	buf = buf[:crcOffset]

	off := 0
	readU16 := func() uint16 { v := binary.LittleEndian.Uint16(buf[off:]); off += 2; return v }
	readU32 := func() uint32 { v := binary.LittleEndian.Uint32(buf[off:]); off += 4; return v }
	readU64 := func() uint64 { v := binary.LittleEndian.Uint64(buf[off:]); off += 8; return v }
	readStr16 := func() string {
		n := int(readU16())
		s := string(buf[off : off+n])
		off += n
		return s
	}

	magic := readU32()
	if magic != graphMagic {
		return nil, kerrors.New(kerrors.Corruption, "graph.Load", errBadMagic)
	}
	_ = readU32() // version, reserved for future format changes

	symbolCount := int(readU64())
	edgeCount := int(readU64())

	g := &Graph{
		symbols: make(map[types.SymbolID]types.Symbol, symbolCount),
		out:     make(map[types.SymbolID][]types.Edge),
		in:      make(map[types.SymbolID][]types.Edge),
	}

	ids := make([]types.SymbolID, symbolCount)
	for i := 0; i < symbolCount; i++ {
		var id types.SymbolID
		copy(id[:], buf[off:off+16])
		off += 16
		kind := types.SymbolKind(buf[off])
		off++
		name := readStr16()
		filePath := readStr16()
		lineStart := int(int32(readU32()))
		lineEnd := int(int32(readU32()))

		ids[i] = id
		g.symbols[id] = types.Symbol{
			ID: id, Name: name, Kind: kind,
			FilePath: filePath, LineSpan: types.Span{Start: lineStart, End: lineEnd},
		}
	}

	offsets := make([]uint64, symbolCount+1)
	for i := range offsets {
		offsets[i] = readU64()
	}

	totalEdges := uint64(0)
	if symbolCount > 0 {
		totalEdges = offsets[symbolCount]
	}
	if int(totalEdges) != edgeCount {
		return nil, kerrors.New(kerrors.Corruption, "graph.Load", errBadOffsets)
	}

	for i := 0; i < symbolCount; i++ {
		source := ids[i]
		for j := offsets[i]; j < offsets[i+1]; j++ {
			targetIdx := readU64()
			kind := types.EdgeKind(buf[off])
			off++
			if int(targetIdx) >= symbolCount {
				return nil, kerrors.New(kerrors.Corruption, "graph.Load", errBadOffsets)
			}
			edge := types.Edge{Source: source, Target: ids[targetIdx], Kind: kind}
			g.out[source] = append(g.out[source], edge)
			g.in[edge.Target] = append(g.in[edge.Target], edge)
		}
	}

	return g, nil
}
