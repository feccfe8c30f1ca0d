package symbols

import (
	"encoding/binary"
	"errors"

	kerrors "github.com/kotadb/kotadb/internal/errors"
	"github.com/kotadb/kotadb/internal/types"
)

var errShortRecord = errors.New("symbols: truncated record")

func encodeSymbol(sym types.Symbol) []byte {
	buf := make([]byte, 0, 64+len(sym.Name)+len(sym.QualifiedName)+len(sym.FilePath)+len(sym.Language))
	var tmp [8]byte

	putStr := func(s string) {
		binary.LittleEndian.PutUint32(tmp[:4], uint32(len(s)))
		buf = append(buf, tmp[:4]...)
		buf = append(buf, s...)
	}

	buf = append(buf, sym.ID[:]...)
	putStr(sym.Name)
	putStr(sym.QualifiedName)
	buf = append(buf, byte(sym.Kind))
	putStr(sym.FilePath)

	binary.LittleEndian.PutUint64(tmp[:8], uint64(int64(sym.ByteSpan.Start)))
	buf = append(buf, tmp[:8]...)
	binary.LittleEndian.PutUint64(tmp[:8], uint64(int64(sym.ByteSpan.End)))
	buf = append(buf, tmp[:8]...)
	binary.LittleEndian.PutUint64(tmp[:8], uint64(int64(sym.LineSpan.Start)))
	buf = append(buf, tmp[:8]...)
	binary.LittleEndian.PutUint64(tmp[:8], uint64(int64(sym.LineSpan.End)))
	buf = append(buf, tmp[:8]...)

	putStr(sym.Language)
	buf = append(buf, byte(sym.Visibility))

	return buf
}

func decodeSymbol(buf []byte) (types.Symbol, error) {
	var sym types.Symbol
	off := 0

	need := func(n int) error {
		if off+n > len(buf) {
			return kerrors.New(kerrors.Corruption, "symbols.decode", errShortRecord)
		}
		return nil
	}

	if err := need(16); err != nil {
		return sym, err
	}
	copy(sym.ID[:], buf[off:off+16])
	off += 16

	readStr := func() (string, error) {
		if err := need(4); err != nil {
			return "", err
		}
		n := int(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
		if err := need(n); err != nil {
			return "", err
		}
		s := string(buf[off : off+n])
		off += n
		return s, nil
	}

	var err error
	if sym.Name, err = readStr(); err != nil {
		return sym, err
	}
	if sym.QualifiedName, err = readStr(); err != nil {
		return sym, err
	}
	if err := need(1); err != nil {
		return sym, err
	}
	sym.Kind = types.SymbolKind(buf[off])
	off++
	if sym.FilePath, err = readStr(); err != nil {
		return sym, err
	}

	if err := need(32); err != nil {
		return sym, err
	}
	sym.ByteSpan.Start = int(int64(binary.LittleEndian.Uint64(buf[off : off+8])))
	off += 8
	sym.ByteSpan.End = int(int64(binary.LittleEndian.Uint64(buf[off : off+8])))
	off += 8
	sym.LineSpan.Start = int(int64(binary.LittleEndian.Uint64(buf[off : off+8])))
	off += 8
	sym.LineSpan.End = int(int64(binary.LittleEndian.Uint64(buf[off : off+8])))
	off += 8

	if sym.Language, err = readStr(); err != nil {
		return sym, err
	}
	if err := need(1); err != nil {
		return sym, err
	}
	sym.Visibility = types.Visibility(buf[off])
	off++

	return sym, nil
}
