package graph

import (
	"bytes"
	"errors"
	"hash/crc32"
	"io"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func crc32Checksum(b []byte) uint32 {
	return crc32.Checksum(b, castagnoli)
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

var (
	errBadMagic    = errors.New("graph: bad magic")
	errShort       = errors.New("graph: truncated file")
	errBadChecksum = errors.New("graph: checksum mismatch")
	errBadOffsets  = errors.New("graph: adjacency offsets inconsistent with edge count")
)
