package index

import (
	"errors"
	"hash/crc32"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func crc32Checksum(b []byte) uint32 {
	return crc32.Checksum(b, castagnoli)
}

var (
	errSegmentShort    = errors.New("index: truncated segment file")
	errSegmentMagic    = errors.New("index: bad segment magic")
	errSegmentChecksum = errors.New("index: segment checksum mismatch")
)
