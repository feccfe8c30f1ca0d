package storage

import (
	"encoding/binary"
	"errors"

	kerrors "github.com/kotadb/kotadb/internal/errors"
	"github.com/kotadb/kotadb/internal/types"
)

var errBadMagic = errors.New("page: bad magic")
var errBadChecksum = errors.New("page: checksum mismatch")

// Wire layout of a page's PageHeaderSize-byte header:
//   magic[4] version[2] kind[1] lsn[8] nextPage[4] checksum[4] reserved[9]
const (
	offMagic    = 0
	offVersion  = 4
	offKind     = 6
	offLSN      = 7
	offNextPage = 15
	offChecksum = 19
)

func encodeHeader(h types.PageHeader) []byte {
	buf := make([]byte, types.PageHeaderSize)
	binary.LittleEndian.PutUint32(buf[offMagic:], h.Magic)
	binary.LittleEndian.PutUint16(buf[offVersion:], h.Version)
	buf[offKind] = byte(h.Kind)
	binary.LittleEndian.PutUint64(buf[offLSN:], h.LSN)
	binary.LittleEndian.PutUint32(buf[offNextPage:], uint32(h.NextPage))
	binary.LittleEndian.PutUint32(buf[offChecksum:], h.Checksum)
	return buf
}

func decodeHeader(buf []byte) types.PageHeader {
	return types.PageHeader{
		Magic:    binary.LittleEndian.Uint32(buf[offMagic:]),
		Version:  binary.LittleEndian.Uint16(buf[offVersion:]),
		Kind:     types.PageKind(buf[offKind]),
		LSN:      binary.LittleEndian.Uint64(buf[offLSN:]),
		NextPage: types.PageID(binary.LittleEndian.Uint32(buf[offNextPage:])),
		Checksum: binary.LittleEndian.Uint32(buf[offChecksum:]),
	}
}

// encodePage builds a full PageSize page: header followed by payload,
// zero-padded to PagePayloadSize, with the checksum computed over the
// (padded) payload region.
func encodePage(h types.PageHeader, payload []byte) []byte {
	buf := make([]byte, types.PageSize)
	padded := buf[types.PageHeaderSize:]
	copy(padded, payload)
	h.Checksum = checksum(padded)
	copy(buf, encodeHeader(h))
	return buf
}

// decodePage validates the magic and checksum of a raw page buffer and
// returns its header and payload. A checksum or magic mismatch is always
// Corruption — never retried, per §7.
func decodePage(buf []byte) (types.PageHeader, []byte, error) {
	if len(buf) != types.PageSize {
		return types.PageHeader{}, nil, kerrors.New(kerrors.Corruption, "PageStore.decode", errBadMagic)
	}
	h := decodeHeader(buf)
	if h.Magic != types.PageMagic {
		return types.PageHeader{}, nil, kerrors.New(kerrors.Corruption, "PageStore.decode", errBadMagic)
	}
	payload := buf[types.PageHeaderSize:]
	if checksum(payload) != h.Checksum {
		return types.PageHeader{}, nil, kerrors.New(kerrors.Corruption, "PageStore.decode", errBadChecksum)
	}
	return h, payload, nil
}
