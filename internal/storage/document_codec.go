package storage

import (
	"encoding/binary"
	"time"

	kerrors "github.com/kotadb/kotadb/internal/errors"
	"github.com/kotadb/kotadb/internal/types"
)

func nanosToTime(ns uint64) time.Time {
	return time.Unix(0, int64(ns)).UTC()
}

// encodeDocument serializes a Document into the byte stream that is written,
// verbatim, as the WAL payload for a put record and then split across the
// page chain. Every length-prefixed field lets decodeDocument stop reading
// exactly where the real data ends, so the zero-padding in a page's final
// chunk never needs to be trimmed.
func encodeDocument(d *types.Document) []byte {
	buf := make([]byte, 0, 96+len(d.Path)+len(d.Title)+len(d.ContentType)+len(d.Content))
	var tmp [8]byte

	putStr := func(s string) {
		binary.LittleEndian.PutUint32(tmp[:4], uint32(len(s)))
		buf = append(buf, tmp[:4]...)
		buf = append(buf, s...)
	}

	buf = append(buf, d.ID[:]...)
	putStr(d.Path)
	putStr(d.Title)
	putStr(d.ContentType)

	binary.LittleEndian.PutUint64(tmp[:8], uint64(len(d.Content)))
	buf = append(buf, tmp[:8]...)
	buf = append(buf, d.Content...)

	buf = append(buf, d.Hash[:]...)

	binary.LittleEndian.PutUint64(tmp[:8], uint64(d.CreatedAt.UnixNano()))
	buf = append(buf, tmp[:8]...)
	binary.LittleEndian.PutUint64(tmp[:8], uint64(d.UpdatedAt.UnixNano()))
	buf = append(buf, tmp[:8]...)

	return buf
}

var errShortDocumentRecord = kerrors.New(kerrors.Corruption, "document.decode", errBadChecksum)

func decodeDocument(buf []byte) (*types.Document, error) {
	d := &types.Document{}
	off := 0

	need := func(n int) error {
		if off+n > len(buf) {
			return errShortDocumentRecord
		}
		return nil
	}

	if err := need(16); err != nil {
		return nil, err
	}
	copy(d.ID[:], buf[off:off+16])
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
	if d.Path, err = readStr(); err != nil {
		return nil, err
	}
	if d.Title, err = readStr(); err != nil {
		return nil, err
	}
	if d.ContentType, err = readStr(); err != nil {
		return nil, err
	}

	if err := need(8); err != nil {
		return nil, err
	}
	contentLen := int(binary.LittleEndian.Uint64(buf[off : off+8]))
	off += 8
	if err := need(contentLen); err != nil {
		return nil, err
	}
	d.Content = append([]byte(nil), buf[off:off+contentLen]...)
	off += contentLen
	d.Size = int64(contentLen)

	if err := need(32); err != nil {
		return nil, err
	}
	copy(d.Hash[:], buf[off:off+32])
	off += 32

	if err := need(16); err != nil {
		return nil, err
	}
	d.CreatedAt = nanosToTime(binary.LittleEndian.Uint64(buf[off : off+8]))
	off += 8
	d.UpdatedAt = nanosToTime(binary.LittleEndian.Uint64(buf[off : off+8]))
	off += 8

	return d, nil
}
