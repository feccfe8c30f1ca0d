// Package index implements the trigram full-text index described in §4.4:
// an in-memory posting buffer that periodically flushes to immutable,
// sorted segment files on disk, with tombstone-free deletes handled by a
// per-document version stamp instead (a posting is live only while its
// stamp still matches the document's current version).
package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/natefinch/atomic"

	kerrors "github.com/kotadb/kotadb/internal/errors"
	"github.com/kotadb/kotadb/internal/types"
)

const (
	segmentMagic    uint32 = 0x4B534547 // "KSEG"
	segmentVersion  uint16 = 1
	segmentRecSize         = 4 + 16 + 8 // trigram + doc id + version
)

// posting is one (trigram, document, version) entry. It is live only when
// Version equals the document's current version as tracked by TrigramIndex;
// a stale or deleted document's postings are simply never read as live
// again, letting compaction reclaim them lazily instead of rewriting the
// segment on every delete.
type posting struct {
	Trigram uint32
	Doc     types.DocumentID
	Version uint64
}

// segment is one immutable, sorted (by Trigram then Doc) posting file, kept
// fully resident once loaded — the posting lists this exercise produces are
// small enough that a binary-search-in-memory segment is the right trade
// between simplicity and the "flush to disk, compact later" shape called
// for by the design.
type segment struct {
	id      uint64
	path    string
	records []posting
}

func segmentPath(dir string, id uint64) string {
	return filepath.Join(dir, fmt.Sprintf("seg-%020d.trg", id))
}

func writeSegment(dir string, id uint64, records []posting) (*segment, error) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Trigram != records[j].Trigram {
			return records[i].Trigram < records[j].Trigram
		}
		return bytes.Compare(records[i].Doc[:], records[j].Doc[:]) < 0
	})

	buf := make([]byte, 10+len(records)*segmentRecSize+4)
	binary.LittleEndian.PutUint32(buf[0:4], segmentMagic)
	binary.LittleEndian.PutUint16(buf[4:6], segmentVersion)
	binary.LittleEndian.PutUint32(buf[6:10], uint32(len(records)))

	off := 10
	for _, r := range records {
		binary.LittleEndian.PutUint32(buf[off:off+4], r.Trigram)
		copy(buf[off+4:off+20], r.Doc[:])
		binary.LittleEndian.PutUint64(buf[off+20:off+28], r.Version)
		off += segmentRecSize
	}
	crc := crc32Checksum(buf[:off])
	binary.LittleEndian.PutUint32(buf[off:off+4], crc)

	path := segmentPath(dir, id)
	if err := atomic.WriteFile(path, bytes.NewReader(buf)); err != nil {
		return nil, kerrors.New(kerrors.IO, "index.writeSegment", err)
	}
	return &segment{id: id, path: path, records: records}, nil
}

func loadSegment(path string, id uint64) (*segment, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, kerrors.New(kerrors.IO, "index.loadSegment", err)
	}
	if len(buf) < 14 {
		return nil, kerrors.New(kerrors.Corruption, "index.loadSegment", errSegmentShort)
	}
	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != segmentMagic {
		return nil, kerrors.New(kerrors.Corruption, "index.loadSegment", errSegmentMagic)
	}
	count := int(binary.LittleEndian.Uint32(buf[6:10]))
	want := 10 + count*segmentRecSize + 4
	if len(buf) != want {
		return nil, kerrors.New(kerrors.Corruption, "index.loadSegment", errSegmentShort)
	}
	gotCRC := binary.LittleEndian.Uint32(buf[want-4 : want])
	if crc32Checksum(buf[:want-4]) != gotCRC {
		return nil, kerrors.New(kerrors.Corruption, "index.loadSegment", errSegmentChecksum)
	}

	records := make([]posting, count)
	off := 10
	for i := 0; i < count; i++ {
		records[i].Trigram = binary.LittleEndian.Uint32(buf[off : off+4])
		copy(records[i].Doc[:], buf[off+4:off+20])
		records[i].Version = binary.LittleEndian.Uint64(buf[off+20 : off+28])
		off += segmentRecSize
	}
	return &segment{id: id, path: path, records: records}, nil
}

// lookup returns every record for trigram, relying on the segment's
// (Trigram, Doc) sort order to binary-search the range.
func (s *segment) lookup(trigram uint32) []posting {
	lo := sort.Search(len(s.records), func(i int) bool { return s.records[i].Trigram >= trigram })
	hi := lo
	for hi < len(s.records) && s.records[hi].Trigram == trigram {
		hi++
	}
	return s.records[lo:hi]
}
