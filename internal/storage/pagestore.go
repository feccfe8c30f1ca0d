package storage

import (
	"encoding/binary"
	"io"
	"os"
	"sync"

	kerrors "github.com/kotadb/kotadb/internal/errors"
	"github.com/kotadb/kotadb/internal/types"
)

// PageStore manages a single fixed-page-size file: allocation, read/write,
// and the free list. It has no knowledge of WAL or documents — DocumentStore
// sequences WAL-then-page writes on top of it.
type PageStore struct {
	mu      sync.RWMutex
	file    *os.File
	path    string
	durable bool
	sb      types.Superblock
}

// OpenPageStore opens an existing page file or creates a fresh one with a
// new superblock at page 0.
func OpenPageStore(path string, durable bool) (*PageStore, error) {
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, kerrors.New(kerrors.IO, "PageStore.Open", err)
	}

	ps := &PageStore{file: f, path: path, durable: durable}

	if isNew {
		ps.sb = types.Superblock{
			Magic:        types.PageMagic,
			Version:      uint16(types.PageVersion),
			PageSize:     types.PageSize,
			FreeListHead: types.InvalidPageID,
			NextPageID:   1, // page 0 is reserved for the superblock
		}
		if err := ps.writeSuperblockLocked(); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		if err := ps.readSuperblockLocked(); err != nil {
			f.Close()
			return nil, err
		}
	}

	return ps, nil
}

func (ps *PageStore) readSuperblockLocked() error {
	buf := make([]byte, types.PageSize)
	if _, err := ps.file.ReadAt(buf, 0); err != nil {
		return kerrors.New(kerrors.IO, "PageStore.readSuperblock", err)
	}
	_, payload, err := decodePage(buf)
	if err != nil {
		return err
	}
	ps.sb = decodeSuperblock(payload)
	return nil
}

func (ps *PageStore) writeSuperblockLocked() error {
	payload := encodeSuperblock(ps.sb)
	buf := encodePage(types.PageHeader{
		Magic:   types.PageMagic,
		Version: types.PageVersion,
		Kind:    types.PageKindData,
	}, payload)
	if _, err := ps.file.WriteAt(buf, 0); err != nil {
		return kerrors.New(kerrors.IO, "PageStore.writeSuperblock", err)
	}
	if ps.durable {
		if err := ps.file.Sync(); err != nil {
			return kerrors.New(kerrors.IO, "PageStore.writeSuperblock", err)
		}
	}
	return nil
}

// Allocate returns an unused page: popped from the free list if non-empty,
// otherwise the file is grown by one page.
func (ps *PageStore) Allocate() (types.PageID, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.sb.FreeListHead != types.InvalidPageID {
		head := ps.sb.FreeListHead
		buf := make([]byte, types.PageSize)
		if _, err := ps.file.ReadAt(buf, offsetOf(head)); err != nil {
			return types.InvalidPageID, kerrors.New(kerrors.IO, "PageStore.Allocate", err)
		}
		hdr, _, err := decodePage(buf)
		if err != nil {
			return types.InvalidPageID, err
		}
		ps.sb.FreeListHead = hdr.NextPage
		if err := ps.writeSuperblockLocked(); err != nil {
			return types.InvalidPageID, err
		}
		return head, nil
	}

	id := ps.sb.NextPageID
	ps.sb.NextPageID++
	if err := ps.writeSuperblockLocked(); err != nil {
		return types.InvalidPageID, err
	}
	return id, nil
}

// Read validates and returns the payload bytes of page id.
func (ps *PageStore) Read(id types.PageID) ([]byte, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	buf := make([]byte, types.PageSize)
	if _, err := ps.file.ReadAt(buf, offsetOf(id)); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, kerrors.New(kerrors.NotFound, "PageStore.Read", err)
		}
		return nil, kerrors.New(kerrors.IO, "PageStore.Read", err)
	}
	_, payload, err := decodePage(buf)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// ReadHeader returns the decoded header of page id, for overflow-chain
// traversal without paying for a payload copy.
func (ps *PageStore) ReadHeader(id types.PageID) (types.PageHeader, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	buf := make([]byte, types.PageHeaderSize)
	if _, err := ps.file.ReadAt(buf, offsetOf(id)); err != nil {
		return types.PageHeader{}, kerrors.New(kerrors.IO, "PageStore.ReadHeader", err)
	}
	return decodeHeader(buf), nil
}

// Write stamps the header (kind, lsn, checksum, next-page link for overflow
// chains) and persists the page, fsyncing when the store is durable.
func (ps *PageStore) Write(id types.PageID, kind types.PageKind, payload []byte, nextPage types.PageID, lsn uint64) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	buf := encodePage(types.PageHeader{
		Magic:    types.PageMagic,
		Version:  types.PageVersion,
		Kind:     kind,
		LSN:      lsn,
		NextPage: nextPage,
	}, payload)

	if _, err := ps.file.WriteAt(buf, offsetOf(id)); err != nil {
		return kerrors.New(kerrors.IO, "PageStore.Write", err)
	}
	if ps.durable {
		if err := ps.file.Sync(); err != nil {
			return kerrors.New(kerrors.IO, "PageStore.Write", err)
		}
	}
	return nil
}

// Free pushes id onto the head of the free list.
func (ps *PageStore) Free(id types.PageID) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	buf := encodePage(types.PageHeader{
		Magic:    types.PageMagic,
		Version:  types.PageVersion,
		Kind:     types.PageKindFree,
		NextPage: ps.sb.FreeListHead,
	}, nil)
	if _, err := ps.file.WriteAt(buf, offsetOf(id)); err != nil {
		return kerrors.New(kerrors.IO, "PageStore.Free", err)
	}
	ps.sb.FreeListHead = id
	return ps.writeSuperblockLocked()
}

// Superblock returns a copy of the current superblock.
func (ps *PageStore) Superblock() types.Superblock {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.sb
}

// Sync flushes the page file to disk regardless of the durable setting; used
// by DocumentStore at the end of crash recovery.
func (ps *PageStore) Sync() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if err := ps.file.Sync(); err != nil {
		return kerrors.New(kerrors.IO, "PageStore.Sync", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (ps *PageStore) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if err := ps.file.Sync(); err != nil {
		ps.file.Close()
		return kerrors.New(kerrors.IO, "PageStore.Close", err)
	}
	if err := ps.file.Close(); err != nil {
		return kerrors.New(kerrors.IO, "PageStore.Close", err)
	}
	return nil
}

func offsetOf(id types.PageID) int64 {
	return int64(id) * int64(types.PageSize)
}

func encodeSuperblock(sb types.Superblock) []byte {
	buf := make([]byte, 26)
	binary.LittleEndian.PutUint32(buf[0:4], sb.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], sb.Version)
	binary.LittleEndian.PutUint32(buf[6:10], sb.PageSize)
	binary.LittleEndian.PutUint64(buf[10:18], sb.LastCheckpointLSN)
	binary.LittleEndian.PutUint32(buf[18:22], uint32(sb.FreeListHead))
	binary.LittleEndian.PutUint32(buf[22:26], uint32(sb.NextPageID))
	return buf
}

func decodeSuperblock(payload []byte) types.Superblock {
	var sb types.Superblock
	sb.Magic = binary.LittleEndian.Uint32(payload[0:4])
	sb.Version = binary.LittleEndian.Uint16(payload[4:6])
	sb.PageSize = binary.LittleEndian.Uint32(payload[6:10])
	sb.LastCheckpointLSN = binary.LittleEndian.Uint64(payload[10:18])
	sb.FreeListHead = types.PageID(binary.LittleEndian.Uint32(payload[18:22]))
	sb.NextPageID = types.PageID(binary.LittleEndian.Uint32(payload[22:26]))
	return sb
}
