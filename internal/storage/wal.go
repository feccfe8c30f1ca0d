package storage

import (
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/natefinch/atomic"

	kerrors "github.com/kotadb/kotadb/internal/errors"
	"github.com/kotadb/kotadb/internal/types"
)

// WAL is the append-only intent log described in §4.2: every write to
// DocumentStore is durable exactly when its WAL record's fsync has returned.
type WAL struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	durable bool
	nextLSN uint64
}

// OpenWAL opens or creates the log file. It does not replay records — the
// caller (OpenDocumentStore) is responsible for calling Replay during
// recovery before accepting new writes.
func OpenWAL(path string, durable bool) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, kerrors.New(kerrors.IO, "WAL.Open", err)
	}
	w := &WAL{file: f, path: path, durable: durable, nextLSN: 1}

	// Scan once to recover nextLSN across restarts, tolerating a torn tail.
	maxLSN := uint64(0)
	_ = w.Replay(0, func(rec types.WALRecord) error {
		if rec.LSN > maxLSN {
			maxLSN = rec.LSN
		}
		return nil
	})
	if maxLSN > 0 {
		w.nextLSN = maxLSN + 1
	}
	return w, nil
}

// recordHeaderSize is lsn[8] + kind[1] + target[16] + payloadLen[4].
const recordHeaderSize = 8 + 1 + 16 + 4

// Append appends record, assigning it the next monotonic LSN; the write is
// fsynced before returning when the WAL was opened durable.
func (w *WAL) Append(kind types.WALRecordKind, target types.DocumentID, payload []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	lsn := w.nextLSN
	w.nextLSN++

	buf := make([]byte, recordHeaderSize+len(payload)+4)
	binary.LittleEndian.PutUint64(buf[0:8], lsn)
	buf[8] = byte(kind)
	copy(buf[9:25], target[:])
	binary.LittleEndian.PutUint32(buf[25:29], uint32(len(payload)))
	copy(buf[29:29+len(payload)], payload)
	crc := checksum(buf[:29+len(payload)])
	binary.LittleEndian.PutUint32(buf[29+len(payload):], crc)

	if _, err := w.file.Write(buf); err != nil {
		return 0, kerrors.New(kerrors.IO, "WAL.Append", err)
	}
	if w.durable {
		if err := w.file.Sync(); err != nil {
			return 0, kerrors.New(kerrors.IO, "WAL.Append", err)
		}
	}
	return lsn, nil
}

// Replay scans every record with LSN >= fromLSN in file order, invoking
// visitor for each. It stops at the first torn or corrupt record (a crash
// mid-write leaves, at most, one incomplete tail record) without returning
// an error — a torn tail is an expected, recoverable condition, not a fault.
func (w *WAL) Replay(fromLSN uint64, visitor func(types.WALRecord) error) error {
	w.mu.Lock()
	f, err := os.Open(w.path)
	w.mu.Unlock()
	if err != nil {
		return kerrors.New(kerrors.IO, "WAL.Replay", err)
	}
	defer f.Close()

	header := make([]byte, recordHeaderSize)
	for {
		if _, err := io.ReadFull(f, header); err != nil {
			break // EOF or torn header: stop, discard tail
		}
		lsn := binary.LittleEndian.Uint64(header[0:8])
		kind := types.WALRecordKind(header[8])
		var target types.DocumentID
		copy(target[:], header[9:25])
		payloadLen := binary.LittleEndian.Uint32(header[25:29])

		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(f, payload); err != nil {
			break // torn payload
		}
		trailer := make([]byte, 4)
		if _, err := io.ReadFull(f, trailer); err != nil {
			break // torn trailer
		}
		wantCRC := binary.LittleEndian.Uint32(trailer)

		recBytes := make([]byte, 0, recordHeaderSize+len(payload))
		recBytes = append(recBytes, header...)
		recBytes = append(recBytes, payload...)
		if checksum(recBytes) != wantCRC {
			break // torn/corrupt record: discard this and everything after it
		}

		if lsn < fromLSN {
			continue
		}
		if err := visitor(types.WALRecord{LSN: lsn, Kind: kind, Target: target, Payload: payload}); err != nil {
			return err
		}
	}
	return nil
}

// Checkpoint drops every record with LSN <= upToLSN by atomically rewriting
// the log file, so a crash mid-checkpoint never leaves a half-truncated WAL.
func (w *WAL) Checkpoint(upToLSN uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tmp, err := os.CreateTemp(os.TempDir(), "kotadb-wal-*.tmp")
	if err != nil {
		return kerrors.New(kerrors.IO, "WAL.Checkpoint", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	keep := func(rec types.WALRecord) error {
		buf := make([]byte, recordHeaderSize+len(rec.Payload)+4)
		binary.LittleEndian.PutUint64(buf[0:8], rec.LSN)
		buf[8] = byte(rec.Kind)
		copy(buf[9:25], rec.Target[:])
		binary.LittleEndian.PutUint32(buf[25:29], uint32(len(rec.Payload)))
		copy(buf[29:29+len(rec.Payload)], rec.Payload)
		crc := checksum(buf[:29+len(rec.Payload)])
		binary.LittleEndian.PutUint32(buf[29+len(rec.Payload):], crc)
		_, err := tmp.Write(buf)
		return err
	}

	w.mu.Unlock()
	replayErr := w.Replay(upToLSN+1, keep)
	w.mu.Lock()
	if replayErr != nil {
		tmp.Close()
		return kerrors.New(kerrors.IO, "WAL.Checkpoint", replayErr)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return kerrors.New(kerrors.IO, "WAL.Checkpoint", err)
	}
	tmp.Close()

	if err := w.file.Close(); err != nil {
		return kerrors.New(kerrors.IO, "WAL.Checkpoint", err)
	}
	if err := atomic.ReplaceFile(tmpPath, w.path); err != nil {
		return kerrors.New(kerrors.IO, "WAL.Checkpoint", err)
	}
	f, err := os.OpenFile(w.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return kerrors.New(kerrors.IO, "WAL.Checkpoint", err)
	}
	w.file = f
	return nil
}

// Sync flushes the log file regardless of the durable setting.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		return kerrors.New(kerrors.IO, "WAL.Sync", err)
	}
	return nil
}

// Close flushes and closes the log file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return kerrors.New(kerrors.IO, "WAL.Close", err)
	}
	return w.file.Close()
}
