package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kotadb/kotadb/internal/types"
)

func TestWALAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWAL(filepath.Join(dir, "wal.log"), true)
	require.NoError(t, err)
	defer w.Close()

	id1 := types.NewDocumentID()
	id2 := types.NewDocumentID()

	lsn1, err := w.Append(types.WALPut, id1, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), lsn1)

	lsn2, err := w.Append(types.WALDelete, id2, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(2), lsn2)

	var got []types.WALRecord
	require.NoError(t, w.Replay(0, func(r types.WALRecord) error {
		got = append(got, r)
		return nil
	}))

	require.Len(t, got, 2)
	require.Equal(t, types.WALPut, got[0].Kind)
	require.Equal(t, id1, got[0].Target)
	require.Equal(t, []byte("hello"), got[0].Payload)
	require.Equal(t, types.WALDelete, got[1].Kind)
	require.Equal(t, id2, got[1].Target)
}

func TestWALReplayFromLSN(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWAL(filepath.Join(dir, "wal.log"), false)
	require.NoError(t, err)
	defer w.Close()

	id := types.NewDocumentID()
	for i := 0; i < 3; i++ {
		_, err := w.Append(types.WALPut, id, []byte{byte(i)})
		require.NoError(t, err)
	}

	var got []types.WALRecord
	require.NoError(t, w.Replay(2, func(r types.WALRecord) error {
		got = append(got, r)
		return nil
	}))
	require.Len(t, got, 2)
	require.Equal(t, uint64(2), got[0].LSN)
	require.Equal(t, uint64(3), got[1].LSN)
}

func TestWALTornTailIsDiscarded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")
	w, err := OpenWAL(path, true)
	require.NoError(t, err)

	id := types.NewDocumentID()
	_, err = w.Append(types.WALPut, id, []byte("complete record"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{1, 2, 3, 4, 5}) // a torn, incomplete record header
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w2, err := OpenWAL(path, true)
	require.NoError(t, err)
	defer w2.Close()

	var got []types.WALRecord
	require.NoError(t, w2.Replay(0, func(r types.WALRecord) error {
		got = append(got, r)
		return nil
	}))
	require.Len(t, got, 1)
	require.Equal(t, []byte("complete record"), got[0].Payload)
}

func TestWALCheckpointDropsOldRecords(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWAL(filepath.Join(dir, "wal.log"), true)
	require.NoError(t, err)
	defer w.Close()

	id := types.NewDocumentID()
	_, err = w.Append(types.WALPut, id, []byte("a"))
	require.NoError(t, err)
	lsn2, err := w.Append(types.WALPut, id, []byte("b"))
	require.NoError(t, err)
	lsn3, err := w.Append(types.WALPut, id, []byte("c"))
	require.NoError(t, err)

	require.NoError(t, w.Checkpoint(lsn2))

	var got []types.WALRecord
	require.NoError(t, w.Replay(0, func(r types.WALRecord) error {
		got = append(got, r)
		return nil
	}))
	require.Len(t, got, 1)
	require.Equal(t, lsn3, got[0].LSN)
	require.Equal(t, []byte("c"), got[0].Payload)
}
