package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kotadb/kotadb/internal/types"
)

func TestPageStoreAllocateWriteRead(t *testing.T) {
	dir := t.TempDir()
	ps, err := OpenPageStore(filepath.Join(dir, "data.pages"), true)
	require.NoError(t, err)
	defer ps.Close()

	id, err := ps.Allocate()
	require.NoError(t, err)
	require.Equal(t, types.PageID(1), id) // page 0 is the superblock

	payload := []byte("some page content")
	require.NoError(t, ps.Write(id, types.PageKindData, payload, types.InvalidPageID, 1))

	got, err := ps.Read(id)
	require.NoError(t, err)
	require.Equal(t, payload, got[:len(payload)])
}

func TestPageStoreFreeListReuse(t *testing.T) {
	dir := t.TempDir()
	ps, err := OpenPageStore(filepath.Join(dir, "data.pages"), false)
	require.NoError(t, err)
	defer ps.Close()

	a, err := ps.Allocate()
	require.NoError(t, err)
	b, err := ps.Allocate()
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	require.NoError(t, ps.Free(a))

	c, err := ps.Allocate()
	require.NoError(t, err)
	require.Equal(t, a, c) // reused from the free list, not a fresh grow
}

func TestPageStoreReopenReadsSuperblock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.pages")

	ps, err := OpenPageStore(path, true)
	require.NoError(t, err)
	id, err := ps.Allocate()
	require.NoError(t, err)
	require.NoError(t, ps.Write(id, types.PageKindData, []byte("x"), types.InvalidPageID, 1))
	require.NoError(t, ps.Close())

	ps2, err := OpenPageStore(path, true)
	require.NoError(t, err)
	defer ps2.Close()

	got, err := ps2.Read(id)
	require.NoError(t, err)
	require.Equal(t, byte('x'), got[0])

	next, err := ps2.Allocate()
	require.NoError(t, err)
	require.NotEqual(t, id, next)
}

func TestPageStoreCorruptionDetected(t *testing.T) {
	dir := t.TempDir()
	ps, err := OpenPageStore(filepath.Join(dir, "data.pages"), true)
	require.NoError(t, err)
	defer ps.Close()

	id, err := ps.Allocate()
	require.NoError(t, err)
	require.NoError(t, ps.Write(id, types.PageKindData, []byte("original"), types.InvalidPageID, 1))

	buf := make([]byte, types.PageSize)
	_, err = ps.file.ReadAt(buf, offsetOf(id))
	require.NoError(t, err)
	buf[types.PageHeaderSize] ^= 0xFF // flip a payload bit without updating the checksum
	_, err = ps.file.WriteAt(buf, offsetOf(id))
	require.NoError(t, err)

	_, err = ps.Read(id)
	require.Error(t, err)
}
