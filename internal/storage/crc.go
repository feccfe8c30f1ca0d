package storage

import "hash/crc32"

// castagnoli is the CRC32C polynomial table used for every on-disk checksum
// in KotaDB (pages and WAL records). The standard library's implementation
// is the idiomatic choice here — no package in the example pack provides a
// CRC32C variant, and reaching for one would just wrap the same table.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func checksum(b []byte) uint32 {
	return crc32.Checksum(b, castagnoli)
}
