package types

// WALRecordKind identifies the intent a WAL record carries.
type WALRecordKind uint8

const (
	WALPut WALRecordKind = iota
	WALDelete
	WALCheckpoint
)

// WALRecord is one entry in the write-ahead log. LSN is assigned by the WAL
// on Append and is strictly increasing; Target is the document ID the record
// applies to (zero value for checkpoint records); CRC32C covers the whole
// encoded record so a torn tail write is detected, not mis-applied.
type WALRecord struct {
	LSN     uint64
	Kind    WALRecordKind
	Target  DocumentID
	Payload []byte
}
