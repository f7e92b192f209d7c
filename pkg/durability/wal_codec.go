package durability

import (
	"encoding/binary"

	"github.com/agentdb/core/pkg/dberrors"
	"github.com/agentdb/core/pkg/txn"
)

// encodeOps serializes a transaction's effects into one WAL payload:
//
//	[uvarint op_count]
//	for each op:
//	  [uvarint key_len][key][u8 tombstone]
//	  if !tombstone: [uvarint value_len][value][varint ttl_micros]
//
// Hand-rolled length-prefixed binary framing, matching the teacher's own
// non-protobuf encodings (pkg/wal/entry.go's header, pkg/storage/
// checkpoint_serializer.go's node layout) rather than reaching for a
// serialization library for a handful of fixed fields.
func encodeOps(ops []txn.Op) []byte {
	size := binary.MaxVarintLen64
	for _, op := range ops {
		size += binary.MaxVarintLen64 + len(op.Key) + 1
		if !op.Tombstone {
			size += binary.MaxVarintLen64 + len(op.Value) + binary.MaxVarintLen64
		}
	}
	buf := make([]byte, 0, size)

	var tmp [binary.MaxVarintLen64]byte
	putUvarint := func(v uint64) {
		n := binary.PutUvarint(tmp[:], v)
		buf = append(buf, tmp[:n]...)
	}
	putVarint := func(v int64) {
		n := binary.PutVarint(tmp[:], v)
		buf = append(buf, tmp[:n]...)
	}

	putUvarint(uint64(len(ops)))
	for _, op := range ops {
		putUvarint(uint64(len(op.Key)))
		buf = append(buf, op.Key...)
		if op.Tombstone {
			buf = append(buf, 1)
			continue
		}
		buf = append(buf, 0)
		putUvarint(uint64(len(op.Value)))
		buf = append(buf, op.Value...)
		putVarint(op.TTLMicros)
	}
	return buf
}

// decodeOps is encodeOps's inverse, used during WAL replay.
func decodeOps(data []byte) ([]txn.Op, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, dberrors.Internal("wal: truncated op count")
	}
	data = data[n:]

	ops := make([]txn.Op, 0, count)
	for i := uint64(0); i < count; i++ {
		keyLen, n := binary.Uvarint(data)
		if n <= 0 {
			return nil, dberrors.Internal("wal: truncated key length")
		}
		data = data[n:]
		if uint64(len(data)) < keyLen+1 {
			return nil, dberrors.Internal("wal: truncated key")
		}
		key := append([]byte(nil), data[:keyLen]...)
		data = data[keyLen:]

		tombstone := data[0] == 1
		data = data[1:]

		if tombstone {
			ops = append(ops, txn.Op{Key: key, Tombstone: true})
			continue
		}

		valLen, n := binary.Uvarint(data)
		if n <= 0 {
			return nil, dberrors.Internal("wal: truncated value length")
		}
		data = data[n:]
		if uint64(len(data)) < valLen {
			return nil, dberrors.Internal("wal: truncated value")
		}
		value := append([]byte(nil), data[:valLen]...)
		data = data[valLen:]

		ttl, n := binary.Varint(data)
		if n <= 0 {
			return nil, dberrors.Internal("wal: truncated ttl")
		}
		data = data[n:]

		ops = append(ops, txn.Op{Key: key, Value: value, TTLMicros: ttl})
	}
	return ops, nil
}
