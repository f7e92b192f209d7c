package wal

import (
	"encoding/binary"
	"io"
)

// Header layout constants. A record is a fixed 32-byte header followed
// by the payload:
//
//	[u32 magic][u8 format_version][u8 kind][u16 reserved]
//	[u64 version][u64 timestamp_us][u32 payload_len][u32 crc32]
//	[payload]
//
// This is not the [u32 length_incl_crc][u8 kind][u64 version]
// [u64 timestamp_us][payload][u32 crc] layout: there is no leading total
// length and no trailing CRC, and the CRC covers only the payload, not
// the header. The teacher's original 24-byte header (Magic/Version/
// EntryType/Reserved/LSN/PayloadLen/CRC32) is extended with a timestamp
// field, and its Magic number is kept as a fast corruption check ahead
// of the CRC.
const (
	HeaderSize = 32 // Magic(4)+FormatVersion(1)+Kind(1)+Reserved(2)+Version(8)+TimestampUs(8)+PayloadLen(4)+CRC32(4)
	WALVersion = 1

	// WALMagic is a fast sanity check ahead of the CRC (0xDEADBEEF).
	WALMagic = 0xDEADBEEF
)

// Kind selects the primitive-specific payload shape a record carries
// (spec §4.4). All kinds share the same generic "flat-key put/delete"
// payload encoding (see storage layer's wal_codec.go) — Kind exists so a
// WAL reader (tooling, audits) can tell at a glance which primitive a
// record's effects belong to without decoding the payload, and so a
// future kind-specific codec has somewhere to live without a framing
// change.
const (
	KindKV uint8 = iota + 1
	KindEvent
	KindState
	KindJSON
	KindVector
	KindRun
	KindTxn // mixed-primitive transaction
)

// WALHeader is the fixed-size per-record header.
type WALHeader struct {
	Magic         uint32
	FormatVersion uint8
	Kind          uint8
	Reserved      uint16
	Version       uint64 // commit version (spec's "version")
	TimestampUs   uint64 // wall-clock microseconds at commit
	PayloadLen    uint32
	CRC32         uint32
}

// WALEntry is one complete framed record.
type WALEntry struct {
	Header  WALHeader
	Payload []byte
}

func (h *WALHeader) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.FormatVersion
	buf[5] = h.Kind
	binary.LittleEndian.PutUint16(buf[6:8], h.Reserved)
	binary.LittleEndian.PutUint64(buf[8:16], h.Version)
	binary.LittleEndian.PutUint64(buf[16:24], h.TimestampUs)
	binary.LittleEndian.PutUint32(buf[24:28], h.PayloadLen)
	binary.LittleEndian.PutUint32(buf[28:32], h.CRC32)
}

func (h *WALHeader) Decode(buf []byte) {
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.FormatVersion = buf[4]
	h.Kind = buf[5]
	h.Reserved = binary.LittleEndian.Uint16(buf[6:8])
	h.Version = binary.LittleEndian.Uint64(buf[8:16])
	h.TimestampUs = binary.LittleEndian.Uint64(buf[16:24])
	h.PayloadLen = binary.LittleEndian.Uint32(buf[24:28])
	h.CRC32 = binary.LittleEndian.Uint32(buf[28:32])
}

// WriteTo writes the entry (header + payload) to w.
func (e *WALEntry) WriteTo(w io.Writer) (int64, error) {
	var headerBuf [HeaderSize]byte
	e.Header.Encode(headerBuf[:])

	n, err := w.Write(headerBuf[:])
	if err != nil {
		return int64(n), err
	}

	m, err := w.Write(e.Payload)
	return int64(n + m), err
}
