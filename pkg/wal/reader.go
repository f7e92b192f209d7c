package wal

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	ErrInvalidMagic      = errors.New("wal: invalid magic number")
	ErrChecksumMismatch  = errors.New("wal: crc32 checksum mismatch")
	ErrInvalidPayloadLen = errors.New("wal: invalid or excessive payload length")
)

// WALReader reads entries from a segment file sequentially, tracking
// the byte offset of the last fully-validated record boundary so a
// caller (pkg/durability's recovery, spec §4.4 step 4) can truncate a
// corrupt tail at that boundary instead of discarding the whole segment.
type WALReader struct {
	file   *os.File
	offset int64
}

// NewWALReader opens an existing segment file for sequential reading.
func NewWALReader(path string) (*WALReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &WALReader{file: f}, nil
}

// Offset returns the byte position immediately after the last
// successfully read-and-validated record.
func (r *WALReader) Offset() int64 { return r.offset }

// ReadEntry reads the next entry. Returns io.EOF when the segment is
// exhausted at a clean record boundary. Any other error (bad magic,
// truncated header/payload, checksum mismatch) indicates the segment's
// tail is corrupt or was only partially flushed before a crash — spec
// §4.4 step 4 requires the caller to stop replay and truncate at
// r.Offset(), the last position this reader validated.
func (r *WALReader) ReadEntry() (*WALEntry, error) {
	headerBuf := make([]byte, HeaderSize)
	n, err := io.ReadFull(r.file, headerBuf)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("wal: read header: %w", err)
	}
	if n != HeaderSize {
		return nil, io.ErrUnexpectedEOF
	}

	var header WALHeader
	header.Decode(headerBuf)

	if header.Magic != WALMagic {
		return nil, ErrInvalidMagic
	}

	if header.PayloadLen == 0 {
		r.offset += int64(HeaderSize)
		return &WALEntry{Header: header}, nil
	}

	// Guards against treating garbage bytes (a torn write) as a huge
	// allocation request.
	if header.PayloadLen > 1024*1024*1024 {
		return nil, ErrInvalidPayloadLen
	}

	entry := AcquireEntry()
	entry.Header = header

	if uint32(cap(entry.Payload)) < header.PayloadLen {
		entry.Payload = make([]byte, header.PayloadLen)
	} else {
		entry.Payload = entry.Payload[:header.PayloadLen]
	}

	_, err = io.ReadFull(r.file, entry.Payload)
	if err != nil {
		ReleaseEntry(entry)
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	if !ValidateCRC32(entry.Payload, header.CRC32) {
		ReleaseEntry(entry)
		return nil, ErrChecksumMismatch
	}

	r.offset += int64(HeaderSize) + int64(header.PayloadLen)
	return entry, nil
}

// Close closes the underlying file.
func (r *WALReader) Close() error {
	return r.file.Close()
}
