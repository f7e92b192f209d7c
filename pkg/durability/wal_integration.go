package durability

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agentdb/core/pkg/dberrors"
	"github.com/agentdb/core/pkg/txn"
	"github.com/agentdb/core/pkg/wal"
)

// WALDirName is the subdirectory under the engine's data directory that
// holds every WAL segment file (spec §6 file layout: "wal/<segment_seq>.wal").
const WALDirName = "wal"

// DefaultWALSegmentSize is used when Config.WALSegmentSize is zero or
// negative.
const DefaultWALSegmentSize int64 = 64 << 20 // 64MiB

// WAL is the durability layer's WriteCommit implementation: it encodes a
// transaction's effects and appends them as one record, using pkg/wal's
// CRC32-framed, length-prefixed entry format unchanged from the teacher,
// rolled over across multiple numbered segment files once the active
// segment crosses segmentSize bytes (spec §4.4 "segments rotate at a
// configured size").
type WAL struct {
	mode        Mode
	dir         string
	opts        wal.Options
	segmentSize int64
	seq         uint64
	writer      *wal.WALWriter
	onBytesSent func(n int)
}

// SetByteObserver registers fn to be called with the total framed size
// of every record WriteCommit appends, so pkg/engine can feed a
// wal_bytes_total metric without this package depending on a metrics
// library (same observer-hook shape as pkg/txn's SetConflictObserver).
func (w *WAL) SetByteObserver(fn func(n int)) { w.onBytesSent = fn }

func segmentFileName(seq uint64) string {
	return strconv.FormatUint(seq, 10) + ".wal"
}

func segmentPath(dir string, seq uint64) string {
	return filepath.Join(dir, segmentFileName(seq))
}

// listSegments returns every segment sequence number present under dir,
// ascending (commit order, spec §4.4 "Recovery" replays segments in
// order). A missing directory is reported as no segments, not an error.
func listSegments(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var segs []uint64
	for _, ent := range entries {
		name := ent.Name()
		if !strings.HasSuffix(name, ".wal") {
			continue
		}
		seq, err := strconv.ParseUint(strings.TrimSuffix(name, ".wal"), 10, 64)
		if err != nil {
			continue
		}
		segs = append(segs, seq)
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i] < segs[j] })
	return segs, nil
}

// OpenWAL opens (creating if absent) the WAL segment directory under
// dataDir for the given durability mode, resuming at the newest existing
// segment or starting a fresh one at seq 0. ModeInMemory returns a WAL
// whose WriteCommit is a no-op and whose writer is nil. segmentSize
// bounds each segment's length before a rotation is triggered; a
// non-positive value falls back to DefaultWALSegmentSize.
func OpenWAL(dataDir string, mode Mode, segmentSize int64) (*WAL, error) {
	if mode == ModeInMemory {
		return &WAL{mode: mode}, nil
	}
	if segmentSize <= 0 {
		segmentSize = DefaultWALSegmentSize
	}

	dir := filepath.Join(dataDir, WALDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, dberrors.Wrap(dberrors.CodeInternal, err, "create wal directory")
	}

	opts := wal.DefaultOptions()
	opts.DirPath = dir
	if mode == ModeStrict {
		opts.SyncPolicy = wal.SyncEveryWrite
	}

	segs, err := listSegments(dir)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.CodeInternal, err, "list wal segments")
	}

	var seq uint64
	if len(segs) > 0 {
		seq = segs[len(segs)-1]
	}

	path := segmentPath(dir, seq)
	var initialSize int64
	if info, statErr := os.Stat(path); statErr == nil {
		initialSize = info.Size()
	}

	w, err := wal.NewWALWriter(path, opts, initialSize)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.CodeInternal, err, "failed to open WAL segment")
	}
	return &WAL{mode: mode, dir: dir, opts: opts, segmentSize: segmentSize, seq: seq, writer: w}, nil
}

// WriteCommit implements txn.DurabilityWriter. Callers reach this while
// holding pkg/txn's commit lock, so rotation needs no extra
// synchronization beyond the WALWriter's own mutex.
func (w *WAL) WriteCommit(version uint64, ops []txn.Op) error {
	if w.writer == nil {
		return nil
	}

	payload := encodeOps(ops)

	entry := wal.AcquireEntry()
	defer wal.ReleaseEntry(entry)

	entry.Header = wal.WALHeader{
		Magic:         wal.WALMagic,
		FormatVersion: wal.WALVersion,
		Kind:          wal.KindTxn,
		Version:       version,
		TimestampUs:   uint64(NowMicros()),
		PayloadLen:    uint32(len(payload)),
		CRC32:         wal.CalculateCRC32(payload),
	}
	entry.Payload = append(entry.Payload[:0], payload...)

	if err := w.writer.WriteEntry(entry); err != nil {
		return err
	}
	recordBytes := wal.HeaderSize + len(payload)
	if w.onBytesSent != nil {
		w.onBytesSent(recordBytes)
	}

	if w.writer.Size() >= w.segmentSize {
		if err := w.rotate(); err != nil {
			return dberrors.Wrap(dberrors.CodeInternal, err, "rotate wal segment")
		}
	}
	return nil
}

// rotate closes the active segment and opens a fresh one at seq+1.
func (w *WAL) rotate() error {
	if err := w.writer.Close(); err != nil {
		return err
	}
	w.seq++
	next, err := wal.NewWALWriter(segmentPath(w.dir, w.seq), w.opts, 0)
	if err != nil {
		return err
	}
	w.writer = next
	return nil
}

// Close flushes and closes the active WAL segment, if any.
func (w *WAL) Close() error {
	if w.writer == nil {
		return nil
	}
	return w.writer.Close()
}

// NowMicros is overridable for deterministic tests, mirroring
// pkg/mvstore.NowMicros.
var NowMicros = func() int64 { return time.Now().UnixMicro() }
