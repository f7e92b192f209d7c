package durability

import (
	"io"
	"os"
	"path/filepath"

	"github.com/agentdb/core/pkg/dberrors"
	"github.com/agentdb/core/pkg/mvstore"
	"github.com/agentdb/core/pkg/wal"
)

// RecoveryStats summarizes a Recover call, surfaced through pkg/engine's
// structured startup log.
type RecoveryStats struct {
	SnapshotVersion uint64
	RecordsApplied  int
	RecordsSkipped  int
	FinalVersion    uint64
	TruncatedAt     int64 // byte offset a corrupt WAL segment was cut back to; also 0 when nothing was truncated
}

// Recover loads the newest valid disk snapshot (if any) into store, then
// replays every WAL segment past its watermark, oldest segment first, in
// commit order (spec §4.4 "Recovery", spec §6 file layout
// "wal/<segment_seq>.wal"). A record whose CRC fails or whose framing is
// truncated stops replay at that point and truncates that segment file
// to the last valid boundary (spec step 4, "Incomplete transaction
// discard"): the corrupt tail is a partially-flushed write from a crash,
// never a committed transaction, since WriteCommit always writes one
// complete record per commit, and a crash can only ever tear the segment
// that was active at the time — every older, already-rotated segment is
// closed and immutable, so replay never continues past a torn segment
// into a newer one.
func Recover(dataDir string, store *mvstore.Store) (RecoveryStats, error) {
	var stats RecoveryStats

	snapVersion, err := LoadLatest(dataDir, store)
	if err != nil {
		return stats, err
	}
	stats.SnapshotVersion = snapVersion

	walDir := filepath.Join(dataDir, WALDirName)
	segs, err := listSegments(walDir)
	if err != nil {
		return stats, dberrors.Wrap(dberrors.CodeInternal, err, "list wal segments for replay")
	}
	if len(segs) == 0 {
		store.Versions().Set(snapVersion)
		stats.FinalVersion = snapVersion
		return stats, nil
	}

	maxVersion := snapVersion

	for _, seq := range segs {
		path := segmentPath(walDir, seq)
		truncatedAt, err := replaySegment(path, store, snapVersion, &maxVersion, &stats)
		if err != nil {
			return stats, err
		}
		if truncatedAt >= 0 {
			stats.TruncatedAt = truncatedAt
			break
		}
	}

	store.Versions().Set(maxVersion)
	stats.FinalVersion = maxVersion
	return stats, nil
}

// replaySegment replays one segment file's records into store, returning
// the byte offset to truncate that segment at if its tail is corrupt
// (-1 if the segment read cleanly to EOF).
func replaySegment(path string, store *mvstore.Store, snapVersion uint64, maxVersion *uint64, stats *RecoveryStats) (int64, error) {
	reader, err := wal.NewWALReader(path)
	if err != nil {
		return -1, dberrors.Wrap(dberrors.CodeInternal, err, "open wal segment for replay")
	}
	defer reader.Close()

	var truncateAt int64 = -1

	for {
		entry, err := reader.ReadEntry()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Torn tail from an interrupted commit: stop replay here and
			// truncate the segment at the last fully-validated record.
			truncateAt = reader.Offset()
			break
		}

		if entry.Header.Version <= snapVersion {
			stats.RecordsSkipped++
			wal.ReleaseEntry(entry)
			continue
		}

		ops, derr := decodeOps(entry.Payload)
		if derr != nil {
			wal.ReleaseEntry(entry)
			truncateAt = reader.Offset() - int64(wal.HeaderSize) - int64(entry.Header.PayloadLen)
			break
		}

		nowUs := int64(entry.Header.TimestampUs)
		for _, op := range ops {
			if op.Tombstone {
				if _, err := store.Delete(op.Key, entry.Header.Version, nowUs); err != nil {
					wal.ReleaseEntry(entry)
					return -1, dberrors.Wrap(dberrors.CodeInternal, err, "replay delete failed")
				}
				continue
			}
			if _, err := store.Put(op.Key, op.Value, entry.Header.Version, nowUs, op.TTLMicros); err != nil {
				wal.ReleaseEntry(entry)
				return -1, dberrors.Wrap(dberrors.CodeInternal, err, "replay put failed")
			}
		}

		if entry.Header.Version > *maxVersion {
			*maxVersion = entry.Header.Version
		}
		stats.RecordsApplied++
		wal.ReleaseEntry(entry)
	}

	if truncateAt >= 0 {
		if err := os.Truncate(path, truncateAt); err != nil {
			return -1, dberrors.Wrap(dberrors.CodeInternal, err, "truncate corrupt wal tail")
		}
	}

	return truncateAt, nil
}
