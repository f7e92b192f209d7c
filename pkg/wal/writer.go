package wal

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"
)

// WALWriter owns the append-only segment file and the commit-path
// fsync policy (spec §4.4 "Append discipline": records are appended in
// commit order, enforced by pkg/txn's commit lock holding this writer's
// mutex for the duration of WriteEntry).
type WALWriter struct {
	mu      sync.Mutex
	file    *os.File
	writer  *bufio.Writer
	options Options

	batchBytes int64 // unsynced bytes written since the last fsync
	sizeBytes  int64 // total bytes written to this segment since it was opened

	done   chan struct{}
	ticker *time.Ticker
	closed bool
}

// NewWALWriter opens (creating if absent) the segment file at path.
// initialSize is the file's size at open time (non-zero when reopening
// an existing segment on restart), so Size() reports the segment's true
// length for pkg/durability's rotation decision.
func NewWALWriter(path string, opts Options, initialSize int64) (*WALWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("wal: open segment: %w", err)
	}

	w := &WALWriter{
		file:      f,
		writer:    bufio.NewWriterSize(f, opts.BufferSize),
		options:   opts,
		sizeBytes: initialSize,
		done:      make(chan struct{}),
	}

	if opts.SyncPolicy == SyncInterval {
		w.ticker = time.NewTicker(opts.SyncIntervalDuration)
		go w.backgroundSync()
	}

	return w, nil
}

// Size returns the segment's total length in bytes, including buffered
// but not-yet-flushed writes.
func (w *WALWriter) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sizeBytes
}

// WriteEntry appends entry and applies the configured sync policy.
func (w *WALWriter) WriteEntry(entry *WALEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := entry.WriteTo(w.writer)
	if err != nil {
		return err
	}

	w.batchBytes += n
	w.sizeBytes += n

	switch w.options.SyncPolicy {
	case SyncEveryWrite:
		return w.syncLocked()
	case SyncBatch:
		if w.batchBytes >= w.options.SyncBatchBytes {
			return w.syncLocked()
		}
	}

	return nil
}

// Sync flushes the bufio buffer and fsyncs the underlying file.
func (w *WALWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked()
}

func (w *WALWriter) syncLocked() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	w.batchBytes = 0
	return nil
}

// Close stops the background flusher (if any), does a final sync, and
// closes the file.
func (w *WALWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.ticker != nil {
		w.ticker.Stop()
		close(w.done)
	}

	if err := w.syncLocked(); err != nil {
		w.file.Close()
		return err
	}

	return w.file.Close()
}

func (w *WALWriter) backgroundSync() {
	for {
		select {
		case <-w.ticker.C:
			w.Sync()
		case <-w.done:
			return
		}
	}
}
