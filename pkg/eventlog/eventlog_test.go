package eventlog

import (
	"bytes"
	"testing"

	"github.com/agentdb/core/pkg/mvstore"
	"github.com/agentdb/core/pkg/txn"
	"github.com/agentdb/core/pkg/values"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	store := mvstore.NewStore(4, 0)
	registry := mvstore.NewSnapshotRegistry()
	mgr := txn.NewManager(store, registry, nil)
	return New(mgr)
}

func TestLog_AppendAssignsSequentialSeq(t *testing.T) {
	l := newTestLog(t)

	seq1, err := l.Append("run1", "created", values.String("first"))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	seq2, err := l.Append("run1", "updated", values.String("second"))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if seq1 != 1 || seq2 != 2 {
		t.Fatalf("got seq1=%d seq2=%d, want 1,2", seq1, seq2)
	}
}

func TestLog_ChainHashLinksEvents(t *testing.T) {
	l := newTestLog(t)

	seq1, err := l.Append("run1", "created", values.String("a"))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	seq2, err := l.Append("run1", "updated", values.String("b"))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	ev1, ok, err := l.Read("run1", seq1)
	if err != nil || !ok {
		t.Fatalf("Read(seq1) failed: ok=%v err=%v", ok, err)
	}
	ev2, ok, err := l.Read("run1", seq2)
	if err != nil || !ok {
		t.Fatalf("Read(seq2) failed: ok=%v err=%v", ok, err)
	}

	if len(ev1.PrevHash) != 0 {
		t.Fatalf("expected first event to have no prior hash, got %x", ev1.PrevHash)
	}
	if !bytes.Equal(ev2.PrevHash, ev1.Hash) {
		t.Fatalf("expected second event's prev_hash to equal first event's hash")
	}
}

func TestLog_ReadByType(t *testing.T) {
	l := newTestLog(t)

	if _, err := l.Append("run1", "a", values.Int(1)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := l.Append("run1", "b", values.Int(2)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := l.Append("run1", "a", values.Int(3)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	evs, err := l.ReadByType("run1", "a")
	if err != nil {
		t.Fatalf("ReadByType failed: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	if evs[0].Seq != 1 || evs[1].Seq != 3 {
		t.Fatalf("got seqs %d,%d, want 1,3", evs[0].Seq, evs[1].Seq)
	}
}

func TestLog_LenTracksRunIndependently(t *testing.T) {
	l := newTestLog(t)

	if _, err := l.Append("run1", "a", values.Null()); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := l.Append("run2", "a", values.Null()); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := l.Append("run1", "a", values.Null()); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	n1, err := l.Len("run1")
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	n2, err := l.Len("run2")
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n1 != 2 || n2 != 1 {
		t.Fatalf("got run1=%d run2=%d, want 2,1", n1, n2)
	}
}
