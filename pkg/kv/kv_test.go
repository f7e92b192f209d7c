package kv

import (
	"testing"

	"github.com/agentdb/core/pkg/dberrors"
	"github.com/agentdb/core/pkg/mvstore"
	"github.com/agentdb/core/pkg/txn"
	"github.com/agentdb/core/pkg/values"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := mvstore.NewStore(4, 0)
	registry := mvstore.NewSnapshotRegistry()
	mgr := txn.NewManager(store, registry, nil)
	return New(mgr, 0, 0)
}

func TestStore_PutGetAutoCommits(t *testing.T) {
	s := newTestStore(t)

	if err := s.Put(nil, "run1", "k", values.String("v"), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	v, ok, err := s.Get(nil, "run1", "k")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	s2, _ := v.AsString()
	if s2 != "v" {
		t.Fatalf("got %q, want v", s2)
	}
}

func TestStore_GetMissingReturnsNotOK(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Get(nil, "run1", "missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Fatal("expected missing key to report not-ok")
	}
}

func TestStore_DeleteRemovesKey(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put(nil, "run1", "k", values.Int(1), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Delete(nil, "run1", "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	_, ok, err := s.Get(nil, "run1", "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Fatal("expected deleted key to be absent")
	}
}

func TestStore_ListWithPrefix(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put(nil, "run1", "user/1", values.Int(1), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(nil, "run1", "user/2", values.Int(2), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(nil, "run1", "other", values.Int(3), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	out, err := s.ListWithPrefix(nil, "run1", "user/")
	if err != nil {
		t.Fatalf("ListWithPrefix failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d results, want 2", len(out))
	}
}

func TestStore_KeysAreIsolatedByRun(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put(nil, "run1", "k", values.Int(1), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	_, ok, err := s.Get(nil, "run2", "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Fatal("expected key written under run1 to be invisible under run2")
	}
}

func TestStore_PutRejectsOverlongValue(t *testing.T) {
	s := New(txn.NewManager(mvstore.NewStore(4, 0), mvstore.NewSnapshotRegistry(), nil), 0, 4)
	err := s.Put(nil, "run1", "k", values.String("this value is too long"), 0)
	if err == nil {
		t.Fatal("expected oversized value to be rejected")
	}
	if dberrors.CodeOf(err) != dberrors.CodeConstraintViolation {
		t.Fatalf("got code %v, want ConstraintViolation", dberrors.CodeOf(err))
	}
}

func TestStore_PutWithinExplicitTransaction(t *testing.T) {
	store := mvstore.NewStore(4, 0)
	registry := mvstore.NewSnapshotRegistry()
	mgr := txn.NewManager(store, registry, nil)
	s := New(mgr, 0, 0)

	tx := mgr.Begin()
	if err := s.Put(tx, "run1", "k", values.Int(1), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	v, ok, err := s.Get(nil, "run1", "k")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	n, _ := v.AsInt()
	if n != 1 {
		t.Fatalf("got %d, want 1", n)
	}
}
