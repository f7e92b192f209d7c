package mvstore

import "testing"

func TestStore_PutGetRoundTrip(t *testing.T) {
	s := NewStore(4, 0)
	v := s.Versions().Next()

	if _, err := s.Put([]byte("k1"), []byte("v1"), v, 1000, 0); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	e, ok := s.GetAt([]byte("k1"), v, 2000)
	if !ok {
		t.Fatal("expected entry to be visible")
	}
	if string(e.Value) != "v1" {
		t.Fatalf("got %q, want v1", e.Value)
	}
}

func TestStore_GetAtRespectsWatermark(t *testing.T) {
	s := NewStore(4, 0)
	v1 := s.Versions().Next()
	s.Put([]byte("k1"), []byte("v1"), v1, 1000, 0)

	v2 := s.Versions().Next()
	s.Put([]byte("k1"), []byte("v2"), v2, 2000, 0)

	e, ok := s.GetAt([]byte("k1"), v1, 3000)
	if !ok || string(e.Value) != "v1" {
		t.Fatalf("expected v1 at watermark v1, got %+v ok=%v", e, ok)
	}

	e, ok = s.GetAt([]byte("k1"), v2, 3000)
	if !ok || string(e.Value) != "v2" {
		t.Fatalf("expected v2 at watermark v2, got %+v ok=%v", e, ok)
	}
}

func TestStore_DeleteIsTombstone(t *testing.T) {
	s := NewStore(4, 0)
	v1 := s.Versions().Next()
	s.Put([]byte("k1"), []byte("v1"), v1, 1000, 0)

	v2 := s.Versions().Next()
	if _, err := s.Delete([]byte("k1"), v2, 2000); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, ok := s.GetAt([]byte("k1"), v2, 3000); ok {
		t.Fatal("expected key to be invisible after delete")
	}
	if !s.IsAbsent([]byte("k1")) {
		t.Fatal("expected IsAbsent to report true after delete")
	}

	// A watermark taken before the delete still sees the original write:
	// the tombstone has a version greater than v1 so get-at-version's
	// newest-<=-watermark scan never reaches it.
	if _, ok := s.GetAt([]byte("k1"), v1, 3000); !ok {
		t.Fatal("expected v1 still visible at its own (pre-delete) watermark")
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	s := NewStore(4, 0)
	v := s.Versions().Next()
	s.Put([]byte("k1"), []byte("v1"), v, 1_000_000, 500_000) // ttl 0.5s

	if _, ok := s.GetAt([]byte("k1"), v, 1_200_000); !ok {
		t.Fatal("expected entry visible before TTL elapses")
	}
	if _, ok := s.GetAt([]byte("k1"), v, 2_000_000); ok {
		t.Fatal("expected entry expired after TTL elapses, regardless of watermark")
	}
}

func TestStore_HeadVersionTracksLatestWrite(t *testing.T) {
	s := NewStore(4, 0)
	if v := s.HeadVersion([]byte("missing")); v != 0 {
		t.Fatalf("expected 0 for missing key, got %d", v)
	}

	v1 := s.Versions().Next()
	s.Put([]byte("k1"), []byte("v1"), v1, 0, 0)
	if got := s.HeadVersion([]byte("k1")); got != v1 {
		t.Fatalf("got %d, want %d", got, v1)
	}
}

func TestStore_ScanPrefixOrdersAscending(t *testing.T) {
	s := NewStore(4, 0)
	keys := []string{"run1\x01b", "run1\x01a", "run1\x01c", "run2\x01a"}
	for _, k := range keys {
		v := s.Versions().Next()
		s.Put([]byte(k), []byte("val"), v, 0, 0)
	}

	var got []string
	s.ScanPrefix([]byte("run1\x01"), s.Versions().Current(), 0, func(key []byte, e Entry) bool {
		got = append(got, string(key))
		return true
	})

	want := []string{"run1\x01a", "run1\x01b", "run1\x01c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStore_ScanPrefixStopsEarly(t *testing.T) {
	s := NewStore(4, 0)
	for _, k := range []string{"p\x01a", "p\x01b", "p\x01c"} {
		v := s.Versions().Next()
		s.Put([]byte(k), []byte("val"), v, 0, 0)
	}

	count := 0
	s.ScanPrefix([]byte("p\x01"), s.Versions().Current(), 0, func(key []byte, e Entry) bool {
		count++
		return count < 2
	})
	if count != 2 {
		t.Fatalf("expected scan to stop after 2 callbacks, got %d", count)
	}
}

func TestSnapshotRegistry_MinActiveWatermark(t *testing.T) {
	r := NewSnapshotRegistry()
	if got := r.MinActiveWatermark(); got != ^uint64(0) {
		t.Fatalf("expected max uint64 with no readers, got %d", got)
	}

	release5 := r.Acquire(5)
	release10 := r.Acquire(10)
	if got := r.MinActiveWatermark(); got != 5 {
		t.Fatalf("expected min 5, got %d", got)
	}

	release5()
	if got := r.MinActiveWatermark(); got != 10 {
		t.Fatalf("expected min 10 after releasing 5, got %d", got)
	}

	release10()
	if got := r.MinActiveWatermark(); got != ^uint64(0) {
		t.Fatalf("expected max uint64 after all released, got %d", got)
	}
}
