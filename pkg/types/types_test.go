package types_test

import (
	"testing"

	"github.com/agentdb/core/pkg/types"
)

func TestByteKeyCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"abc", "abc", 0},
		{"abc", "abd", -1},
		{"abd", "abc", 1},
		{"ab", "abc", -1},
		{"abc", "ab", 1},
		{"", "", 0},
		{"", "a", -1},
	}
	for _, c := range cases {
		got := types.ByteKey(c.a).Compare(types.ByteKey(c.b))
		if got != c.want {
			t.Errorf("Compare(%q,%q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestByteKeyString(t *testing.T) {
	if got := types.ByteKey("hello").String(); got != "hello" {
		t.Errorf("String() = %q, want %q", got, "hello")
	}
}

func TestByteKeyOrderingMatchesLexicographic(t *testing.T) {
	keys := []string{"z", "a", "m", "ab", "aa"}
	want := []string{"a", "aa", "ab", "m", "z"}

	bk := make([]types.ByteKey, len(keys))
	for i, k := range keys {
		bk[i] = types.ByteKey(k)
	}

	for i := 1; i < len(bk); i++ {
		for j := i; j > 0 && bk[j].Compare(bk[j-1]) < 0; j-- {
			bk[j], bk[j-1] = bk[j-1], bk[j]
		}
	}

	for i, k := range bk {
		if k.String() != want[i] {
			t.Fatalf("sorted[%d] = %q, want %q", i, k.String(), want[i])
		}
	}
}
