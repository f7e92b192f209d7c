package keyspace

import (
	"bytes"
	"strings"
	"testing"

	"github.com/agentdb/core/pkg/dberrors"
)

func TestBuild_EncodesRunTagSeparator(t *testing.T) {
	got := Build("run1", TagKV, "mykey")
	want := append(append([]byte("run1"), byte(TagKV), 0x00), "mykey"...)
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestPrefix_IsPrefixOfBuild(t *testing.T) {
	prefix := Prefix("run1", TagKV)
	full := Build("run1", TagKV, "mykey")
	if !bytes.HasPrefix(full, prefix) {
		t.Fatalf("expected %x to be prefixed by %x", full, prefix)
	}
}

func TestRunPrefix_CoversEveryTag(t *testing.T) {
	runPrefix := RunPrefix("run1")
	for _, tag := range AllTags {
		full := Build("run1", tag, "k")
		if !bytes.HasPrefix(full, runPrefix) {
			t.Fatalf("expected key under tag %v to share run prefix", tag)
		}
	}
	other := Build("run2", TagKV, "k")
	if bytes.HasPrefix(other, runPrefix) {
		t.Fatal("expected a different run's key to not share this run's prefix")
	}
}

func TestValidate_RejectsEmptyKey(t *testing.T) {
	err := Validate("", 0)
	if dberrors.CodeOf(err) != dberrors.CodeInvalidKey {
		t.Fatalf("got code %v, want InvalidKey", dberrors.CodeOf(err))
	}
}

func TestValidate_RejectsNulByte(t *testing.T) {
	err := Validate("a\x00b", 0)
	if dberrors.CodeOf(err) != dberrors.CodeInvalidKey {
		t.Fatalf("got code %v, want InvalidKey", dberrors.CodeOf(err))
	}
}

func TestValidate_RejectsOverLength(t *testing.T) {
	err := Validate(strings.Repeat("a", 10), 5)
	if dberrors.CodeOf(err) != dberrors.CodeConstraintViolation {
		t.Fatalf("got code %v, want ConstraintViolation", dberrors.CodeOf(err))
	}
}

func TestValidate_RejectsReservedPrefix(t *testing.T) {
	err := Validate(ReservedPrefix+"internal", 0)
	if dberrors.CodeOf(err) != dberrors.CodeConstraintViolation {
		t.Fatalf("got code %v, want ConstraintViolation", dberrors.CodeOf(err))
	}
}

func TestValidate_AcceptsOrdinaryKey(t *testing.T) {
	if err := Validate("user/123", 0); err != nil {
		t.Fatalf("expected ordinary key to validate, got %v", err)
	}
}
