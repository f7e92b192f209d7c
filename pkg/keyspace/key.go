// Package keyspace builds the flat, byte-ordered key space the sharded
// store operates over: logically (run_id, type_tag, user_key), encoded
// so that byte-lexicographic order on the flat key matches the intended
// scan order within a (run, type) partition (spec §3 Key).
package keyspace

import (
	"strings"
	"unicode/utf8"

	"github.com/agentdb/core/pkg/dberrors"
)

// TypeTag distinguishes primitives within the flat key space so it
// self-partitions without a separate index (spec §3).
type TypeTag byte

const (
	TagKV TypeTag = iota + 1
	TagEvent
	TagState
	TagJSON
	TagVector
	TagRunMeta
)

// ReservedPrefix is disallowed as the start of any user key; it is used
// internally to namespace engine bookkeeping entries that share the flat
// key space with user data (e.g. vector collection metadata).
const ReservedPrefix = "__engine/"

// MaxKeyBytes is the default configured maximum user-key length; the
// engine config can override it per spec §6.
const MaxKeyBytes = 4096

// Build produces the flat storage key for (runID, tag, userKey):
// runID, then tag byte, then a 0x00 separator, then userKey. runID is
// fixed-length (a uuid string) so the separator before tag is
// unambiguous; the 0x00 separator before userKey is safe because
// Validate rejects NUL bytes in user keys, so it can never collide with
// real key content.
func Build(runID string, tag TypeTag, userKey string) []byte {
	buf := make([]byte, 0, len(runID)+2+len(userKey))
	buf = append(buf, runID...)
	buf = append(buf, byte(tag))
	buf = append(buf, 0x00)
	buf = append(buf, userKey...)
	return buf
}

// Prefix produces the flat-key prefix for all keys under (runID, tag),
// for use with prefix scans.
func Prefix(runID string, tag TypeTag) []byte {
	buf := make([]byte, 0, len(runID)+2)
	buf = append(buf, runID...)
	buf = append(buf, byte(tag))
	buf = append(buf, 0x00)
	return buf
}

// AllTags lists every TypeTag that partitions a run's data (excludes
// TagRunMeta, which is keyed by "name/"+name and "id/"+id rather than by
// run, since run metadata is global bookkeeping, not per-run data).
var AllTags = []TypeTag{TagKV, TagEvent, TagState, TagJSON, TagVector}

// RunPrefix produces the flat-key prefix covering every key tagged with
// runID across all primitive tags: the shortest prefix common to every
// Prefix(runID, tag) for any tag, used by Run deletion's cascade (spec
// §3 "destroyed by delete_run(id) which cascades to all keys tagged
// with that run id").
func RunPrefix(runID string) []byte {
	return []byte(runID)
}

// UserKeyPrefix builds a flat-key prefix for (runID, tag, userKeyPrefix),
// for prefix scans scoped further than the whole type partition.
func UserKeyPrefix(runID string, tag TypeTag, userKeyPrefix string) []byte {
	return append(Prefix(runID, tag), userKeyPrefix...)
}

// Validate checks a user key against spec §3's constraints: non-empty,
// valid UTF-8 (invalid byte sequences are rejected), no NUL, no
// reserved-prefix collision, and a maximum
// byte length.
func Validate(userKey string, maxBytes int) error {
	if len(userKey) == 0 {
		return dberrors.InvalidKey("key must not be empty")
	}
	if maxBytes <= 0 {
		maxBytes = MaxKeyBytes
	}
	if len(userKey) > maxBytes {
		return dberrors.ConstraintViolation(dberrors.ReasonKeyTooLong, int64(len(userKey)), int64(maxBytes))
	}
	if !utf8.ValidString(userKey) {
		return dberrors.InvalidKey("key must be valid UTF-8")
	}
	if strings.IndexByte(userKey, 0x00) >= 0 {
		return dberrors.InvalidKey("key must not contain NUL")
	}
	if strings.HasPrefix(userKey, ReservedPrefix) {
		return dberrors.ConstraintViolation(dberrors.ReasonReservedPrefix, 0, 0)
	}
	return nil
}
