package errors

import (
	"fmt"
)

// DuplicateKeyError is returned by pkg/btree's unique-index enforcement
// when an Upsert targets a key already present in a tree built with
// NewUniqueTree. It is the one error type from the teacher's original
// table/index error set that the btree package still raises directly.
// pkg/mvstore's shards write through Upsert callbacks that never return
// it, and no facade translates it into a dberrors code.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key violation: key %q already exists in unique index", e.Key)
}
