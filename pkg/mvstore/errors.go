package mvstore

import "github.com/cockroachdb/errors"

// ErrVersionConflict is returned internally when a chain append observes
// a version that is not strictly newer than the chain's current head —
// it signals a race the caller (pkg/txn) must retry under, never a
// condition an end user should see directly.
var ErrVersionConflict = errors.New("mvstore: version conflict on chain append")
