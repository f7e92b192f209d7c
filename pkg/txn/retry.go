package txn

import (
	"math/rand"
	"time"

	"github.com/agentdb/core/pkg/dberrors"
)

// RetryOptions configures Retry's backoff between conflicting attempts.
type RetryOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryOptions mirrors the teacher's default commit-contention
// backoff in pkg/storage/engine.go (small base delay, capped, jittered
// to avoid synchronized retries under heavy contention).
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts: 8,
		BaseDelay:   time.Millisecond,
		MaxDelay:    50 * time.Millisecond,
	}
}

// Retry runs fn inside a fresh transaction, committing and retrying on
// CodeConflict up to opts.MaxAttempts times with exponential backoff
// plus jitter. fn must be idempotent with respect to any side effects
// outside the transaction, since it may run more than once. On success
// it returns the committed Txn so the caller can read
// Txn.CommittedVersion() without a second, unsynchronized store query.
func Retry(mgr *Manager, opts RetryOptions, fn func(tx *Txn) error) (*Txn, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		tx := mgr.Begin()

		if err := fn(tx); err != nil {
			tx.Rollback()
			return nil, err
		}

		err := tx.Commit()
		if err == nil {
			return tx, nil
		}
		if dberrors.CodeOf(err) != dberrors.CodeConflict {
			return nil, err
		}

		lastErr = err
		if mgr.onConflict != nil {
			mgr.onConflict()
		}
		time.Sleep(backoffDelay(opts, attempt))
	}
	return nil, lastErr
}

func backoffDelay(opts RetryOptions, attempt int) time.Duration {
	delay := opts.BaseDelay << attempt
	if delay > opts.MaxDelay || delay <= 0 {
		delay = opts.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay) + 1))
	return delay/2 + jitter/2
}
