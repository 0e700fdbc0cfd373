// Package lock serializes ledger mutations per user pair.
package lock

import (
	"context"
	"errors"
	"slices"
)

// ErrTimeout is returned when the keys could not be acquired in time.
var ErrTimeout = errors.New("lock: timed out waiting for key")

// Locker acquires every key or none. The returned func releases them and is
// safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

// normalize sorts and dedupes keys so that overlapping acquisitions always
// happen in the same order.
func normalize(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}

func waitErr(parent context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return ErrTimeout
}
