// Package locks provides advisory locking around entity creation and merges.
// Two implementations exist: a process-local lock for single-instance
// deployments and tests, and a graph-backed lock for multi-instance ones.
package locks

import (
	"context"
	"fmt"
)

const keyPrefix = "entity-resolution"

// Locker acquires and releases advisory locks by key. TryLock blocks up to
// the configured timeout and returns LOCK_ACQUISITION_FAILED on exhaustion.
type Locker interface {
	TryLock(ctx context.Context, key string) error
	Unlock(ctx context.Context, key string) error
}

// ResolutionKey guards create-if-absent for a normalized name and type.
func ResolutionKey(normalizedName, entityType string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, normalizedName, entityType)
}

// MergeKey guards a merge pair. Ids are ordered so both directions of the
// same pair contend on one key.
func MergeKey(idA, idB string) string {
	lo, hi := idA, idB
	if hi < lo {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("%s:merge:%s:%s", keyPrefix, lo, hi)
}
