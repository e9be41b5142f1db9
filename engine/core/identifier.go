package core

import "sync/atomic"

var lastID uint64

// IdentifierAcquireNewID returns a process-unique, monotonically increasing
// identifier. IDs are never recycled: they participate in content hashes, so a
// reused ID could alias a destroyed resource inside a cache key.
func IdentifierAcquireNewID() uint64 {
	return atomic.AddUint64(&lastID, 1)
}
