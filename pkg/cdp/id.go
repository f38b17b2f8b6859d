package cdp

import "sync/atomic"

var lastID atomic.Uint64

// NextID returns a process-wide unique message id. Ids start at 1 and
// increase strictly; outer and nested commands share the sequence.
func NextID() uint64 {
	return lastID.Add(1)
}
