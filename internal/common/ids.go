package common

import "sync/atomic"

// IDAllocator hands out strictly increasing order and deal ids. One allocator
// is created per engine run and passed to everything that mints ids.
type IDAllocator struct {
	next atomic.Uint64
}

// NewIDAllocator creates an allocator whose first id is start+1.
func NewIDAllocator(start uint64) *IDAllocator {
	ids := &IDAllocator{}
	ids.next.Store(start)
	return ids
}

// Next returns the next id.
func (ids *IDAllocator) Next() uint64 {
	return ids.next.Add(1)
}

// Current returns the last issued id.
func (ids *IDAllocator) Current() uint64 {
	return ids.next.Load()
}
