package world

import "errors"

// MaxEntityID is the highest allocatable entity id. 255 is reserved on the
// wire as the "self" sentinel and is never handed out.
const MaxEntityID = 254

// ErrIDsExhausted is returned by Allocate when every id is taken.
var ErrIDsExhausted = errors.New("entity ids exhausted")

// UniqueIDAllocator hands out entity ids 0..MaxEntityID, lowest free first.
type UniqueIDAllocator struct {
	taken [MaxEntityID + 1]bool
	live  int
}

// NewUniqueIDAllocator creates an allocator with every id free.
func NewUniqueIDAllocator() *UniqueIDAllocator {
	return &UniqueIDAllocator{}
}

// Allocate returns the lowest free id and marks it taken.
func (a *UniqueIDAllocator) Allocate() (uint8, error) {
	for id := 0; id <= MaxEntityID; id++ {
		if !a.taken[id] {
			a.taken[id] = true
			a.live++
			return uint8(id), nil
		}
	}
	return 0, ErrIDsExhausted
}

// Deallocate returns an id to the pool. Freeing a free id is a no-op.
func (a *UniqueIDAllocator) Deallocate(id uint8) {
	if a.taken[id] {
		a.taken[id] = false
		a.live--
	}
}

// Live returns the number of ids currently held.
func (a *UniqueIDAllocator) Live() int {
	return a.live
}
