package savesvc

import (
	"sync"
)

// deleteTracker knows which keys have a delete that did not reach the store yet.
// Flush cycles hold back pending values of these keys until the row is gone, and
// loads never cache a value that raced with a delete.
type deleteTracker struct {
	mu      sync.Mutex
	pending map[string]int // running deletes per key
	epoch   uint64         // incremented by every delete
}

func newDeleteTracker() *deleteTracker {
	return &deleteTracker{pending: make(map[string]int)}
}

// begin marks a delete of the key as running
func (d *deleteTracker) begin(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[key]++
	d.epoch++
}

// end is called once the row of the key was removed from the store (or the delete failed)
func (d *deleteTracker) end(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := d.pending[key] - 1; n > 0 {
		d.pending[key] = n
	} else {
		delete(d.pending, key)
	}
}

// running reports whether a delete of the key is in progress
func (d *deleteTracker) running(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending[key] > 0
}

// current returns the delete epoch, pass it to fill
func (d *deleteTracker) current() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.epoch
}

// fill calls put unless a delete started after epoch was taken or one of the key
// is still running. put is called with the tracker locked, so a delete can not
// slip in between the check and put.
func (d *deleteTracker) fill(epoch uint64, key string, put func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.epoch != epoch || d.pending[key] > 0 {
		return false
	}
	put()
	return true
}
