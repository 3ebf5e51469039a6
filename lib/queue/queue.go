package queue

import (
	"github.com/ValentinKolb/wbKV/lib/store"
	"github.com/puzpuzpuz/xsync/v3"
	"sort"
	"sync"
)

// WriteBehind is a coalescing queue of pending writes. The zero value is not usable,
// create instances with New.
type WriteBehind struct {
	mu       sync.RWMutex                 // shared for single key ops, exclusive for batch swaps
	live     *xsync.MapOf[string, string] // pending writes
	inflight *xsync.MapOf[string, string] // drained batch awaiting Complete (nil if none)
}

// New creates an empty queue
func New() *WriteBehind {
	return &WriteBehind{
		live: xsync.NewMapOf[string, string](),
	}
}

// Put enqueues the serialized value for a key, replacing any pending value of the key
func (q *WriteBehind) Put(key, data string) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	q.live.Store(key, data)
}

// Get returns the newest pending value of a key. The live map is checked before the
// in-flight batch since it always holds the more recent value.
func (q *WriteBehind) Get(key string) (string, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if data, ok := q.live.Load(key); ok {
		return data, true
	}
	if q.inflight != nil {
		return q.inflight.Load(key)
	}
	return "", false
}

// Remove drops the pending value of a key and reports whether there was one
func (q *WriteBehind) Remove(key string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	_, removed := q.live.LoadAndDelete(key)
	if q.inflight != nil {
		if _, ok := q.inflight.LoadAndDelete(key); ok {
			removed = true
		}
	}
	return removed
}

// Drain atomically takes all pending writes as one batch, ordered by key.
// The batch stays visible to Get until Complete is called. Drain must not be called
// again before the previous batch was completed, callers serialize flush cycles.
func (q *WriteBehind) Drain() []store.Record {
	return q.DrainExcept(nil)
}

// DrainExcept is like Drain but keys for which hold returns true stay queued for a
// later cycle. hold is called with the queue locked and must not call back into it.
func (q *WriteBehind) DrainExcept(hold func(key string) bool) []store.Record {
	q.mu.Lock()
	snapshot := q.live
	q.live = xsync.NewMapOf[string, string]()
	if hold != nil {
		snapshot.Range(func(key, data string) bool {
			if hold(key) {
				q.live.Store(key, data)
				snapshot.Delete(key)
			}
			return true
		})
	}
	q.inflight = snapshot
	q.mu.Unlock()

	// no writer can reach the snapshot anymore (except Remove, which only deletes)
	records := make([]store.Record, 0, snapshot.Size())
	snapshot.Range(func(key, data string) bool {
		records = append(records, store.Record{Key: key, Data: data})
		return true
	})
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })

	return records
}

// Complete ends the in-flight batch. If ok is false the batch is requeued, keys that
// were saved again in the meantime keep their newer value. Returns the number of
// requeued entries.
func (q *WriteBehind) Complete(ok bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	batch := q.inflight
	q.inflight = nil
	if ok || batch == nil {
		return 0
	}

	requeued := 0
	batch.Range(func(key, data string) bool {
		if _, loaded := q.live.LoadOrStore(key, data); !loaded {
			requeued++
		}
		return true
	})
	return requeued
}

// Len returns the number of pending writes, excluding the in-flight batch
func (q *WriteBehind) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.live.Size()
}

// InFlight returns the size of the batch currently being written (0 if none)
func (q *WriteBehind) InFlight() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.inflight == nil {
		return 0
	}
	return q.inflight.Size()
}
