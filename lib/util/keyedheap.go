// Package util
//
// This file provides a keyed min-heap used for recency and expiry bookkeeping.
//
// The heap orders keys by a uint64 priority (a logical access tick for the cache)
// and keeps a map from key to heap slot, so any key can be re-prioritised or
// removed without a scan:
//
//   - O(log n) for Set, Remove and PopMin
//   - O(1) for Peek, Contains and Priority lookups
//
// Concurrency: the heap is not thread-safe. Callers guard it with their own lock.
//
// Example usage:
//
//	h := NewKeyedHeap[string]()
//	h.Set("a", 1)
//	h.Set("b", 2)
//	h.Set("a", 3) // "a" is now the most recent key
//
//	key, _, _ := h.PopMin() // "b"
package util

import (
	"container/heap"
	"fmt"
)

// keyedItem is one slot of the heap
type keyedItem[K comparable] struct {
	Key      K      // Identifier of the item
	Priority uint64 // Ordering value (lowest first)
	index    int    // Position in the heap slice, maintained by the heap package
}

func (i *keyedItem[K]) String() string {
	return fmt.Sprintf("{Key: %v, Priority: %d}", i.Key, i.Priority)
}

// KeyedHeap is a min-heap of keys ordered by priority with O(1) access by key
type KeyedHeap[K comparable] struct {
	items []*keyedItem[K]
	index map[K]*keyedItem[K]
}

// NewKeyedHeap creates an empty keyed heap
func NewKeyedHeap[K comparable]() *KeyedHeap[K] {
	return &KeyedHeap[K]{
		items: make([]*keyedItem[K], 0),
		index: make(map[K]*keyedItem[K]),
	}
}

// --------------------------------------------------------------------------
// heap.Interface
// --------------------------------------------------------------------------

func (h *KeyedHeap[K]) Len() int { return len(h.items) }

func (h *KeyedHeap[K]) Less(i, j int) bool {
	return h.items[i].Priority < h.items[j].Priority
}

func (h *KeyedHeap[K]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

// Push is part of heap.Interface, use Set instead
func (h *KeyedHeap[K]) Push(x any) {
	it := x.(*keyedItem[K])
	it.index = len(h.items)
	h.items = append(h.items, it)
	h.index[it.Key] = it
}

// Pop is part of heap.Interface, use PopMin instead
func (h *KeyedHeap[K]) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // Avoid memory leak
	it.index = -1
	h.items = old[:n-1]
	delete(h.index, it.Key)
	return it
}

// --------------------------------------------------------------------------
// Keyed Operations
// --------------------------------------------------------------------------

// Set inserts the key or moves it to the given priority
func (h *KeyedHeap[K]) Set(key K, priority uint64) {
	if it, ok := h.index[key]; ok {
		it.Priority = priority
		heap.Fix(h, it.index)
		return
	}
	heap.Push(h, &keyedItem[K]{Key: key, Priority: priority})
}

// Remove drops the key and returns its last priority
func (h *KeyedHeap[K]) Remove(key K) (uint64, bool) {
	it, ok := h.index[key]
	if !ok {
		return 0, false
	}
	heap.Remove(h, it.index)
	return it.Priority, true
}

// Peek returns the key with the lowest priority without removing it
func (h *KeyedHeap[K]) Peek() (key K, priority uint64, ok bool) {
	if len(h.items) == 0 {
		return key, 0, false
	}
	return h.items[0].Key, h.items[0].Priority, true
}

// PopMin removes and returns the key with the lowest priority
func (h *KeyedHeap[K]) PopMin() (key K, priority uint64, ok bool) {
	if len(h.items) == 0 {
		return key, 0, false
	}
	it := heap.Pop(h).(*keyedItem[K])
	return it.Key, it.Priority, true
}

// Contains reports whether the key is in the heap
func (h *KeyedHeap[K]) Contains(key K) bool {
	_, ok := h.index[key]
	return ok
}

// Priority returns the current priority of a key
func (h *KeyedHeap[K]) Priority(key K) (uint64, bool) {
	it, ok := h.index[key]
	if !ok {
		return 0, false
	}
	return it.Priority, true
}

// Reset drops all keys
func (h *KeyedHeap[K]) Reset() {
	h.items = make([]*keyedItem[K], 0)
	h.index = make(map[K]*keyedItem[K])
}
