// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package keybus

import "sync/atomic"

// ring is a fixed-capacity single-producer single-consumer FIFO.
//
// The producer owns tail and the consumer owns head. A slot is published by
// the store to tail after it is written, and released by the store to head
// after it is read, so neither side takes a lock.
type ring[T any] struct {
	slots []T
	head  atomic.Uint32 // next slot to read
	tail  atomic.Uint32 // next slot to write
}

func newRing[T any](capacity int) *ring[T] {
	// One slot stays empty to tell full from empty
	return &ring[T]{slots: make([]T, capacity+1)}
}

// push copies v into the next slot. It returns false, dropping v, when the
// ring is full.
func (r *ring[T]) push(v *T) bool {
	tail := r.tail.Load()
	next := (tail + 1) % uint32(len(r.slots))
	if next == r.head.Load() {
		return false
	}
	r.slots[tail] = *v
	r.tail.Store(next)
	return true
}

// pop copies the oldest slot into v. It returns false when the ring is empty.
func (r *ring[T]) pop(v *T) bool {
	head := r.head.Load()
	if head == r.tail.Load() {
		return false
	}
	*v = r.slots[head]
	r.head.Store((head + 1) % uint32(len(r.slots)))
	return true
}

// len returns the number of queued values
func (r *ring[T]) len() int {
	head := r.head.Load()
	tail := r.tail.Load()
	n := len(r.slots)
	return (int(tail) - int(head) + n) % n
}

// capacity returns the number of values the ring can hold
func (r *ring[T]) capacity() int {
	return len(r.slots) - 1
}
