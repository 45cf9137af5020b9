// Copyright 2025 The quicd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ioring implements the single-producer single-consumer ring
// buffer used between a socket task and a protocol task (spec.md
// section 4.N): a fixed-capacity slot array, a head/tail cursor pair
// with acquire-release ordering, and a "check, register, re-check"
// waker so a sleeping consumer is never left with an unseen publish.
package ioring

import (
	"sync/atomic"
)

// Closed is returned by Acquire once the ring has been marked closed
// and fully drained.
type Closed struct{}

func (Closed) Error() string { return "ioring: closed" }

// Ring is a fixed-capacity SPSC ring of T. One goroutine may call
// Publish/Close; a different single goroutine may call Acquire/Release.
type Ring[T any] struct {
	slots []T
	mask  uint64

	head atomic.Uint64 // next slot index to be published, owned by the producer
	tail atomic.Uint64 // next slot index to be consumed, owned by the consumer

	closed atomic.Bool
	waker  atomic.Pointer[chan struct{}]
}

// New constructs a Ring whose capacity is rounded up to the next
// power of two.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	cap := 1
	for cap < capacity {
		cap <<= 1
	}
	return &Ring[T]{slots: make([]T, cap), mask: uint64(cap - 1)}
}

func (r *Ring[T]) capacity() uint64 { return r.mask + 1 }

// TryPublish writes v into the next slot if the ring is not full,
// returning false if it is. Called only by the producer.
func (r *Ring[T]) TryPublish(v T) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= r.capacity() {
		return false
	}
	r.slots[head&r.mask] = v
	r.head.Store(head + 1) // release: consumer observes the write above first
	r.wake()
	return true
}

// Acquire returns the next unconsumed slot, or (zero, false, Closed)
// once the ring is closed and drained. Called only by the consumer.
func (r *Ring[T]) Acquire() (T, bool, error) {
	tail := r.tail.Load()
	head := r.head.Load() // acquire: pairs with the producer's release store
	if tail == head {
		var zero T
		if r.closed.Load() {
			return zero, false, Closed{}
		}
		return zero, false, nil
	}
	v := r.slots[tail&r.mask]
	return v, true, nil
}

// Release advances the consumer's cursor past the slot last returned
// by Acquire, making that slot available for reuse by the producer.
func (r *Ring[T]) Release() {
	r.tail.Add(1)
}

// Close marks the ring closed; a consumer that drains every published
// entry then observes Closed on its next Acquire.
func (r *Ring[T]) Close() {
	r.closed.Store(true)
	r.wake()
}

// RegisterWaker installs a channel the consumer can block on; it is
// closed (not sent to) on the next publish or Close, following the
// "check, register, re-check" pattern: the caller must call Acquire
// again after registering in case a publish raced the registration.
func (r *Ring[T]) RegisterWaker() <-chan struct{} {
	ch := make(chan struct{})
	r.waker.Store(&ch)
	return ch
}

func (r *Ring[T]) wake() {
	if p := r.waker.Swap(nil); p != nil {
		close(*p)
	}
}
