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

// Package reassembly implements the receive-side byte reassembler
// described in spec.md section 4.E: a growing unidirectional byte
// stream fed by out-of-order writes, backed by a queue of bounded
// slots rather than one unbounded buffer.
package reassembly

import (
	"github.com/quicd/quicd/errkind"
)

// SlotCapacity is the maximum number of bytes a single slot holds
// before a write is split across a new slot.
const SlotCapacity = 32 * 1024

// slot is a contiguous allocated extent of the stream, [start, start+len(data)).
type slot struct {
	start uint64
	data  []byte
}

func (s *slot) end() uint64 { return s.start + uint64(len(s.data)) }

// Reassembler reconstructs one direction of a stream's byte sequence
// from possibly out-of-order, possibly overlapping writes.
type Reassembler struct {
	readOffset uint64
	slots      []*slot
	finalSize  *uint64
}

func New() *Reassembler {
	return &Reassembler{}
}

// ReadOffset returns the offset of the next byte the application has
// not yet consumed.
func (r *Reassembler) ReadOffset() uint64 { return r.readOffset }

// FinalSize returns the stream's final size, once known from a FIN.
func (r *Reassembler) FinalSize() (uint64, bool) {
	if r.finalSize == nil {
		return 0, false
	}
	return *r.finalSize, true
}

// Write ingests bytes at offset, optionally marking the stream's final
// size when fin is set. Bytes at offsets already consumed are dropped
// silently; bytes would only conflict with already-buffered data if
// the peer violates the protocol invariant that a byte offset has a
// single value (the reassembler does not re-verify this).
func (r *Reassembler) Write(offset uint64, data []byte, fin bool) error {
	end := offset + uint64(len(data))

	if fin {
		if r.finalSize != nil && *r.finalSize != end {
			return errkind.FinalSizeError("reassembly: conflicting final size %d vs %d", end, *r.finalSize)
		}
		fs := end
		r.finalSize = &fs
	}
	if r.finalSize != nil && end > *r.finalSize {
		return errkind.FinalSizeError("reassembly: write to offset %d exceeds final size %d", end, *r.finalSize)
	}

	// Trim the lower bound to the reader's current offset: already
	// consumed bytes are dropped silently.
	if offset < r.readOffset {
		if end <= r.readOffset {
			return nil
		}
		data = data[r.readOffset-offset:]
		offset = r.readOffset
	}
	if len(data) == 0 {
		return nil
	}

	r.insert(offset, data)
	return nil
}

// insert merges data into the slot list, coalescing overlapping or
// adjacent slots and re-splitting any merged run back into
// SlotCapacity-sized pieces so slot starts strictly increase and no
// two slots overlap.
func (r *Reassembler) insert(offset uint64, data []byte) {
	end := offset + uint64(len(data))

	lo := 0
	for lo < len(r.slots) && r.slots[lo].end() < offset {
		lo++
	}
	hi := lo
	for hi < len(r.slots) && r.slots[hi].start <= end {
		hi++
	}

	mergedStart := offset
	mergedEnd := end
	if hi > lo {
		if r.slots[lo].start < mergedStart {
			mergedStart = r.slots[lo].start
		}
		if r.slots[hi-1].end() > mergedEnd {
			mergedEnd = r.slots[hi-1].end()
		}
	}

	buf := make([]byte, mergedEnd-mergedStart)
	for i := lo; i < hi; i++ {
		s := r.slots[i]
		copy(buf[s.start-mergedStart:], s.data)
	}
	copy(buf[offset-mergedStart:], data)

	newSlots := splitIntoSlots(mergedStart, buf)

	tail := make([]*slot, 0, len(r.slots)-hi+len(newSlots))
	tail = append(tail, r.slots[:lo]...)
	tail = append(tail, newSlots...)
	tail = append(tail, r.slots[hi:]...)
	r.slots = tail
}

func splitIntoSlots(start uint64, buf []byte) []*slot {
	var out []*slot
	for len(buf) > 0 {
		n := len(buf)
		if n > SlotCapacity {
			n = SlotCapacity
		}
		out = append(out, &slot{start: start, data: buf[:n]})
		start += uint64(n)
		buf = buf[n:]
	}
	return out
}

// Pop returns the first buffered slot when it begins at the current
// read offset, advancing ReadOffset by the returned length. One call
// returns at most one slot, even when the next slot is contiguous with
// it. Returns (nil, false) if no new contiguous bytes are available.
func (r *Reassembler) Pop() ([]byte, bool) {
	if len(r.slots) == 0 || r.slots[0].start != r.readOffset {
		return nil, false
	}
	s := r.slots[0]
	r.slots = r.slots[1:]
	r.readOffset = s.end()
	return s.data, true
}

// IsDrained reports whether every byte up to the final size has been
// popped by the application; the caller transitions its recv state
// machine to DataRead once this is true.
func (r *Reassembler) IsDrained() bool {
	return r.finalSize != nil && r.readOffset == *r.finalSize
}
