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

// Package dcstream implements a dc stream's send and receive halves
// over a shared block (spec.md section 4.P): a GSO-aware send ring
// batched against the BBR send quantum, and a per-queue-id receive
// channel that drops the oldest entry rather than blocking when full.
package dcstream

import (
	"sync"

	"github.com/quicd/quicd/bbr"
	"github.com/quicd/quicd/dcmap"
)

// Segment is one outbound unit: a reference-counted buffer, its ECN
// mark, and the byte offset its header starts at within Data.
type Segment struct {
	Data       []byte
	ECN        byte
	HeaderOff  int
	refs       int
}

// Shared is the state a dc stream's send and receive halves both
// reference: congestion state, flow-control offsets, the credential
// this stream authenticates with and the peer's address.
type Shared struct {
	Congestion *bbr.Controller
	Credential dcmap.Id
	RemoteAddr string

	mu                sync.Mutex
	localOffset       uint64
	peerMaxOffset     uint64
	flowControlled    bool
}

// NewShared constructs a Shared block. flowControlled selects whether
// Send enforces peerMaxOffset; reliable byte-stream transports that
// rely on socket-level backpressure instead pass false.
func NewShared(congestion *bbr.Controller, credential dcmap.Id, remoteAddr string, flowControlled bool, peerMaxOffset uint64) *Shared {
	return &Shared{Congestion: congestion, Credential: credential, RemoteAddr: remoteAddr, flowControlled: flowControlled, peerMaxOffset: peerMaxOffset}
}

// SetPeerMaxOffset updates the flow-control ceiling, e.g. after a
// MAX_STREAM_DATA-equivalent control message.
func (s *Shared) SetPeerMaxOffset(v uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v > s.peerMaxOffset {
		s.peerMaxOffset = v
	}
}

// reserve claims n bytes of the local offset, returning false if the
// reservation would exceed the flow-control window.
func (s *Shared) reserve(n uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flowControlled && s.localOffset+n > s.peerMaxOffset {
		return false
	}
	s.localOffset += n
	return true
}

// SendQueue is the outbound half: a ring of pending Segments batched
// for one send call per spec.md's GSO algorithm.
type SendQueue struct {
	shared *Shared

	mu      sync.Mutex
	pending []*Segment
	gso     bool
	pool    *bufferPool
}

// NewSendQueue constructs a SendQueue with GSO batching enabled.
func NewSendQueue(shared *Shared) *SendQueue {
	return &SendQueue{shared: shared, gso: true, pool: newBufferPool()}
}

// Push enqueues seg for transmission, gated by the shared block's flow
// control window.
func (q *SendQueue) Push(seg *Segment) bool {
	if !q.shared.reserve(uint64(len(seg.Data) - seg.HeaderOff)) {
		return false
	}
	q.mu.Lock()
	q.pending = append(q.pending, seg)
	q.mu.Unlock()
	return true
}

// AcquireBatch pulls up to maxSegments pending segments whose combined
// size fits the BBR send quantum, per spec.md's transmission
// algorithm step 1. The caller passes the batch to the socket as one
// send call (step 2); a successful step 3 call is Complete, a GSO
// failure is DisableGSO followed by re-acquiring one segment at a time.
func (q *SendQueue) AcquireBatch(maxSegments int) []*Segment {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil
	}
	limit := maxSegments
	if !q.gso {
		limit = 1
	}
	budget := q.shared.Congestion.SendQuantum()

	var batch []*Segment
	used := 0
	for len(q.pending) > 0 && len(batch) < limit {
		seg := q.pending[0]
		if used > 0 && used+len(seg.Data) > budget {
			break
		}
		batch = append(batch, seg)
		used += len(seg.Data)
		q.pending = q.pending[1:]
	}
	return batch
}

// Complete returns a batch's buffers to the allocator pool once
// writtenBytes of it has actually been accepted by the socket; any
// unwritten tail is requeued at the front.
func (q *SendQueue) Complete(batch []*Segment, writtenBytes int) {
	remaining := writtenBytes
	var requeue []*Segment
	for _, seg := range batch {
		if remaining >= len(seg.Data) {
			remaining -= len(seg.Data)
			q.pool.release(seg.Data)
			continue
		}
		if remaining > 0 {
			seg.Data = seg.Data[remaining:]
			remaining = 0
		}
		requeue = append(requeue, seg)
	}
	if len(requeue) > 0 {
		q.mu.Lock()
		q.pending = append(requeue, q.pending...)
		q.mu.Unlock()
	}
}

// DisableGSO is called on EIO with GSO enabled, per spec.md: subsequent
// batches are acquired one segment at a time.
func (q *SendQueue) DisableGSO() {
	q.mu.Lock()
	q.gso = false
	q.mu.Unlock()
}

// bufferPool is an MPSC-style free list of reusable buffer chunks, fed
// by send completions (spec.md section 5, "Send allocator pool").
type bufferPool struct {
	mu   sync.Mutex
	free [][]byte
}

func newBufferPool() *bufferPool { return &bufferPool{} }

func (p *bufferPool) acquire(size int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.free); n > 0 {
		buf := p.free[n-1]
		p.free = p.free[:n-1]
		if cap(buf) >= size {
			return buf[:size]
		}
	}
	return make([]byte, size)
}

func (p *bufferPool) release(buf []byte) {
	p.mu.Lock()
	p.free = append(p.free, buf[:0])
	p.mu.Unlock()
}
