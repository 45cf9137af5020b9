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

package stream

import (
	"github.com/quicd/quicd/errkind"
	"github.com/quicd/quicd/frame"
	"github.com/quicd/quicd/interval"
)

// SendStream is the send side of one QUIC stream: an application-fed
// byte rope, a peer flow-control window, and interval-tracked
// acknowledgement/retransmission bookkeeping.
type SendStream struct {
	ID    uint64
	state SendState

	buf         []byte
	bufferBase  uint64 // stream offset of buf[0]
	nextSend    uint64 // first never-yet-sent offset
	finOffset   *uint64
	finSent     bool

	acked       *interval.Set[uint64]
	retransmit  *interval.Set[uint64]

	peerMaxStreamData uint64
	resetErrorCode    uint64

	// blockedAdvertised tracks whether a STREAM_DATA_BLOCKED has
	// already been sent for the current window, so it is only
	// refreshed per spec.md section 4.F ("suppressed if another
	// ack-eliciting frame is already being sent" is enforced by the
	// caller, which asks PendingBlockedFrame before bundling frames).
	blockedAdvertised bool
}

func NewSendStream(id uint64, peerMaxStreamData uint64) *SendStream {
	return &SendStream{
		ID:                id,
		state:             SendReady,
		acked:             interval.New[uint64](0),
		retransmit:        interval.New[uint64](0),
		peerMaxStreamData: peerMaxStreamData,
	}
}

func (s *SendStream) State() SendState { return s.state }

// Push appends application bytes to the stream.
func (s *SendStream) Push(data []byte) error {
	if s.state == SendResetSent || s.state == SendResetRecvd {
		return errkind.StreamStateError("stream %d: push after reset", s.ID)
	}
	if s.finOffset != nil {
		return errkind.StreamStateError("stream %d: push after fin", s.ID)
	}
	if s.state == SendReady {
		s.state = SendSending
	}
	s.buf = append(s.buf, data...)
	return nil
}

// Finish marks the end of the stream; no further Push calls are valid.
func (s *SendStream) Finish() {
	if s.finOffset != nil {
		return
	}
	fo := s.bufferBase + uint64(len(s.buf))
	s.finOffset = &fo
	if s.state == SendReady {
		s.state = SendSending
	}
}

// Reset aborts the send side immediately, per RFC 9000 RESET_STREAM.
func (s *SendStream) Reset(code uint64) frame.ResetStream {
	finalSize := s.bufferBase + uint64(len(s.buf))
	s.resetErrorCode = code
	s.state = SendResetSent
	s.buf = nil
	s.retransmit = interval.New[uint64](0)
	return frame.ResetStream{StreamID: s.ID, ErrorCode: code, FinalSize: finalSize}
}

// OnResetAcked transitions a reset stream once the RESET_STREAM frame
// carrying it has been acknowledged.
func (s *SendStream) OnResetAcked() {
	if s.state == SendResetSent {
		s.state = SendResetRecvd
	}
}

// SetPeerMaxStreamData raises the peer-advertised flow-control window.
func (s *SendStream) SetPeerMaxStreamData(max uint64) {
	if max > s.peerMaxStreamData {
		s.peerMaxStreamData = max
		s.blockedAdvertised = false
	}
}

// IsBlocked reports whether the stream has data to send but is
// stalled on the peer's flow-control window.
func (s *SendStream) IsBlocked() bool {
	total := s.bufferBase + uint64(len(s.buf))
	return s.nextSend < total && s.nextSend >= s.peerMaxStreamData
}

// PendingBlockedFrame returns a STREAM_DATA_BLOCKED frame if the
// stream is window-blocked and one hasn't already been advertised for
// this window.
func (s *SendStream) PendingBlockedFrame() (frame.StreamDataBlocked, bool) {
	if !s.IsBlocked() || s.blockedAdvertised {
		return frame.StreamDataBlocked{}, false
	}
	s.blockedAdvertised = true
	return frame.StreamDataBlocked{StreamID: s.ID, Limit: s.peerMaxStreamData}, true
}

// Poll returns the next STREAM frame to transmit, preferring queued
// retransmissions over new data, bounded by budget bytes of payload.
// hasMore reports whether there is more eligible data after this call
// (used by the scheduler to decide whether HasLen must be set).
func (s *SendStream) Poll(budget int) (f frame.Stream, ok bool, hasMore bool) {
	if budget <= 0 {
		return frame.Stream{}, false, false
	}

	if r, has := s.retransmit.Min(); has {
		n := int(r.Len())
		if n > budget {
			n = budget
		}
		start := r.Start
		end := start + uint64(n)
		data := s.sliceAt(start, end)

		s.retransmit.RemoveRange(start, end-1)
		if end-1 < r.End {
			s.retransmit.Insert(end, r.End)
		}

		fin := s.finOffset != nil && end == *s.finOffset && s.acked.Contains(end-1)
		more := s.retransmit.Len() > 0 || s.hasNewData()
		return frame.Stream{ID: s.ID, Offset: start, Data: data, Fin: fin}, true, more
	}

	total := s.bufferBase + uint64(len(s.buf))
	if s.nextSend >= total {
		if s.finOffset != nil && !s.finSent && s.nextSend == *s.finOffset {
			s.finSent = true
			if s.state != SendResetSent && s.state != SendResetRecvd {
				s.state = SendDataSent
			}
			return frame.Stream{ID: s.ID, Offset: s.nextSend, Fin: true}, true, false
		}
		return frame.Stream{}, false, false
	}

	window := total
	if s.peerMaxStreamData < window {
		window = s.peerMaxStreamData
	}
	if s.nextSend >= window {
		return frame.Stream{}, false, false
	}

	n := int(window - s.nextSend)
	if n > budget {
		n = budget
	}
	start := s.nextSend
	end := start + uint64(n)
	data := s.sliceAt(start, end)

	fin := s.finOffset != nil && end == *s.finOffset
	s.nextSend = end
	if fin {
		s.finSent = true
		if s.state != SendResetSent && s.state != SendResetRecvd {
			s.state = SendDataSent
		}
	}
	more := s.hasNewData() || (s.finOffset != nil && !s.finSent)
	return frame.Stream{ID: s.ID, Offset: start, Data: data, Fin: fin}, true, more
}

func (s *SendStream) hasNewData() bool {
	return s.nextSend < s.bufferBase+uint64(len(s.buf))
}

func (s *SendStream) sliceAt(start, end uint64) []byte {
	lo := start - s.bufferBase
	hi := end - s.bufferBase
	out := make([]byte, hi-lo)
	copy(out, s.buf[lo:hi])
	return out
}

// OnAck records that [offset, offset+length) was acknowledged,
// trimming the retained buffer and the retransmit queue, and
// advancing the stream to DataRecvd once every byte (and fin) is
// acknowledged.
func (s *SendStream) OnAck(offset, length uint64) {
	if length == 0 {
		return
	}
	end := offset + length - 1
	s.acked.Insert(offset, end)
	s.retransmit.RemoveRange(offset, end)

	for {
		r, ok := s.acked.Min()
		if !ok || r.Start != s.bufferBase {
			break
		}
		trim := r.Len()
		if trim > uint64(len(s.buf)) {
			trim = uint64(len(s.buf))
		}
		s.buf = s.buf[trim:]
		s.bufferBase += trim
		s.acked.SplitMin()
	}

	if s.finOffset != nil && s.finSent && s.bufferBase == *s.finOffset &&
		(s.state == SendDataSent) {
		s.state = SendDataRecvd
	}
}

// OnLoss re-queues [offset, offset+length) for retransmission, except
// for any sub-range already acknowledged.
func (s *SendStream) OnLoss(offset, length uint64) {
	if length == 0 {
		return
	}
	end := offset + length - 1
	// Bytes below bufferBase have already been fully acknowledged and
	// dropped from the retained buffer; only consider the portion of
	// the lost range still resident.
	if offset < s.bufferBase {
		offset = s.bufferBase
	}
	if end < offset {
		return
	}
	for _, gap := range s.acked.Difference(interval.Range[uint64]{Start: offset, End: end}) {
		s.retransmit.Insert(gap.Start, gap.End)
	}
}
