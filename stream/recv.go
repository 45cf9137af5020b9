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
	"github.com/quicd/quicd/reassembly"
)

// RecvStream is the receive side of one QUIC stream: a reassembler
// plus local flow-control window accounting.
type RecvStream struct {
	ID    uint64
	state RecvState

	r *reassembly.Reassembler

	localMaxStreamData uint64 // current advertised window
	windowIncrement    uint64 // size of each window step
	consumed           uint64 // bytes delivered to the application

	resetErrorCode *uint64
}

func NewRecvStream(id uint64, initialWindow uint64) *RecvStream {
	return &RecvStream{
		ID:                 id,
		state:              RecvRecv,
		r:                  reassembly.New(),
		localMaxStreamData: initialWindow,
		windowIncrement:    initialWindow,
	}
}

func (s *RecvStream) State() RecvState { return s.state }

// OnStreamFrame ingests a STREAM frame's payload, enforcing the
// locally-advertised flow-control limit.
func (s *RecvStream) OnStreamFrame(offset uint64, data []byte, fin bool) error {
	if s.state == RecvResetRecvd || s.state == RecvResetRead {
		return nil
	}
	end := offset + uint64(len(data))
	if end > s.localMaxStreamData {
		return errkind.FlowControlError("stream %d: received offset %d exceeds window %d", s.ID, end, s.localMaxStreamData)
	}
	if err := s.r.Write(offset, data, fin); err != nil {
		return err
	}
	if fin && s.state == RecvRecv {
		s.state = RecvSizeKnown
	}
	return nil
}

// OnResetStream handles a RESET_STREAM frame, abandoning reassembly.
func (s *RecvStream) OnResetStream(errorCode uint64) {
	if s.state == RecvResetRecvd || s.state == RecvResetRead {
		return
	}
	s.resetErrorCode = &errorCode
	s.state = RecvResetRecvd
}

// ResetErrorCode returns the application error code carried by
// RESET_STREAM, if the stream was reset.
func (s *RecvStream) ResetErrorCode() (uint64, bool) {
	if s.resetErrorCode == nil {
		return 0, false
	}
	return *s.resetErrorCode, true
}

// Read pops the next contiguous chunk of application data, advancing
// the recv state machine to DataRecvd/DataRead as appropriate.
func (s *RecvStream) Read() ([]byte, bool) {
	data, ok := s.r.Pop()
	if !ok {
		return nil, false
	}
	s.consumed += uint64(len(data))
	if s.r.IsDrained() {
		s.state = RecvDataRead
	} else if s.state == RecvSizeKnown {
		s.state = RecvDataRecvd
	}
	return data, true
}

// AckResetRead marks a reset stream's application-visible error as
// delivered.
func (s *RecvStream) AckResetRead() {
	if s.state == RecvResetRecvd {
		s.state = RecvResetRead
	}
}

// MaybeMaxStreamData returns a new window limit to advertise via
// MAX_STREAM_DATA once consumption has crossed half of the current
// window, and false otherwise.
func (s *RecvStream) MaybeMaxStreamData() (uint64, bool) {
	threshold := s.localMaxStreamData - s.windowIncrement/2
	if s.consumed < threshold {
		return 0, false
	}
	s.localMaxStreamData += s.windowIncrement
	return s.localMaxStreamData, true
}

// LocalMaxStreamData returns the currently advertised receive window.
func (s *RecvStream) LocalMaxStreamData() uint64 { return s.localMaxStreamData }
