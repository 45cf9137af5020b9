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
	"github.com/quicd/quicd/streamid"
)

// side tracks the concurrency bookkeeping for one stream type (bidi or
// uni) in one direction (locally-initiated or remote-initiated).
type side struct {
	nextIndex  uint64 // next ordinal to mint/accept
	limit      uint64 // current allowed count
	increment  uint64 // step used when raising our own advertised limit
	advertised bool   // a STREAMS_BLOCKED has been sent for the current limit
}

// Controller mints locally-initiated stream ids under the peer's
// concurrency limit, admits remote-initiated stream ids under a
// locally-chosen limit, and tracks when MAX_STREAMS / STREAMS_BLOCKED
// frames are due, per spec.md section 4.G.
type Controller struct {
	self streamid.Initiator
	peer streamid.Initiator

	// local[t] governs streams of type t that self opens, bounded by
	// the peer's MAX_STREAMS.
	local [2]side
	// remote[t] governs streams of type t that peer opens, bounded by
	// our own advertised MAX_STREAMS.
	remote [2]side
}

// NewController builds a Controller for an endpoint acting as self,
// with initial concurrency limits for bidirectional and unidirectional
// streams in each direction.
func NewController(self streamid.Initiator, localBidiLimit, localUniLimit, remoteBidiLimit, remoteUniLimit uint64) *Controller {
	peer := streamid.Server
	if self == streamid.Server {
		peer = streamid.Client
	}
	c := &Controller{self: self, peer: peer}
	c.local[streamid.Bidi] = side{limit: localBidiLimit}
	c.local[streamid.Uni] = side{limit: localUniLimit}
	c.remote[streamid.Bidi] = side{limit: remoteBidiLimit, increment: remoteBidiLimit}
	c.remote[streamid.Uni] = side{limit: remoteUniLimit, increment: remoteUniLimit}
	return c
}

// OpenLocal mints the next stream id of the given type initiated by
// self, failing with StreamLimitError if the peer's MAX_STREAMS has
// not authorized it yet.
func (c *Controller) OpenLocal(typ streamid.Type) (streamid.ID, error) {
	s := &c.local[typ]
	if s.nextIndex >= s.limit {
		return 0, errkind.StreamLimitError("no %v streams available under peer limit %d", typ, s.limit)
	}
	id := streamid.New(c.self, typ, s.nextIndex)
	s.nextIndex++
	s.advertised = false
	return id, nil
}

// SetPeerMaxStreams raises the limit on self-initiated streams of typ
// in response to a MAX_STREAMS frame from the peer.
func (c *Controller) SetPeerMaxStreams(typ streamid.Type, max uint64) {
	s := &c.local[typ]
	if max > s.limit {
		s.limit = max
		s.advertised = false
	}
}

// IsLocalBlocked reports whether self has no more stream ids of typ
// available under the peer's current limit.
func (c *Controller) IsLocalBlocked(typ streamid.Type) bool {
	return c.local[typ].nextIndex >= c.local[typ].limit
}

// PendingStreamsBlocked returns a STREAMS_BLOCKED frame if self is
// blocked opening streams of typ and one hasn't already been sent for
// the current limit.
func (c *Controller) PendingStreamsBlocked(typ streamid.Type) (frame.StreamsBlocked, bool) {
	s := &c.local[typ]
	if s.nextIndex < s.limit || s.advertised {
		return frame.StreamsBlocked{}, false
	}
	s.advertised = true
	return frame.StreamsBlocked{Bidi: typ == streamid.Bidi, Limit: s.limit}, true
}

// AdmitRemote validates that id, opened by the peer, falls within the
// locally-advertised concurrency limit, and advances the remote-side
// high-water mark to cover it (admitting any lower-indexed streams
// implicitly, per RFC 9000 section 2.1).
func (c *Controller) AdmitRemote(id streamid.ID) error {
	if !id.InitiatedBy(c.peer) {
		return errkind.ProtocolViolationError("stream %d was not initiated by the peer", id)
	}
	typ := id.Type()
	s := &c.remote[typ]
	idx := id.Index()
	if idx >= s.limit {
		return errkind.StreamLimitError("peer-initiated stream %d exceeds advertised limit %d", id, s.limit)
	}
	if idx+1 > s.nextIndex {
		s.nextIndex = idx + 1
	}
	return nil
}

// MaybeMaxStreams returns a raised concurrency limit to advertise for
// peer-initiated streams of typ once admission has crossed half of the
// current window, mirroring the flow-control window refresh in
// RecvStream.MaybeMaxStreamData.
func (c *Controller) MaybeMaxStreams(typ streamid.Type) (frame.MaxStreams, bool) {
	s := &c.remote[typ]
	if s.increment == 0 {
		return frame.MaxStreams{}, false
	}
	threshold := s.limit - s.increment/2
	if s.nextIndex < threshold {
		return frame.MaxStreams{}, false
	}
	s.limit += s.increment
	return frame.MaxStreams{Bidi: typ == streamid.Bidi, Maximum: s.limit}, true
}
