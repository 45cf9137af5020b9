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

// Package router implements the RX dispatch path (spec.md section
// 4.M): it parses each incoming datagram segment, finds the
// connection a destination connection id (or dc tag) belongs to, and
// hands off. Long-header packets may be coalesced, so the dispatch
// loop keeps decoding prefixes until the datagram is exhausted.
package router

import (
	"sync"

	"github.com/quicd/quicd/common"
	"github.com/quicd/quicd/dcmap"
	"github.com/quicd/quicd/internal/rescue"
	"github.com/quicd/quicd/logger"
	"github.com/quicd/quicd/packet"
	"github.com/quicd/quicd/varint"
)

// DefaultTagLength is the dc tag length used when a connection id does
// not belong to any registered connection (spec.md section 4.M).
const DefaultTagLength = 16

// Handler receives packets addressed to one connection's registered
// connection ids.
type Handler interface {
	HandleLongHeader(tuple common.Tuple, h packet.LongHeader, raw []byte)
	HandleShortHeader(tuple common.Tuple, h packet.ShortHeader, raw []byte)
}

// SecretControlSink receives datagrams the router could not attribute
// to a live connection, for the dc control-plane responses described
// in spec.md section 4.O (ReplayDetected, StaleKey) and RFC 9000
// section 10.3 stateless resets.
type SecretControlSink interface {
	StatelessReset(tuple common.Tuple, token [16]byte)
	// SecretControlCandidate is a datagram whose leading tag matched a
	// live dc path-secret entry but whose destination connection id was
	// not registered with any connection; the dc protocol layer owns
	// the key-id/dedup decision (entry.Dedup) and issues
	// ReplayDetected/StaleKey itself.
	SecretControlCandidate(tuple common.Tuple, entry *dcmap.Entry, raw []byte)
	UnknownPathSecret(tuple common.Tuple, tag dcmap.Id)
}

// Router multiplexes datagrams to registered connections by
// destination connection id, falling back to a SecretControlSink for
// everything it cannot attribute.
type Router struct {
	tagLength int
	cidLength int

	mu          sync.RWMutex
	byCID       map[string]Handler
	resetTokens map[[16]byte]struct{}

	dcMap *dcmap.Map
	sink  SecretControlSink
}

// New constructs a Router. cidLength is the connection id length
// negotiated for short-header packets (short headers carry no
// explicit length field); tagLength is the dc tag length checked
// against unattributed connection ids, defaulting to DefaultTagLength
// when 0.
func New(cidLength, tagLength int, dcMap *dcmap.Map, sink SecretControlSink) *Router {
	if tagLength == 0 {
		tagLength = DefaultTagLength
	}
	return &Router{
		cidLength:   cidLength,
		tagLength:   tagLength,
		byCID:       make(map[string]Handler),
		resetTokens: make(map[[16]byte]struct{}),
		dcMap:       dcMap,
		sink:        sink,
	}
}

// Register associates cid with h. Connections register every
// connection id they own, including ones issued after the handshake.
func (r *Router) Register(cid []byte, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCID[string(cid)] = h
}

// Unregister removes cid, e.g. on RETIRE_CONNECTION_ID.
func (r *Router) Unregister(cid []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byCID, string(cid))
}

// RegisterResetToken records a stateless reset token this process
// issued, so a later unattributed short-header datagram ending in the
// same 16 bytes is recognized as a stateless reset rather than dropped.
func (r *Router) RegisterResetToken(token [16]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetTokens[token] = struct{}{}
}

// UnregisterResetToken removes a token, e.g. once its connection is
// fully torn down.
func (r *Router) UnregisterResetToken(token [16]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.resetTokens, token)
}

func (r *Router) lookup(cid []byte) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byCID[string(cid)]
	return h, ok
}

func (r *Router) lookupResetToken(token [16]byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.resetTokens[token]
	return ok
}

// Dispatch parses and routes every packet segment in datagram, which
// may be a coalesced sequence of long-header packets (RFC 9000 section
// 12.2). A panic anywhere in a handler is recovered so one malformed
// packet or one connection's bug cannot take the listener down.
func (r *Router) Dispatch(tuple common.Tuple, datagram []byte) {
	defer rescue.HandleCrash()

	for len(datagram) > 0 {
		if datagram[0]&0x80 != 0 {
			n := r.dispatchLong(tuple, datagram)
			if n <= 0 {
				return
			}
			datagram = datagram[n:]
			continue
		}
		r.dispatchShort(tuple, datagram)
		return
	}
}

// dispatchLong decodes and routes one long-header packet at the front
// of datagram, returning the number of bytes it occupies (0 on a fatal
// parse error, which also ends coalescing for the rest of the
// datagram since framing is lost).
func (r *Router) dispatchLong(tuple common.Tuple, datagram []byte) int {
	h, off, err := packet.DecodeLongHeaderPrefix(datagram)
	if err != nil {
		logger.Debugf("router: dropping malformed long header from %s: %v", tuple, err)
		return 0
	}

	packetLen := len(datagram)
	switch h.Type {
	case packet.TypeInitial, packet.TypeZeroRTT, packet.TypeHandshake:
		length, n, derr := varint.Decode(datagram[off:])
		if derr != nil {
			logger.Debugf("router: dropping long header with bad length varint from %s: %v", tuple, derr)
			return 0
		}
		packetLen = off + n + int(length)
		if packetLen > len(datagram) {
			logger.Debugf("router: dropping long header with truncated length from %s", tuple)
			return 0
		}
	}

	raw := datagram[:packetLen]
	if handler, ok := r.lookup(h.DestCID); ok {
		handler.HandleLongHeader(tuple, h, raw)
		return packetLen
	}
	r.routeUnattributed(tuple, h.DestCID, raw)
	return packetLen
}

func (r *Router) dispatchShort(tuple common.Tuple, datagram []byte) {
	if len(datagram) < 1+r.cidLength {
		logger.Debugf("router: dropping short-header datagram too short from %s", tuple)
		return
	}
	h, _, err := packet.DecodeShortHeaderPrefix(datagram, r.cidLength)
	if err != nil {
		logger.Debugf("router: dropping malformed short header from %s: %v", tuple, err)
		return
	}

	if handler, ok := r.lookup(h.DestCID); ok {
		handler.HandleShortHeader(tuple, h, datagram)
		return
	}

	if len(datagram) >= 16 {
		var token [16]byte
		copy(token[:], datagram[len(datagram)-16:])
		if r.lookupResetToken(token) {
			if r.sink != nil {
				r.sink.StatelessReset(tuple, token)
			}
			return
		}
	}

	r.routeUnattributed(tuple, h.DestCID, datagram)
}

// routeUnattributed handles a connection id the router has no
// registered handler for: it may belong to dc traffic tagged with a
// path-secret id, or it may be genuinely unknown.
func (r *Router) routeUnattributed(tuple common.Tuple, cid []byte, raw []byte) {
	if len(cid) != r.tagLength || r.dcMap == nil || r.sink == nil {
		logger.Debugf("router: dropping packet for unknown connection id (len %d) from %s", len(cid), tuple)
		return
	}

	var id dcmap.Id
	copy(id[:], cid)

	entry, ok := r.dcMap.LookupByID(id)
	if !ok {
		r.sink.UnknownPathSecret(tuple, id)
		return
	}
	r.sink.SecretControlCandidate(tuple, entry, raw)
}
