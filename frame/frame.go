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

// Package frame encodes and decodes every QUIC frame type (spec.md
// section 4.A). Every frame knows its own encoded length before
// serialization so the packet builder (package packet) can decide
// whether it fits the remaining budget of a packet under construction.
package frame

import (
	"github.com/quicd/quicd/errkind"
	"github.com/quicd/quicd/varint"
)

// Tag is the single-byte frame type discriminator. STREAM frames
// occupy the range [TagStreamBase, TagStreamBase+0x07] and ACK frames
// are either TagACK or TagACKECN.
type Tag byte

const (
	TagPadding       Tag = 0x00
	TagPing          Tag = 0x01
	TagACK           Tag = 0x02
	TagACKECN        Tag = 0x03
	TagResetStream   Tag = 0x04
	TagStopSending   Tag = 0x05
	TagCrypto        Tag = 0x06
	TagNewToken      Tag = 0x07
	TagStreamBase    Tag = 0x08 // 0x08..0x0f, low 3 bits: OFF|LEN|FIN
	TagMaxData       Tag = 0x10
	TagMaxStreamData Tag = 0x11
	TagMaxStreamsBidi Tag = 0x12
	TagMaxStreamsUni Tag = 0x13
	TagDataBlocked       Tag = 0x14
	TagStreamDataBlocked Tag = 0x15
	TagStreamsBlockedBidi Tag = 0x16
	TagStreamsBlockedUni  Tag = 0x17
	TagNewConnectionID    Tag = 0x18
	TagRetireConnectionID Tag = 0x19
	TagPathChallenge      Tag = 0x1a
	TagPathResponse       Tag = 0x1b
	TagConnectionCloseQUIC Tag = 0x1c
	TagConnectionCloseApp  Tag = 0x1d
	TagHandshakeDone       Tag = 0x1e
)

// extensionThreshold is the boundary above which unregistered tags are
// rejected by the core (spec.md section 4.A): "extension frames (tag
// >= 0x40) are rejected by the core unless a registered handler exists."
const extensionThreshold = 0x40

// IsStreamTag reports whether tag belongs to the STREAM frame family.
func IsStreamTag(tag byte) bool {
	return tag >= byte(TagStreamBase) && tag <= byte(TagStreamBase)+0x07
}

// IsAckEliciting reports whether a frame of this tag requires the
// peer to eventually acknowledge the packet it was carried in. ACK,
// PADDING and CONNECTION_CLOSE are the exceptions.
func IsAckEliciting(tag byte) bool {
	switch Tag(tag) {
	case TagPadding, TagACK, TagACKECN, TagConnectionCloseQUIC, TagConnectionCloseApp:
		return false
	default:
		return true
	}
}

// Frame is implemented by every decoded or to-be-encoded frame. Len
// must equal exactly the number of bytes Encode writes, so callers can
// compute packet budgets without a dry-run encode.
type Frame interface {
	Tag() byte
	Len() int
	Encode(dst []byte) []byte
}

// ExtensionHandler decodes an extension frame (tag >= 0x40) registered
// by an application; the core has no built-in extension frames.
type ExtensionHandler func(tag byte, b []byte) (Frame, int, error)

var extensionHandlers = map[byte]ExtensionHandler{}

// RegisterExtension installs a decoder for an application-defined
// extension frame tag. Re-registering a tag replaces the handler.
func RegisterExtension(tag byte, h ExtensionHandler) {
	extensionHandlers[tag] = h
}

// Decode reads a single frame from the front of b. The tag byte is
// consumed as part of decoding (unlike the packet codec's header
// parsing, which peeks the tag before dispatch).
func Decode(b []byte) (Frame, int, error) {
	if len(b) == 0 {
		return nil, 0, errkind.FrameEncodingError("frame: empty input")
	}
	tag := b[0]
	body := b[1:]

	switch {
	case IsStreamTag(tag):
		f, n, err := decodeStream(tag, body)
		return f, n + 1, err
	case tag == byte(TagACK) || tag == byte(TagACKECN):
		f, n, err := decodeAck(tag, body)
		return f, n + 1, err
	}

	switch Tag(tag) {
	case TagPadding:
		return decodePadding(body)
	case TagPing:
		return Ping{}, 1, nil
	case TagResetStream:
		f, n, err := decodeResetStream(body)
		return f, n + 1, err
	case TagStopSending:
		f, n, err := decodeStopSending(body)
		return f, n + 1, err
	case TagCrypto:
		f, n, err := decodeCrypto(body)
		return f, n + 1, err
	case TagNewToken:
		f, n, err := decodeNewToken(body)
		return f, n + 1, err
	case TagMaxData:
		f, n, err := decodeMaxData(body)
		return f, n + 1, err
	case TagMaxStreamData:
		f, n, err := decodeMaxStreamData(body)
		return f, n + 1, err
	case TagMaxStreamsBidi, TagMaxStreamsUni:
		f, n, err := decodeMaxStreams(tag, body)
		return f, n + 1, err
	case TagDataBlocked:
		f, n, err := decodeDataBlocked(body)
		return f, n + 1, err
	case TagStreamDataBlocked:
		f, n, err := decodeStreamDataBlocked(body)
		return f, n + 1, err
	case TagStreamsBlockedBidi, TagStreamsBlockedUni:
		f, n, err := decodeStreamsBlocked(tag, body)
		return f, n + 1, err
	case TagNewConnectionID:
		f, n, err := decodeNewConnectionID(body)
		return f, n + 1, err
	case TagRetireConnectionID:
		f, n, err := decodeRetireConnectionID(body)
		return f, n + 1, err
	case TagPathChallenge:
		f, n, err := decodePathChallenge(body)
		return f, n + 1, err
	case TagPathResponse:
		f, n, err := decodePathResponse(body)
		return f, n + 1, err
	case TagConnectionCloseQUIC, TagConnectionCloseApp:
		f, n, err := decodeConnectionClose(tag, body)
		return f, n + 1, err
	case TagHandshakeDone:
		return HandshakeDone{}, 1, nil
	}

	if tag >= extensionThreshold {
		if h, ok := extensionHandlers[tag]; ok {
			f, n, err := h(tag, body)
			return f, n + 1, err
		}
	}
	return nil, 0, errkind.FrameEncodingError("frame: unknown or unregistered tag 0x%02x", tag)
}

func putVarint(dst []byte, v uint64) []byte {
	dst, _ = varint.Encode(dst, v)
	return dst
}
