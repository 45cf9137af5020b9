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

package packet

import (
	"github.com/quicd/quicd/errkind"
	"github.com/quicd/quicd/frame"
	"github.com/quicd/quicd/packetnumber"
	"github.com/quicd/quicd/varint"
)

// minHeaderProtectionPayload is the minimum length of packet number plus
// plaintext payload that both builders pad to, so that sampling for
// header protection never reads past the packet (RFC 9001 section
// 5.4.2): the sample starts 4 bytes after the packet number offset and
// is 16 bytes long.
const minHeaderProtectionPayload = 4 + SampleLength

// Builder carries a maximum segment size. It has no methods:
// BuildLongHeaderPacket and BuildShortHeaderPacket take their byte
// budget as an argument and return protected wire bytes.
type Builder struct {
	MaxSegmentSize int
}

// Built is the result of a successful BuildLongHeaderPacket or
// BuildShortHeaderPacket call.
type Built struct {
	// Packet is the fully-protected wire bytes, ready to send.
	Packet []byte
	// Number is the full (untruncated) packet number assigned.
	Number uint64
	// AckEliciting reports whether any frame packed requires the peer
	// to acknowledge this packet.
	AckEliciting bool
	Size         int
}

// BuildLongHeaderPacket frames fs into an Initial/0-RTT/Handshake
// packet, pads it with PADDING frames when it is too short for the
// header-protection sample, applies AEAD payload protection and header
// protection, and returns the wire bytes. It does not pad Initial
// packets to any datagram-size minimum.
func BuildLongHeaderPacket(h LongHeader, pn uint64, largestAcked uint64, fs []frame.Frame, prot *Protection, budget int) (Built, error) {
	if budget <= 0 {
		return Built{}, errkind.EncodeError("packet: non-positive budget %d", budget)
	}
	truncated, pnLength, err := packetnumber.Truncate(pn, largestAcked)
	if err != nil {
		return Built{}, err
	}

	header := EncodeLongHeaderPrefix(nil, h, pnLength)

	var payload []byte
	ackEliciting := false
	for _, f := range fs {
		payload = f.Encode(payload)
		if frame.IsAckEliciting(f.Tag()) {
			ackEliciting = true
		}
	}

	// Long-header packets that would sample past their own payload pad
	// with PADDING frames (tag 0x00) to the minimum length.
	for len(payload)+pnLength < minHeaderProtectionPayload {
		payload = append(payload, byte(frame.TagPadding))
	}

	lengthField := pnLength + len(payload) + prot.AEAD.Overhead()
	header, _ = appendLengthAndPN(header, h.Type, lengthField, truncated, pnLength)

	if len(header)+len(payload)+prot.AEAD.Overhead() > budget {
		return Built{}, errkind.EncodeError("packet: framed payload exceeds budget")
	}

	sealed := prot.Seal(header, pn, payload)
	pkt := append(append([]byte{}, header...), sealed...)

	pnOffset := len(header) - pnLength
	if err := prot.ApplyHeaderProtection(pkt, pnOffset, pnLength, true); err != nil {
		return Built{}, err
	}

	return Built{Packet: pkt, Number: pn, AckEliciting: ackEliciting, Size: len(pkt)}, nil
}

// appendLengthAndPN writes the Length varint (Initial/0-RTT/Handshake
// only carry this field) followed by the truncated packet number.
func appendLengthAndPN(dst []byte, t LongType, length int, truncatedPN uint64, pnLength int) ([]byte, error) {
	var err error
	if t != TypeRetry && t != TypeVersionNegotiation {
		dst, err = varint.Encode(dst, uint64(length))
		if err != nil {
			return nil, err
		}
	}
	dst = EncodePacketNumber(dst, truncatedPN, pnLength)
	return dst, nil
}

// BuildShortHeaderPacket frames fs into a 1-RTT packet.
func BuildShortHeaderPacket(h ShortHeader, pn uint64, largestAcked uint64, fs []frame.Frame, prot *Protection, budget int) (Built, error) {
	if budget <= 0 {
		return Built{}, errkind.EncodeError("packet: non-positive budget %d", budget)
	}
	truncated, pnLength, err := packetnumber.Truncate(pn, largestAcked)
	if err != nil {
		return Built{}, err
	}

	header := EncodeShortHeaderPrefix(nil, h, pnLength)
	header = EncodePacketNumber(header, truncated, pnLength)

	var payload []byte
	ackEliciting := false
	for _, f := range fs {
		payload = f.Encode(payload)
		if frame.IsAckEliciting(f.Tag()) {
			ackEliciting = true
		}
	}

	// Short-header packets that would sample past their own payload pad
	// with PADDING frames to the same minimum as long-header packets.
	for len(payload)+pnLength < minHeaderProtectionPayload {
		payload = append(payload, byte(frame.TagPadding))
	}

	if len(header)+len(payload)+prot.AEAD.Overhead() > budget {
		return Built{}, errkind.EncodeError("packet: framed payload exceeds budget")
	}

	sealed := prot.Seal(header, pn, payload)
	pkt := append(append([]byte{}, header...), sealed...)

	pnOffset := len(header) - pnLength
	if err := prot.ApplyHeaderProtection(pkt, pnOffset, pnLength, false); err != nil {
		return Built{}, err
	}

	return Built{Packet: pkt, Number: pn, AckEliciting: ackEliciting, Size: len(pkt)}, nil
}
