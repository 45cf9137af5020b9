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
	"github.com/quicd/quicd/packetnumber"
	"github.com/quicd/quicd/varint"
)

// LongType discriminates the five long-header packet shapes (RFC 9000
// section 17.2).
type LongType byte

const (
	TypeInitial LongType = iota
	TypeZeroRTT
	TypeHandshake
	TypeRetry
	TypeVersionNegotiation
)

func (t LongType) bits() byte {
	switch t {
	case TypeInitial:
		return 0x00
	case TypeZeroRTT:
		return 0x01
	case TypeHandshake:
		return 0x02
	case TypeRetry:
		return 0x03
	default:
		return 0x00
	}
}

// Version is the wire version number; only Version1 is understood by
// this codec, everything else triggers version negotiation.
const Version1 uint32 = 0x00000001

// LongHeader is the common shape of Initial/0-RTT/Handshake/Retry
// packets before header protection is applied.
type LongHeader struct {
	Type    LongType
	Version uint32
	DestCID []byte
	SrcCID  []byte

	// Token carries the address-validation token on Initial packets,
	// and the retry token on Retry packets (RFC 9000 section 17.2.5).
	Token []byte

	// Space identifies the packet-number space this header's PN was
	// drawn from, so the caller can route it to the right recovery.Manager.
	Space packetnumber.Space
}

// spaceOf maps a long-header type to its packet-number space.
func (t LongType) spaceOf() packetnumber.Space {
	switch t {
	case TypeInitial:
		return packetnumber.Initial
	case TypeHandshake:
		return packetnumber.Handshake
	default:
		return packetnumber.ApplicationData
	}
}

// EncodeLongHeaderPrefix writes the unprotected portion of a long
// header (everything up to but not including the Length field and
// packet number) to dst and returns the extended slice; the Length
// varint goes at its end once the payload size is known.
func EncodeLongHeaderPrefix(dst []byte, h LongHeader, pnLength int) []byte {
	firstByte := byte(0xc0) | h.Type.bits()<<4 | byte(pnLength-1)
	dst = append(dst, firstByte)

	var ver [4]byte
	ver[0] = byte(h.Version >> 24)
	ver[1] = byte(h.Version >> 16)
	ver[2] = byte(h.Version >> 8)
	ver[3] = byte(h.Version)
	dst = append(dst, ver[:]...)

	dst = append(dst, byte(len(h.DestCID)))
	dst = append(dst, h.DestCID...)
	dst = append(dst, byte(len(h.SrcCID)))
	dst = append(dst, h.SrcCID...)

	if h.Type == TypeInitial {
		dst, _ = varint.Encode(dst, uint64(len(h.Token)))
		dst = append(dst, h.Token...)
	}
	return dst
}

// DecodeLongHeaderPrefix parses the unprotected prefix of a long
// header, returning the header and the offset of the Length field.
func DecodeLongHeaderPrefix(b []byte) (h LongHeader, offset int, err error) {
	if len(b) < 6 {
		return h, 0, errkind.DecryptError("packet: long header too short")
	}
	if b[0]&0x80 == 0 {
		return h, 0, errkind.DecryptError("packet: not a long header")
	}
	switch (b[0] >> 4) & 0x03 {
	case 0x00:
		h.Type = TypeInitial
	case 0x01:
		h.Type = TypeZeroRTT
	case 0x02:
		h.Type = TypeHandshake
	case 0x03:
		h.Type = TypeRetry
	}
	h.Space = h.Type.spaceOf()
	h.Version = uint32(b[1])<<24 | uint32(b[2])<<16 | uint32(b[3])<<8 | uint32(b[4])

	off := 5
	destLen := int(b[off])
	off++
	if off+destLen > len(b) {
		return h, 0, errkind.DecryptError("packet: truncated destination connection id")
	}
	h.DestCID = b[off : off+destLen]
	off += destLen

	if off >= len(b) {
		return h, 0, errkind.DecryptError("packet: truncated source connection id length")
	}
	srcLen := int(b[off])
	off++
	if off+srcLen > len(b) {
		return h, 0, errkind.DecryptError("packet: truncated source connection id")
	}
	h.SrcCID = b[off : off+srcLen]
	off += srcLen

	if h.Type == TypeInitial {
		tokenLen, n, derr := varint.Decode(b[off:])
		if derr != nil {
			return h, 0, derr
		}
		off += n
		if off+int(tokenLen) > len(b) {
			return h, 0, errkind.DecryptError("packet: truncated token")
		}
		h.Token = b[off : off+int(tokenLen)]
		off += int(tokenLen)
	}

	return h, off, nil
}

// ShortHeader is the 1-RTT packet shape (RFC 9000 section 17.3).
type ShortHeader struct {
	DestCID  []byte
	SpinBit  bool
	KeyPhase bool
}

// EncodeShortHeaderPrefix writes the unprotected portion of a short
// header: the first byte (with spin bit, key phase and the packet
// number length bits set from pnLength) and the destination connection
// ID.
func EncodeShortHeaderPrefix(dst []byte, h ShortHeader, pnLength int) []byte {
	firstByte := byte(0x40) | byte(pnLength-1)
	if h.SpinBit {
		firstByte |= 0x20
	}
	if h.KeyPhase {
		firstByte |= 0x04
	}
	dst = append(dst, firstByte)
	dst = append(dst, h.DestCID...)
	return dst
}

// DecodeShortHeaderPrefix parses a short header given the connection ID
// length negotiated out of band (short headers carry no explicit CID
// length field, per RFC 9000 section 17.3.1).
func DecodeShortHeaderPrefix(b []byte, cidLength int) (h ShortHeader, offset int, err error) {
	if len(b) < 1+cidLength {
		return h, 0, errkind.DecryptError("packet: short header too short")
	}
	if b[0]&0x80 != 0 {
		return h, 0, errkind.DecryptError("packet: not a short header")
	}
	h.SpinBit = b[0]&0x20 != 0
	h.KeyPhase = b[0]&0x04 != 0
	h.DestCID = b[1 : 1+cidLength]
	return h, 1 + cidLength, nil
}

// EncodePacketNumber appends the truncated packet number in its
// encoded length.
func EncodePacketNumber(dst []byte, truncated uint64, length int) []byte {
	start := len(dst)
	for i := 0; i < length; i++ {
		dst = append(dst, 0)
	}
	buf := dst[start:]
	for i := length - 1; i >= 0; i-- {
		buf[i] = byte(truncated)
		truncated >>= 8
	}
	return dst
}
