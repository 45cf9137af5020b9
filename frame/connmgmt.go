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

package frame

import "github.com/quicd/quicd/varint"

// StatelessResetTokenLen is the fixed width of the token carried by
// NEW_CONNECTION_ID and used to recognize stateless resets (spec.md
// section 6).
const StatelessResetTokenLen = 16

// NewConnectionID offers a new connection id the peer may route to.
type NewConnectionID struct {
	Sequence     uint64
	RetirePriorTo uint64
	ConnectionID []byte
	ResetToken   [StatelessResetTokenLen]byte
}

func (f NewConnectionID) Tag() byte { return byte(TagNewConnectionID) }
func (f NewConnectionID) Len() int {
	return 1 + varint.Len(f.Sequence) + varint.Len(f.RetirePriorTo) + 1 + len(f.ConnectionID) + StatelessResetTokenLen
}
func (f NewConnectionID) Encode(dst []byte) []byte {
	dst = append(dst, byte(TagNewConnectionID))
	dst = putVarint(dst, f.Sequence)
	dst = putVarint(dst, f.RetirePriorTo)
	dst = append(dst, byte(len(f.ConnectionID)))
	dst = append(dst, f.ConnectionID...)
	return append(dst, f.ResetToken[:]...)
}

func decodeNewConnectionID(b []byte) (Frame, int, error) {
	seq, n1, err := varint.Decode(b)
	if err != nil {
		return nil, 0, err
	}
	retire, n2, err := varint.Decode(b[n1:])
	if err != nil {
		return nil, 0, err
	}
	off := n1 + n2
	if off >= len(b) {
		return nil, 0, errDecodeTruncated("new_connection_id")
	}
	cidLen := int(b[off])
	off++
	if len(b)-off < cidLen+StatelessResetTokenLen {
		return nil, 0, errDecodeTruncated("new_connection_id")
	}
	cid := make([]byte, cidLen)
	copy(cid, b[off:off+cidLen])
	off += cidLen

	var token [StatelessResetTokenLen]byte
	copy(token[:], b[off:off+StatelessResetTokenLen])
	off += StatelessResetTokenLen

	return NewConnectionID{Sequence: seq, RetirePriorTo: retire, ConnectionID: cid, ResetToken: token}, off, nil
}

// RetireConnectionID asks the peer to stop using a connection id.
type RetireConnectionID struct{ Sequence uint64 }

func (f RetireConnectionID) Tag() byte { return byte(TagRetireConnectionID) }
func (f RetireConnectionID) Len() int  { return oneVarint{TagRetireConnectionID, f.Sequence}.Len() }
func (f RetireConnectionID) Encode(dst []byte) []byte {
	return oneVarint{TagRetireConnectionID, f.Sequence}.Encode(dst)
}

func decodeRetireConnectionID(b []byte) (Frame, int, error) {
	f, n, err := decodeOneVarint(TagRetireConnectionID, b)
	return RetireConnectionID{Sequence: f.v}, n, err
}

// PathChallenge probes a path's validity; PathResponse must echo Data.
type PathChallenge struct{ Data [8]byte }

func (f PathChallenge) Tag() byte { return byte(TagPathChallenge) }
func (f PathChallenge) Len() int  { return 1 + 8 }
func (f PathChallenge) Encode(dst []byte) []byte {
	return append(append(dst, byte(TagPathChallenge)), f.Data[:]...)
}

func decodePathChallenge(b []byte) (Frame, int, error) {
	if len(b) < 8 {
		return nil, 0, errDecodeTruncated("path_challenge")
	}
	var d [8]byte
	copy(d[:], b[:8])
	return PathChallenge{Data: d}, 8, nil
}

type PathResponse struct{ Data [8]byte }

func (f PathResponse) Tag() byte { return byte(TagPathResponse) }
func (f PathResponse) Len() int  { return 1 + 8 }
func (f PathResponse) Encode(dst []byte) []byte {
	return append(append(dst, byte(TagPathResponse)), f.Data[:]...)
}

func decodePathResponse(b []byte) (Frame, int, error) {
	if len(b) < 8 {
		return nil, 0, errDecodeTruncated("path_response")
	}
	var d [8]byte
	copy(d[:], b[:8])
	return PathResponse{Data: d}, 8, nil
}

// ConnectionClose terminates the connection. App distinguishes the
// QUIC-layer (0x1c) and application-layer (0x1d) variants; only the
// QUIC-layer variant carries a Frame Type field, so FrameType is
// neither encoded nor decoded, and stays zero, when App is true.
type ConnectionClose struct {
	App         bool
	ErrorCode   uint64
	FrameType   uint64
	ReasonPhrase []byte
}

func (f ConnectionClose) tag() Tag {
	if f.App {
		return TagConnectionCloseApp
	}
	return TagConnectionCloseQUIC
}
func (f ConnectionClose) Tag() byte { return byte(f.tag()) }
func (f ConnectionClose) Len() int {
	n := 1 + varint.Len(f.ErrorCode)
	if !f.App {
		n += varint.Len(f.FrameType)
	}
	n += varint.Len(uint64(len(f.ReasonPhrase))) + len(f.ReasonPhrase)
	return n
}
func (f ConnectionClose) Encode(dst []byte) []byte {
	dst = append(dst, byte(f.tag()))
	dst = putVarint(dst, f.ErrorCode)
	if !f.App {
		dst = putVarint(dst, f.FrameType)
	}
	dst = putVarint(dst, uint64(len(f.ReasonPhrase)))
	return append(dst, f.ReasonPhrase...)
}

func decodeConnectionClose(tag byte, b []byte) (Frame, int, error) {
	app := Tag(tag) == TagConnectionCloseApp
	off := 0
	code, n, err := varint.Decode(b[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n

	var frameType uint64
	if !app {
		frameType, n, err = varint.Decode(b[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n
	}

	length, n, err := varint.Decode(b[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n

	if uint64(len(b)-off) < length {
		return nil, 0, errDecodeTruncated("connection_close")
	}
	reason := make([]byte, length)
	copy(reason, b[off:uint64(off)+length])
	off += int(length)

	return ConnectionClose{App: app, ErrorCode: code, FrameType: frameType, ReasonPhrase: reason}, off, nil
}
