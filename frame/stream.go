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

// stream frame low bits, per RFC 9000 section 19.8.
const (
	bitOff  = 0x04
	bitLen  = 0x02
	bitFin  = 0x01
)

// Stream carries application bytes for one stream. Off, HasLen and Fin
// mirror the three low bits of the tag byte; the encoder picks the
// smallest representation (omitting Offset when it is zero, omitting
// Length when the stream frame is the last one in the packet).
type Stream struct {
	ID     uint64
	Offset uint64
	Data   []byte
	Fin    bool
	// HasLen forces the explicit length field even when this is the
	// last frame in the packet; the packet builder sets this whenever
	// more frames will follow.
	HasLen bool
}

func (s Stream) Tag() byte {
	tag := byte(TagStreamBase)
	if s.Offset != 0 {
		tag |= bitOff
	}
	if s.HasLen {
		tag |= bitLen
	}
	if s.Fin {
		tag |= bitFin
	}
	return tag
}

func (s Stream) Len() int {
	n := 1 + varint.Len(s.ID)
	if s.Offset != 0 {
		n += varint.Len(s.Offset)
	}
	if s.HasLen {
		n += varint.Len(uint64(len(s.Data)))
	}
	return n + len(s.Data)
}

func (s Stream) Encode(dst []byte) []byte {
	dst = append(dst, s.Tag())
	dst = putVarint(dst, s.ID)
	if s.Offset != 0 {
		dst = putVarint(dst, s.Offset)
	}
	if s.HasLen {
		dst = putVarint(dst, uint64(len(s.Data)))
	}
	return append(dst, s.Data...)
}

func decodeStream(tag byte, b []byte) (Frame, int, error) {
	off := 0
	id, n, err := varint.Decode(b[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n

	var offset uint64
	if tag&bitOff != 0 {
		offset, n, err = varint.Decode(b[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n
	}

	var length uint64
	hasLen := tag&bitLen != 0
	if hasLen {
		length, n, err = varint.Decode(b[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n
	} else {
		length = uint64(len(b) - off)
	}

	if uint64(len(b)-off) < length {
		return nil, 0, errDecodeTruncated("stream")
	}
	data := make([]byte, length)
	copy(data, b[off:uint64(off)+length])
	off += int(length)

	return Stream{
		ID:     id,
		Offset: offset,
		Data:   data,
		Fin:    tag&bitFin != 0,
		HasLen: hasLen,
	}, off, nil
}
