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

type oneVarint struct {
	tag Tag
	v   uint64
}

func (f oneVarint) Tag() byte { return byte(f.tag) }
func (f oneVarint) Len() int  { return 1 + varint.Len(f.v) }
func (f oneVarint) Encode(dst []byte) []byte {
	dst = append(dst, byte(f.tag))
	return putVarint(dst, f.v)
}

func decodeOneVarint(tag Tag, b []byte) (oneVarint, int, error) {
	v, n, err := varint.Decode(b)
	if err != nil {
		return oneVarint{}, 0, err
	}
	return oneVarint{tag: tag, v: v}, n, nil
}

// MaxData raises the connection-level flow-control limit.
type MaxData struct{ Maximum uint64 }

func (f MaxData) Tag() byte                { return byte(TagMaxData) }
func (f MaxData) Len() int                 { return oneVarint{TagMaxData, f.Maximum}.Len() }
func (f MaxData) Encode(dst []byte) []byte { return oneVarint{TagMaxData, f.Maximum}.Encode(dst) }

func decodeMaxData(b []byte) (Frame, int, error) {
	f, n, err := decodeOneVarint(TagMaxData, b)
	return MaxData{Maximum: f.v}, n, err
}

// DataBlocked signals the sender is connection-flow-control blocked.
type DataBlocked struct{ Limit uint64 }

func (f DataBlocked) Tag() byte { return byte(TagDataBlocked) }
func (f DataBlocked) Len() int  { return oneVarint{TagDataBlocked, f.Limit}.Len() }
func (f DataBlocked) Encode(dst []byte) []byte {
	return oneVarint{TagDataBlocked, f.Limit}.Encode(dst)
}

func decodeDataBlocked(b []byte) (Frame, int, error) {
	f, n, err := decodeOneVarint(TagDataBlocked, b)
	return DataBlocked{Limit: f.v}, n, err
}

// MaxStreamData raises the per-stream flow-control limit.
type MaxStreamData struct {
	StreamID uint64
	Maximum  uint64
}

func (f MaxStreamData) Tag() byte { return byte(TagMaxStreamData) }
func (f MaxStreamData) Len() int {
	return 1 + varint.Len(f.StreamID) + varint.Len(f.Maximum)
}
func (f MaxStreamData) Encode(dst []byte) []byte {
	dst = append(dst, byte(TagMaxStreamData))
	dst = putVarint(dst, f.StreamID)
	return putVarint(dst, f.Maximum)
}

func decodeMaxStreamData(b []byte) (Frame, int, error) {
	id, n1, err := varint.Decode(b)
	if err != nil {
		return nil, 0, err
	}
	max, n2, err := varint.Decode(b[n1:])
	if err != nil {
		return nil, 0, err
	}
	return MaxStreamData{StreamID: id, Maximum: max}, n1 + n2, nil
}

// StreamDataBlocked signals a stream is flow-control blocked.
type StreamDataBlocked struct {
	StreamID uint64
	Limit    uint64
}

func (f StreamDataBlocked) Tag() byte { return byte(TagStreamDataBlocked) }
func (f StreamDataBlocked) Len() int {
	return 1 + varint.Len(f.StreamID) + varint.Len(f.Limit)
}
func (f StreamDataBlocked) Encode(dst []byte) []byte {
	dst = append(dst, byte(TagStreamDataBlocked))
	dst = putVarint(dst, f.StreamID)
	return putVarint(dst, f.Limit)
}

func decodeStreamDataBlocked(b []byte) (Frame, int, error) {
	id, n1, err := varint.Decode(b)
	if err != nil {
		return nil, 0, err
	}
	limit, n2, err := varint.Decode(b[n1:])
	if err != nil {
		return nil, 0, err
	}
	return StreamDataBlocked{StreamID: id, Limit: limit}, n1 + n2, nil
}

// MaxStreams raises the number of streams of one type the peer may open.
type MaxStreams struct {
	Bidi    bool
	Maximum uint64
}

func (f MaxStreams) tag() Tag {
	if f.Bidi {
		return TagMaxStreamsBidi
	}
	return TagMaxStreamsUni
}
func (f MaxStreams) Tag() byte { return byte(f.tag()) }
func (f MaxStreams) Len() int  { return oneVarint{f.tag(), f.Maximum}.Len() }
func (f MaxStreams) Encode(dst []byte) []byte {
	return oneVarint{f.tag(), f.Maximum}.Encode(dst)
}

func decodeMaxStreams(tag byte, b []byte) (Frame, int, error) {
	v, n, err := varint.Decode(b)
	if err != nil {
		return nil, 0, err
	}
	return MaxStreams{Bidi: Tag(tag) == TagMaxStreamsBidi, Maximum: v}, n, nil
}

// StreamsBlocked signals the sender is stream-limit blocked.
type StreamsBlocked struct {
	Bidi  bool
	Limit uint64
}

func (f StreamsBlocked) tag() Tag {
	if f.Bidi {
		return TagStreamsBlockedBidi
	}
	return TagStreamsBlockedUni
}
func (f StreamsBlocked) Tag() byte { return byte(f.tag()) }
func (f StreamsBlocked) Len() int  { return oneVarint{f.tag(), f.Limit}.Len() }
func (f StreamsBlocked) Encode(dst []byte) []byte {
	return oneVarint{f.tag(), f.Limit}.Encode(dst)
}

func decodeStreamsBlocked(tag byte, b []byte) (Frame, int, error) {
	v, n, err := varint.Decode(b)
	if err != nil {
		return nil, 0, err
	}
	return StreamsBlocked{Bidi: Tag(tag) == TagStreamsBlockedBidi, Limit: v}, n, nil
}

// ResetStream aborts the send side of a stream.
type ResetStream struct {
	StreamID  uint64
	ErrorCode uint64
	FinalSize uint64
}

func (f ResetStream) Tag() byte { return byte(TagResetStream) }
func (f ResetStream) Len() int {
	return 1 + varint.Len(f.StreamID) + varint.Len(f.ErrorCode) + varint.Len(f.FinalSize)
}
func (f ResetStream) Encode(dst []byte) []byte {
	dst = append(dst, byte(TagResetStream))
	dst = putVarint(dst, f.StreamID)
	dst = putVarint(dst, f.ErrorCode)
	return putVarint(dst, f.FinalSize)
}

func decodeResetStream(b []byte) (Frame, int, error) {
	id, n1, err := varint.Decode(b)
	if err != nil {
		return nil, 0, err
	}
	code, n2, err := varint.Decode(b[n1:])
	if err != nil {
		return nil, 0, err
	}
	final, n3, err := varint.Decode(b[n1+n2:])
	if err != nil {
		return nil, 0, err
	}
	return ResetStream{StreamID: id, ErrorCode: code, FinalSize: final}, n1 + n2 + n3, nil
}

// StopSending asks the peer to abort the send side of a stream.
type StopSending struct {
	StreamID  uint64
	ErrorCode uint64
}

func (f StopSending) Tag() byte { return byte(TagStopSending) }
func (f StopSending) Len() int  { return 1 + varint.Len(f.StreamID) + varint.Len(f.ErrorCode) }
func (f StopSending) Encode(dst []byte) []byte {
	dst = append(dst, byte(TagStopSending))
	dst = putVarint(dst, f.StreamID)
	return putVarint(dst, f.ErrorCode)
}

func decodeStopSending(b []byte) (Frame, int, error) {
	id, n1, err := varint.Decode(b)
	if err != nil {
		return nil, 0, err
	}
	code, n2, err := varint.Decode(b[n1:])
	if err != nil {
		return nil, 0, err
	}
	return StopSending{StreamID: id, ErrorCode: code}, n1 + n2, nil
}
