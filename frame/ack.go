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

// AckRange is one gap-delimited ACK range, encoded relative to its
// predecessor as (gap, ackRangeLen) pairs per RFC 9000 section 19.3.
type AckRange struct {
	Gap    uint64
	Length uint64
}

// EcnCounts carries the three ECN codepoint counters, present only on
// an ACK_ECN frame.
type EcnCounts struct {
	ECT0, ECT1, ECNCE uint64
}

// Ack covers one or more disjoint packet-number ranges, largest first.
// Ranges MUST be written with the largest first (spec.md section 5).
type Ack struct {
	LargestAcked uint64
	Delay        uint64
	FirstRange   uint64 // length of the range containing LargestAcked, minus 1
	Ranges       []AckRange
	ECN          *EcnCounts
}

func (a Ack) Tag() byte {
	if a.ECN != nil {
		return byte(TagACKECN)
	}
	return byte(TagACK)
}

func (a Ack) Len() int {
	n := 1 + varint.Len(a.LargestAcked) + varint.Len(a.Delay) +
		varint.Len(uint64(len(a.Ranges))) + varint.Len(a.FirstRange)
	for _, r := range a.Ranges {
		n += varint.Len(r.Gap) + varint.Len(r.Length)
	}
	if a.ECN != nil {
		n += varint.Len(a.ECN.ECT0) + varint.Len(a.ECN.ECT1) + varint.Len(a.ECN.ECNCE)
	}
	return n
}

func (a Ack) Encode(dst []byte) []byte {
	dst = append(dst, a.Tag())
	dst = putVarint(dst, a.LargestAcked)
	dst = putVarint(dst, a.Delay)
	dst = putVarint(dst, uint64(len(a.Ranges)))
	dst = putVarint(dst, a.FirstRange)
	for _, r := range a.Ranges {
		dst = putVarint(dst, r.Gap)
		dst = putVarint(dst, r.Length)
	}
	if a.ECN != nil {
		dst = putVarint(dst, a.ECN.ECT0)
		dst = putVarint(dst, a.ECN.ECT1)
		dst = putVarint(dst, a.ECN.ECNCE)
	}
	return dst
}

// Intervals expands the gap-encoded ranges into absolute inclusive
// [start, end] packet-number ranges, largest range first.
func (a Ack) Intervals() [][2]uint64 {
	out := make([][2]uint64, 0, len(a.Ranges)+1)
	high := a.LargestAcked
	low := high - a.FirstRange
	out = append(out, [2]uint64{low, high})

	for _, r := range a.Ranges {
		high = low - r.Gap - 2
		low = high - r.Length
		out = append(out, [2]uint64{low, high})
	}
	return out
}

func decodeAck(tag byte, b []byte) (Frame, int, error) {
	off := 0
	largest, n, err := varint.Decode(b[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n

	delay, n, err := varint.Decode(b[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n

	count, n, err := varint.Decode(b[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n

	first, n, err := varint.Decode(b[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n

	var ranges []AckRange
	if count > 0 {
		ranges = make([]AckRange, 0, count)
	}
	for i := uint64(0); i < count; i++ {
		gap, n, err := varint.Decode(b[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n

		length, n, err := varint.Decode(b[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n

		ranges = append(ranges, AckRange{Gap: gap, Length: length})
	}

	a := Ack{LargestAcked: largest, Delay: delay, FirstRange: first, Ranges: ranges}
	if Tag(tag) == TagACKECN {
		ect0, n, err := varint.Decode(b[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n
		ect1, n, err := varint.Decode(b[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n
		ce, n, err := varint.Decode(b[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n
		a.ECN = &EcnCounts{ECT0: ect0, ECT1: ect1, ECNCE: ce}
	}
	return a, off, nil
}
