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

// Package varint implements the QUIC variable-length integer encoding
// from RFC 9000 section 16: a 62-bit value packed into 1, 2, 4 or 8
// bytes, with the two most significant bits of the first byte carrying
// log2 of the encoded length.
package varint

import "github.com/quicd/quicd/errkind"

// MaxValue is the largest value representable in the 8-byte form (2^62-1).
const MaxValue uint64 = (1 << 62) - 1

// VarInt is a decoded QUIC variable-length integer.
type VarInt uint64

type entry struct {
	tag        byte
	len        int
	usableBits uint
	max        uint64
}

// table mirrors RFC 9000 Table 4, largest usable range first so Len can
// pick the smallest encoding with a single linear scan.
var table = [4]entry{
	{tag: 0b11, len: 8, usableBits: 62, max: MaxValue},
	{tag: 0b10, len: 4, usableBits: 30, max: 1073741823},
	{tag: 0b01, len: 2, usableBits: 14, max: 16383},
	{tag: 0b00, len: 1, usableBits: 6, max: 63},
}

// Len returns the minimal encoded length, in bytes, for v.
func Len(v uint64) int {
	for i := len(table) - 1; i >= 0; i-- {
		if v <= table[i].max {
			return table[i].len
		}
	}
	return 8
}

// Encode appends the minimal-length encoding of v to dst and returns the
// extended slice. Returns an error if v exceeds MaxValue.
func Encode(dst []byte, v uint64) ([]byte, error) {
	if v > MaxValue {
		return nil, errkind.EncodeError("varint: value %d exceeds max varint value", v)
	}
	n := Len(v)
	return encodeLen(dst, v, n)
}

// EncodeLen appends v encoded in exactly n bytes (n must be 1, 2, 4 or 8
// and large enough to hold v). This is the length-specific fast path
// mentioned in spec.md section 4.A: its wire output is identical to
// Encode's for the same value and length.
func EncodeLen(dst []byte, v uint64, n int) ([]byte, error) {
	if Len(v) > n {
		return nil, errkind.EncodeError("varint: %d does not fit in %d bytes", v, n)
	}
	return encodeLen(dst, v, n)
}

func encodeLen(dst []byte, v uint64, n int) ([]byte, error) {
	var e entry
	for _, c := range table {
		if c.len == n {
			e = c
			break
		}
	}
	if e.len == 0 {
		return nil, errkind.EncodeError("varint: invalid encoded length %d", n)
	}

	start := len(dst)
	for i := 0; i < n; i++ {
		dst = append(dst, 0)
	}
	buf := dst[start:]
	for i := n - 1; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	buf[0] |= e.tag << 6
	return dst, nil
}

// Decode reads a varint from the front of b, returning the value, the
// number of bytes consumed, and an error if b is too short.
func Decode(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, errkind.DecryptError("varint: empty input")
	}

	tag := b[0] >> 6
	var e entry
	for _, c := range table {
		if c.tag == tag {
			e = c
			break
		}
	}
	if len(b) < e.len {
		return 0, 0, errkind.DecryptError("varint: truncated input, need %d bytes have %d", e.len, len(b))
	}

	v := uint64(b[0]) &^ (0b11 << 6)
	for i := 1; i < e.len; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v, e.len, nil
}
