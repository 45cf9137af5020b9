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

import (
	"github.com/quicd/quicd/errkind"
	"github.com/quicd/quicd/varint"
)

// Padding is a run of n zero bytes; the packet codec repeats it to
// reach a minimum datagram size, not per-frame.
type Padding struct{ N int }

func (p Padding) Tag() byte { return byte(TagPadding) }
func (p Padding) Len() int  { return p.N }
func (p Padding) Encode(dst []byte) []byte {
	for i := 0; i < p.N; i++ {
		dst = append(dst, 0)
	}
	return dst
}

func decodePadding(b []byte) (Frame, int, error) {
	n := 1
	for n-1 < len(b) && b[n-1] == 0 {
		n++
	}
	return Padding{N: n}, n, nil
}

// Ping carries no payload; its only purpose is to be ack-eliciting.
type Ping struct{}

func (Ping) Tag() byte             { return byte(TagPing) }
func (Ping) Len() int              { return 1 }
func (Ping) Encode(dst []byte) []byte { return append(dst, byte(TagPing)) }

// HandshakeDone signals the server has confirmed the handshake; only
// ever sent by a server, and unconditional at the recovery level (no
// congestion gate), per spec.md section 4.K.
type HandshakeDone struct{}

func (HandshakeDone) Tag() byte                { return byte(TagHandshakeDone) }
func (HandshakeDone) Len() int                 { return 1 }
func (HandshakeDone) Encode(dst []byte) []byte { return append(dst, byte(TagHandshakeDone)) }

// Crypto carries TLS handshake bytes at a given offset.
type Crypto struct {
	Offset uint64
	Data   []byte
}

func (c Crypto) Tag() byte { return byte(TagCrypto) }
func (c Crypto) Len() int {
	return 1 + varint.Len(c.Offset) + varint.Len(uint64(len(c.Data))) + len(c.Data)
}
func (c Crypto) Encode(dst []byte) []byte {
	dst = append(dst, byte(TagCrypto))
	dst = putVarint(dst, c.Offset)
	dst = putVarint(dst, uint64(len(c.Data)))
	return append(dst, c.Data...)
}

func decodeCrypto(b []byte) (Frame, int, error) {
	offset, n1, err := varint.Decode(b)
	if err != nil {
		return nil, 0, err
	}
	length, n2, err := varint.Decode(b[n1:])
	if err != nil {
		return nil, 0, err
	}
	start := n1 + n2
	if uint64(len(b)-start) < length {
		return nil, 0, errDecodeTruncated("crypto")
	}
	data := make([]byte, length)
	copy(data, b[start:uint64(start)+length])
	return Crypto{Offset: offset, Data: data}, start + int(length), nil
}

// NewToken carries an address-validation token for future connections.
type NewToken struct{ Token []byte }

func (f NewToken) Tag() byte { return byte(TagNewToken) }
func (f NewToken) Len() int  { return 1 + varint.Len(uint64(len(f.Token))) + len(f.Token) }
func (f NewToken) Encode(dst []byte) []byte {
	dst = append(dst, byte(TagNewToken))
	dst = putVarint(dst, uint64(len(f.Token)))
	return append(dst, f.Token...)
}

func decodeNewToken(b []byte) (Frame, int, error) {
	length, n, err := varint.Decode(b)
	if err != nil {
		return nil, 0, err
	}
	if uint64(len(b)-n) < length {
		return nil, 0, errDecodeTruncated("new_token")
	}
	token := make([]byte, length)
	copy(token, b[n:uint64(n)+length])
	return NewToken{Token: token}, n + int(length), nil
}

func errDecodeTruncated(name string) error {
	return errkind.FrameEncodingError("frame: truncated %s", name)
}
