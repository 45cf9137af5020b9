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

// Package packet implements QUIC packet protection and the long/short
// header codec (spec.md section 4.B): AEAD payload encryption keyed
// per packet number, and the separate header-protection mask applied
// over the first byte and the truncated packet number.
//
// There is no third-party QUIC or TLS crypto library in the reference
// corpus; packet and header protection are AEAD/block-cipher
// primitives with a single well-defined answer (RFC 9001 sections 5.3
// and 5.4), so this package is built directly on crypto/aes and
// crypto/cipher rather than inventing a dependency to wrap them.
package packet

import (
	"crypto/cipher"
	"encoding/binary"

	"github.com/quicd/quicd/errkind"
)

// SampleLength is the number of ciphertext bytes sampled to derive the
// header-protection mask (RFC 9001 section 5.4.2).
const SampleLength = 16

// Protection holds one direction's (read or write) packet- and
// header-protection keys for one encryption level.
type Protection struct {
	AEAD cipher.AEAD
	HP   cipher.Block
	// IV is XORed with the packet number to build the AEAD nonce.
	IV []byte
}

// nonce builds the per-packet AEAD nonce: the IV left-padded packet
// number XORed into its low-order bytes (RFC 9001 section 5.3).
func (p *Protection) nonce(packetNumber uint64) []byte {
	n := make([]byte, len(p.IV))
	copy(n, p.IV)
	var pnBytes [8]byte
	binary.BigEndian.PutUint64(pnBytes[:], packetNumber)
	for i := 0; i < 8; i++ {
		n[len(n)-8+i] ^= pnBytes[i]
	}
	return n
}

// Seal encrypts payload (RFC 9001 section 5.3), authenticating the
// packet header as associated data, and returns the ciphertext in a
// newly allocated slice of len(payload)+AEAD overhead bytes; payload
// itself is left unchanged.
func (p *Protection) Seal(header []byte, packetNumber uint64, payload []byte) []byte {
	return p.AEAD.Seal(nil, p.nonce(packetNumber), payload, header)
}

// Open authenticates and decrypts a sealed payload.
func (p *Protection) Open(header []byte, packetNumber uint64, ciphertext []byte) ([]byte, error) {
	pt, err := p.AEAD.Open(nil, p.nonce(packetNumber), ciphertext, header)
	if err != nil {
		return nil, errkind.DecryptError("packet %d: %v", packetNumber, err)
	}
	return pt, nil
}

// mask computes the 5-byte header-protection mask from a ciphertext
// sample, per RFC 9001 section 5.4.2: mask = cipher(hp_key, sample).
func (p *Protection) mask(sample []byte) [5]byte {
	if len(sample) < SampleLength {
		panic("packet: header protection sample shorter than block size")
	}
	var block [16]byte
	p.HP.Encrypt(block[:], sample[:SampleLength])
	var mask [5]byte
	copy(mask[:], block[:5])
	return mask
}

// ApplyHeaderProtection XORs the mask into pkt's first byte and
// truncated packet number in place. pnOffset is the byte offset of the
// packet number field within pkt; pnLength is its encoded length in
// bytes (1-4). longHeader selects which bits of the first byte are
// protected (RFC 9001 section 5.4.1).
func (p *Protection) ApplyHeaderProtection(pkt []byte, pnOffset, pnLength int, longHeader bool) error {
	sampleOffset := pnOffset + 4
	if sampleOffset+SampleLength > len(pkt) {
		return errkind.EncryptError("packet too short to sample for header protection")
	}
	mask := p.mask(pkt[sampleOffset : sampleOffset+SampleLength])

	if longHeader {
		pkt[0] ^= mask[0] & 0x0f
	} else {
		pkt[0] ^= mask[0] & 0x1f
	}
	for i := 0; i < pnLength; i++ {
		pkt[pnOffset+i] ^= mask[1+i]
	}
	return nil
}

// RemoveHeaderProtection reverses ApplyHeaderProtection. The caller
// must first peek pkt[0] to learn pnLength from the now-unprotected
// low bits before calling this with the correct pnLength.
func (p *Protection) RemoveHeaderProtection(pkt []byte, pnOffset, pnLength int, longHeader bool) error {
	return p.ApplyHeaderProtection(pkt, pnOffset, pnLength, longHeader)
}

// PeekPNLength decodes the protected first byte's low two bits into a
// packet-number length, after unmasking just the first byte (the
// packet number bytes are unmasked separately once the length is
// known, per RFC 9001 section 5.4.1's two-pass removal).
func (p *Protection) PeekPNLength(pkt []byte, pnOffset int, longHeader bool) (int, error) {
	sampleOffset := pnOffset + 4
	if sampleOffset+SampleLength > len(pkt) {
		return 0, errkind.DecryptError("packet too short to sample for header protection")
	}
	mask := p.mask(pkt[sampleOffset : sampleOffset+SampleLength])

	var firstByte byte
	if longHeader {
		firstByte = pkt[0] ^ (mask[0] & 0x0f)
	} else {
		firstByte = pkt[0] ^ (mask[0] & 0x1f)
	}
	return int(firstByte&0x03) + 1, nil
}
