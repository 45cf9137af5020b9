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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"testing"

	"github.com/quicd/quicd/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProtection(t *testing.T) *Protection {
	t.Helper()
	key := make([]byte, 16)
	hpKey := make([]byte, 16)
	iv := make([]byte, 12)
	_, _ = rand.Read(key)
	_, _ = rand.Read(hpKey)
	_, _ = rand.Read(iv)

	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	aead, err := cipher.NewGCM(block)
	require.NoError(t, err)
	hpBlock, err := aes.NewCipher(hpKey)
	require.NoError(t, err)

	return &Protection{AEAD: aead, HP: hpBlock, IV: iv}
}

func TestLongHeaderPrefixRoundTrip(t *testing.T) {
	h := LongHeader{
		Type:    TypeInitial,
		Version: Version1,
		DestCID: []byte{1, 2, 3, 4},
		SrcCID:  []byte{5, 6, 7, 8},
		Token:   []byte{9, 9},
	}
	encoded := EncodeLongHeaderPrefix(nil, h, 2)

	decoded, offset, err := DecodeLongHeaderPrefix(encoded)
	require.NoError(t, err)
	assert.Equal(t, TypeInitial, decoded.Type)
	assert.Equal(t, Version1, decoded.Version)
	assert.Equal(t, h.DestCID, decoded.DestCID)
	assert.Equal(t, h.SrcCID, decoded.SrcCID)
	assert.Equal(t, h.Token, decoded.Token)
	assert.Equal(t, len(encoded), offset)
}

func TestBuildAndProtectLongHeaderPacket(t *testing.T) {
	prot := newTestProtection(t)
	h := LongHeader{
		Type:    TypeInitial,
		Version: Version1,
		DestCID: []byte{1, 2, 3, 4, 5, 6, 7, 8},
		SrcCID:  []byte{1, 2, 3, 4},
	}

	built, err := BuildLongHeaderPacket(h, 7, 0, []frame.Frame{frame.Ping{}}, prot, 1200)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), built.Number)
	assert.True(t, built.AckEliciting)
	assert.NotEmpty(t, built.Packet)

	// First byte's packet-number-length bits are now protected (masked);
	// decoding the prefix again still recovers the same connection IDs
	// since destination/source CIDs sit outside the protected region.
	decoded, _, err := DecodeLongHeaderPrefix(built.Packet)
	require.NoError(t, err)
	assert.Equal(t, h.DestCID, decoded.DestCID)
}

func TestShortHeaderPrefixRoundTrip(t *testing.T) {
	cid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	h := ShortHeader{DestCID: cid, KeyPhase: true}
	encoded := EncodeShortHeaderPrefix(nil, h, 1)
	decoded, offset, err := DecodeShortHeaderPrefix(encoded, len(cid))
	require.NoError(t, err)
	assert.Equal(t, cid, decoded.DestCID)
	assert.True(t, decoded.KeyPhase)
	assert.Equal(t, 1+len(cid), offset)
}

func TestBuildShortHeaderPacketSealsAndProtects(t *testing.T) {
	prot := newTestProtection(t)
	h := ShortHeader{DestCID: []byte{1, 2, 3, 4, 5, 6, 7, 8}}

	built, err := BuildShortHeaderPacket(h, 42, 40, []frame.Frame{frame.Ping{}}, prot, 1200)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), built.Number)
	assert.Greater(t, built.Size, len(h.DestCID))
}
