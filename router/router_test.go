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

package router

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"net/netip"
	"testing"

	"github.com/quicd/quicd/common"
	"github.com/quicd/quicd/dcmap"
	"github.com/quicd/quicd/frame"
	"github.com/quicd/quicd/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTuple() common.Tuple {
	return common.Tuple{
		Local:  netip.MustParseAddrPort("127.0.0.1:4433"),
		Remote: netip.MustParseAddrPort("127.0.0.1:9001"),
	}
}

func testProtection(t *testing.T) *packet.Protection {
	t.Helper()
	key, hpKey, iv := make([]byte, 16), make([]byte, 16), make([]byte, 12)
	_, _ = rand.Read(key)
	_, _ = rand.Read(hpKey)
	_, _ = rand.Read(iv)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	aead, err := cipher.NewGCM(block)
	require.NoError(t, err)
	hpBlock, err := aes.NewCipher(hpKey)
	require.NoError(t, err)
	return &packet.Protection{AEAD: aead, HP: hpBlock, IV: iv}
}

type recordingHandler struct {
	longCalls  int
	shortCalls int
	lastLong   packet.LongHeader
}

func (h *recordingHandler) HandleLongHeader(_ common.Tuple, lh packet.LongHeader, _ []byte) {
	h.longCalls++
	h.lastLong = lh
}

func (h *recordingHandler) HandleShortHeader(_ common.Tuple, _ packet.ShortHeader, _ []byte) {
	h.shortCalls++
}

type recordingSink struct {
	resets     []([16]byte)
	candidates int
	unknown    []dcmap.Id
}

func (s *recordingSink) StatelessReset(_ common.Tuple, token [16]byte) {
	s.resets = append(s.resets, token)
}

func (s *recordingSink) SecretControlCandidate(_ common.Tuple, _ *dcmap.Entry, _ []byte) {
	s.candidates++
}

func (s *recordingSink) UnknownPathSecret(_ common.Tuple, tag dcmap.Id) {
	s.unknown = append(s.unknown, tag)
}

func TestDispatchLongHeaderRoutesToRegisteredHandler(t *testing.T) {
	prot := testProtection(t)
	cid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	built, err := packet.BuildLongHeaderPacket(
		packet.LongHeader{Type: packet.TypeInitial, Version: packet.Version1, DestCID: cid, SrcCID: []byte{9, 9}},
		1, 0, []frame.Frame{frame.Ping{}}, prot, 1200)
	require.NoError(t, err)

	h := &recordingHandler{}
	r := New(8, 16, nil, nil)
	r.Register(cid, h)

	r.Dispatch(testTuple(), built.Packet)
	assert.Equal(t, 1, h.longCalls)
	assert.Equal(t, cid, h.lastLong.DestCID)
}

func TestDispatchCoalescesMultipleLongHeaderPackets(t *testing.T) {
	prot := testProtection(t)
	cid := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	first, err := packet.BuildLongHeaderPacket(
		packet.LongHeader{Type: packet.TypeInitial, Version: packet.Version1, DestCID: cid, SrcCID: []byte{9}},
		1, 0, []frame.Frame{frame.Ping{}}, prot, 1200)
	require.NoError(t, err)
	second, err := packet.BuildLongHeaderPacket(
		packet.LongHeader{Type: packet.TypeHandshake, Version: packet.Version1, DestCID: cid, SrcCID: []byte{9}},
		2, 0, []frame.Frame{frame.Ping{}}, prot, 1200)
	require.NoError(t, err)

	datagram := append(append([]byte{}, first.Packet...), second.Packet...)

	h := &recordingHandler{}
	r := New(8, 16, nil, nil)
	r.Register(cid, h)

	r.Dispatch(testTuple(), datagram)
	assert.Equal(t, 2, h.longCalls)
}

func TestDispatchShortHeaderRoutesToRegisteredHandler(t *testing.T) {
	prot := testProtection(t)
	cid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	built, err := packet.BuildShortHeaderPacket(
		packet.ShortHeader{DestCID: cid}, 5, 0, []frame.Frame{frame.Ping{}}, prot, 1200)
	require.NoError(t, err)

	h := &recordingHandler{}
	r := New(len(cid), 16, nil, nil)
	r.Register(cid, h)

	r.Dispatch(testTuple(), built.Packet)
	assert.Equal(t, 1, h.shortCalls)
}

func TestDispatchRecognizesStatelessReset(t *testing.T) {
	var token [16]byte
	_, _ = rand.Read(token[:])

	datagram := make([]byte, 40)
	_, _ = rand.Read(datagram)
	datagram[0] &= 0x7f // short header
	copy(datagram[len(datagram)-16:], token[:])

	sink := &recordingSink{}
	r := New(8, 16, nil, sink)
	r.RegisterResetToken(token)

	r.Dispatch(testTuple(), datagram)
	require.Len(t, sink.resets, 1)
	assert.Equal(t, token, sink.resets[0])
}

func TestDispatchRoutesUnknownShortHeaderTagToDCMap(t *testing.T) {
	dc := dcmap.New(4, 3600, 4, nil)
	var id dcmap.Id
	_, _ = rand.Read(id[:])
	dc.Insert(id, []byte("secret"), "127.0.0.1:9001", 1, nil)

	datagram := make([]byte, 1+16+8)
	datagram[0] &= 0x7f
	copy(datagram[1:17], id[:])

	sink := &recordingSink{}
	r := New(16, 16, dc, sink)

	r.Dispatch(testTuple(), datagram)
	assert.Equal(t, 1, sink.candidates)
	assert.Empty(t, sink.unknown)
}

func TestDispatchReportsUnknownPathSecret(t *testing.T) {
	datagram := make([]byte, 1+16+8)
	datagram[0] &= 0x7f
	_, _ = rand.Read(datagram[1:17])

	dc := dcmap.New(4, 3600, 4, nil)
	sink := &recordingSink{}
	r := New(16, 16, dc, sink)

	r.Dispatch(testTuple(), datagram)
	assert.Equal(t, 0, sink.candidates)
	assert.Len(t, sink.unknown, 1)
}
