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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, f Frame) Frame {
	t.Helper()
	buf := f.Encode(nil)
	assert.Len(t, buf, f.Len())

	got, n, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	return got
}

func TestRoundTripAllFrameTypes(t *testing.T) {
	cases := []Frame{
		Padding{N: 3},
		Ping{},
		HandshakeDone{},
		Crypto{Offset: 10, Data: []byte("hello")},
		NewToken{Token: []byte("tok")},
		Stream{ID: 4, Offset: 100, Data: []byte("testing"), Fin: true, HasLen: true},
		Stream{ID: 0, Data: []byte("no len, last frame")},
		MaxData{Maximum: 1000},
		DataBlocked{Limit: 1000},
		MaxStreamData{StreamID: 4, Maximum: 2000},
		StreamDataBlocked{StreamID: 4, Limit: 2000},
		MaxStreams{Bidi: true, Maximum: 10},
		MaxStreams{Bidi: false, Maximum: 10},
		StreamsBlocked{Bidi: true, Limit: 10},
		ResetStream{StreamID: 4, ErrorCode: 1, FinalSize: 500},
		StopSending{StreamID: 4, ErrorCode: 1},
		NewConnectionID{Sequence: 1, RetirePriorTo: 0, ConnectionID: []byte{1, 2, 3, 4}},
		RetireConnectionID{Sequence: 1},
		PathChallenge{Data: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}},
		PathResponse{Data: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}},
		ConnectionClose{App: false, ErrorCode: 1, FrameType: 2, ReasonPhrase: []byte("bye")},
		ConnectionClose{App: true, ErrorCode: 1, ReasonPhrase: []byte("bye")},
		Ack{LargestAcked: 100, Delay: 5, FirstRange: 10},
		Ack{LargestAcked: 100, Delay: 5, FirstRange: 10, Ranges: []AckRange{{Gap: 2, Length: 3}}},
		Ack{LargestAcked: 100, Delay: 5, FirstRange: 10, ECN: &EcnCounts{ECT0: 1, ECT1: 2, ECNCE: 3}},
	}

	for _, c := range cases {
		got := roundTrip(t, c)
		assert.Equal(t, c, got)
	}
}

func TestAckIntervalsOrdering(t *testing.T) {
	a := Ack{
		LargestAcked: 100,
		FirstRange:   9, // covers [91,100]
		Ranges: []AckRange{
			{Gap: 3, Length: 4}, // next high = 91-3-2=86, low=86-4=82 -> [82,86]
		},
	}
	intervals := a.Intervals()
	assert.Equal(t, [][2]uint64{{91, 100}, {82, 86}}, intervals)
}

func TestUnknownExtensionTagRejectedByDefault(t *testing.T) {
	_, _, err := Decode([]byte{0x40})
	assert.Error(t, err)
}

func TestRegisteredExtensionHandled(t *testing.T) {
	RegisterExtension(0x41, func(tag byte, b []byte) (Frame, int, error) {
		return Ping{}, 0, nil
	})
	f, n, err := Decode([]byte{0x41})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, Ping{}, f)
}

func TestIsAckEliciting(t *testing.T) {
	assert.False(t, IsAckEliciting(byte(TagPadding)))
	assert.False(t, IsAckEliciting(byte(TagACK)))
	assert.False(t, IsAckEliciting(byte(TagConnectionCloseQUIC)))
	assert.True(t, IsAckEliciting(byte(TagPing)))
	assert.True(t, IsAckEliciting(byte(TagStreamBase)))
}
