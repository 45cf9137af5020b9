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

package varint

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeTable(t *testing.T) {
	cases := []struct {
		v   uint64
		len int
	}{
		{0, 1},
		{63, 1},
		{64, 2},
		{16383, 2},
		{16384, 4},
		{1073741823, 4},
		{1073741824, 8},
		{MaxValue, 8},
	}

	for _, c := range cases {
		n := Len(c.v)
		assert.Equal(t, c.len, n, "len(%d)", c.v)

		buf, err := Encode(nil, c.v)
		require.NoError(t, err)
		assert.Len(t, buf, c.len)

		got, consumed, err := Decode(buf)
		require.NoError(t, err)
		assert.Equal(t, c.v, got)
		assert.Equal(t, c.len, consumed)
	}
}

func TestEncodeRejectsOverflow(t *testing.T) {
	_, err := Encode(nil, MaxValue+1)
	assert.Error(t, err)
}

func TestEncodeLenFastPathMatchesGeneral(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		v := uint64(rng.Int63n(int64(MaxValue)))
		n := Len(v)

		general, err := Encode(nil, v)
		require.NoError(t, err)

		fast, err := EncodeLen(nil, v, n)
		require.NoError(t, err)

		assert.Equal(t, general, fast, "value %d", v)
	}
}

func TestDecodeAcceptsNonMinimalForm(t *testing.T) {
	// 0 encoded in the 4-byte form must still decode to 0, even though a
	// minimal encoder would never produce it.
	buf, err := EncodeLen(nil, 0, 4)
	require.NoError(t, err)

	v, n, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)
	assert.Equal(t, 4, n)
}

func TestDecodeTruncated(t *testing.T) {
	buf, err := Encode(nil, 16384)
	require.NoError(t, err)

	_, _, err = Decode(buf[:2])
	assert.Error(t, err)
}

func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50000; i++ {
		v := uint64(rng.Int63n(int64(MaxValue) + 1))
		buf, err := Encode(nil, v)
		require.NoError(t, err)

		got, n, err := Decode(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, v, got)
	}
}

func TestEncodeAppendsToExistingBuffer(t *testing.T) {
	dst := []byte{0xff, 0xfe}
	buf, err := Encode(dst, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xfe, 10}, buf)
}
