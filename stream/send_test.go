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

package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendStreamBasicFlow(t *testing.T) {
	s := NewSendStream(0, 1<<20)
	require.NoError(t, s.Push([]byte("hello world")))
	s.Finish()

	f, ok, more := s.Poll(5)
	require.True(t, ok)
	assert.Equal(t, uint64(0), f.Offset)
	assert.Equal(t, "hello", string(f.Data))
	assert.False(t, f.Fin)
	assert.True(t, more)

	f, ok, more = s.Poll(100)
	require.True(t, ok)
	assert.Equal(t, uint64(5), f.Offset)
	assert.Equal(t, " world", string(f.Data))
	assert.True(t, f.Fin)
	assert.False(t, more)
	assert.Equal(t, SendDataSent, s.State())

	s.OnAck(0, 5)
	s.OnAck(5, 6)
	assert.Equal(t, SendDataRecvd, s.State())
}

func TestSendStreamRetransmitsLostRanges(t *testing.T) {
	s := NewSendStream(4, 1<<20)
	require.NoError(t, s.Push([]byte("0123456789")))

	f1, ok, _ := s.Poll(5)
	require.True(t, ok)
	assert.Equal(t, "01234", string(f1.Data))

	f2, ok, _ := s.Poll(5)
	require.True(t, ok)
	assert.Equal(t, "56789", string(f2.Data))

	// Second range is lost; the first is acked.
	s.OnAck(0, 5)
	s.OnLoss(5, 5)

	f3, ok, _ := s.Poll(100)
	require.True(t, ok)
	assert.Equal(t, uint64(5), f3.Offset)
	assert.Equal(t, "56789", string(f3.Data))
}

func TestSendStreamWindowBlocking(t *testing.T) {
	s := NewSendStream(8, 4)
	require.NoError(t, s.Push([]byte("abcdefgh")))

	f, ok, _ := s.Poll(100)
	require.True(t, ok)
	assert.Equal(t, "abcd", string(f.Data))

	assert.True(t, s.IsBlocked())
	blocked, has := s.PendingBlockedFrame()
	require.True(t, has)
	assert.Equal(t, uint64(4), blocked.Limit)

	// A second call before the window grows must not re-advertise.
	_, has = s.PendingBlockedFrame()
	assert.False(t, has)

	s.SetPeerMaxStreamData(8)
	f, ok, _ = s.Poll(100)
	require.True(t, ok)
	assert.Equal(t, "efgh", string(f.Data))
}

func TestSendStreamReset(t *testing.T) {
	s := NewSendStream(12, 1<<20)
	require.NoError(t, s.Push([]byte("abc")))
	rst := s.Reset(42)
	assert.Equal(t, uint64(3), rst.FinalSize)
	assert.Equal(t, SendResetSent, s.State())

	require.Error(t, s.Push([]byte("more")))

	s.OnResetAcked()
	assert.Equal(t, SendResetRecvd, s.State())
}

func TestSendStreamOnLossClipsAlreadyAckedBytes(t *testing.T) {
	s := NewSendStream(16, 1<<20)
	require.NoError(t, s.Push([]byte("0123456789")))

	_, ok, _ := s.Poll(10)
	require.True(t, ok)

	s.OnAck(0, 4) // "0123" acked
	s.OnLoss(0, 10)

	f, ok, _ := s.Poll(100)
	require.True(t, ok)
	assert.Equal(t, uint64(4), f.Offset)
	assert.Equal(t, "456789", string(f.Data))
}
