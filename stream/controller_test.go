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

	"github.com/quicd/quicd/streamid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerOpenLocalUnderLimit(t *testing.T) {
	c := NewController(streamid.Client, 2, 2, 2, 2)

	id1, err := c.OpenLocal(streamid.Bidi)
	require.NoError(t, err)
	id2, err := c.OpenLocal(streamid.Bidi)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	_, err = c.OpenLocal(streamid.Bidi)
	require.Error(t, err)
	assert.True(t, c.IsLocalBlocked(streamid.Bidi))

	blocked, has := c.PendingStreamsBlocked(streamid.Bidi)
	require.True(t, has)
	assert.Equal(t, uint64(2), blocked.Limit)

	c.SetPeerMaxStreams(streamid.Bidi, 4)
	id3, err := c.OpenLocal(streamid.Bidi)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), id3.Index())
}

func TestControllerAdmitRemoteRejectsWrongInitiator(t *testing.T) {
	c := NewController(streamid.Client, 10, 10, 10, 10)
	selfOpened := streamid.New(streamid.Client, streamid.Bidi, 0)
	err := c.AdmitRemote(selfOpened)
	require.Error(t, err)
}

func TestControllerAdmitRemoteEnforcesLimit(t *testing.T) {
	c := NewController(streamid.Client, 10, 10, 1, 10)
	within := streamid.New(streamid.Server, streamid.Bidi, 0)
	require.NoError(t, c.AdmitRemote(within))

	beyond := streamid.New(streamid.Server, streamid.Bidi, 1)
	require.Error(t, c.AdmitRemote(beyond))
}

func TestControllerMaxStreamsRefresh(t *testing.T) {
	c := NewController(streamid.Client, 10, 10, 4, 10)
	for i := uint64(0); i < 2; i++ {
		require.NoError(t, c.AdmitRemote(streamid.New(streamid.Server, streamid.Bidi, i)))
	}

	f, raise := c.MaybeMaxStreams(streamid.Bidi)
	require.True(t, raise)
	assert.Equal(t, uint64(8), f.Maximum)
	assert.True(t, f.Bidi)

	_, raise = c.MaybeMaxStreams(streamid.Bidi)
	assert.False(t, raise)
}
