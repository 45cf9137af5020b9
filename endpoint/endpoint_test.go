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

package endpoint

import (
	"errors"
	"testing"
	"time"

	"github.com/quicd/quicd/subscriber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerHandshakeReachesConfirmedAfterAck(t *testing.T) {
	e := New(SideServer, nil, 25*time.Millisecond)
	assert.Equal(t, HandshakeInProgress, e.Status)

	e.OnHandshakeComplete()
	assert.Equal(t, ServerCompletePending, e.Status)
	assert.True(t, e.PendingHandshakeDone())
	assert.False(t, e.PendingHandshakeDone()) // consumed

	e.OnHandshakeDoneAcked()
	assert.Equal(t, Confirmed, e.Status)
}

func TestClientHandshakeReachesConfirmedOnHandshakeDone(t *testing.T) {
	e := New(SideClient, nil, 25*time.Millisecond)
	e.OnHandshakeComplete()
	assert.Equal(t, ClientComplete, e.Status)

	e.OnHandshakeDoneReceived()
	assert.Equal(t, Confirmed, e.Status)
}

func TestInstallHandshakeKeysDiscardsInitial(t *testing.T) {
	e := New(SideClient, nil, 25*time.Millisecond)
	require.True(t, e.HasInitialKeys())
	require.NotNil(t, e.Initial)

	e.InstallHandshakeKeys()
	assert.False(t, e.HasInitialKeys())
	assert.Nil(t, e.Initial)
	assert.True(t, e.HasHandshakeKeys())
}

func TestStatelessResetTokenRecognition(t *testing.T) {
	e := New(SideClient, nil, 25*time.Millisecond)
	var token [16]byte
	copy(token[:], []byte("0123456789abcdef"))
	e.RegisterStatelessResetToken(token)
	assert.True(t, e.IsStatelessReset(token))

	var other [16]byte
	assert.False(t, e.IsStatelessReset(other))
}

func TestCloseAggregatesCauses(t *testing.T) {
	broker := subscriber.NewBroker()
	e := New(SideClient, broker, 25*time.Millisecond)
	err := e.Close(errors.New("stream reset"), nil, errors.New("path invalidated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream reset")
	assert.Contains(t, err.Error(), "path invalidated")
}
