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

package ioring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAcquireReleaseInOrder(t *testing.T) {
	r := New[int](4)
	require.True(t, r.TryPublish(1))
	require.True(t, r.TryPublish(2))

	v, ok, err := r.Acquire()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, v)
	r.Release()

	v, ok, err = r.Acquire()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, v)
	r.Release()

	_, ok, err = r.Acquire()
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestRingRejectsPublishWhenFull(t *testing.T) {
	r := New[int](2)
	assert.True(t, r.TryPublish(1))
	assert.True(t, r.TryPublish(2))
	assert.False(t, r.TryPublish(3))
}

func TestClosedRingReturnsClosedOnceDrained(t *testing.T) {
	r := New[int](2)
	require.True(t, r.TryPublish(1))
	r.Close()

	_, ok, err := r.Acquire()
	require.True(t, ok)
	assert.NoError(t, err)
	r.Release()

	_, ok, err = r.Acquire()
	assert.False(t, ok)
	assert.ErrorIs(t, err, Closed{})
}

func TestRegisterWakerFiresOnPublish(t *testing.T) {
	r := New[int](2)
	waker := r.RegisterWaker()

	// Check->register->re-check: verify nothing is pending right after
	// registering before relying on the wake channel.
	_, ok, _ := r.Acquire()
	require.False(t, ok)

	r.TryPublish(5)
	<-waker

	v, ok, err := r.Acquire()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, v)
}
