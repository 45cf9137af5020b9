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

package dcmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndLookupByIDAndAddr(t *testing.T) {
	m := New(4, 3600, 3, nil)
	id := Id{1}

	installed, retired := m.Insert(id, []byte("secret"), "10.0.0.1:4433", 100, nil)
	require.Nil(t, retired)
	require.NotNil(t, installed)

	byID, ok := m.LookupByID(id)
	require.True(t, ok)
	assert.Equal(t, []byte("secret"), byID.Secret)

	byAddr, ok := m.LookupByAddr("10.0.0.1:4433")
	require.True(t, ok)
	assert.Equal(t, id, byAddr.ID)
}

func TestInsertCollisionNewerCreationTimeWins(t *testing.T) {
	m := New(1, 3600, 3, nil)
	id := Id{2}

	m.Insert(id, []byte("old"), "10.0.0.1:1", 100, nil)
	installed, retired := m.Insert(id, []byte("new"), "10.0.0.1:2", 200, nil)
	require.NotNil(t, retired)
	assert.Equal(t, []byte("old"), retired.Secret)
	assert.Equal(t, []byte("new"), installed.Secret)

	older, _ := m.Insert(id, []byte("stale"), "10.0.0.1:3", 50, nil)
	assert.Equal(t, []byte("new"), older.Secret) // the 200 entry still wins
}

func TestRunCleanerRetiresIdleExpiredEntries(t *testing.T) {
	m := New(1, -1, 2, nil) // negative retention: any age qualifies for this test
	id := Id{3}
	m.Insert(id, []byte("secret"), "10.0.0.1:1", 0, nil)

	// An access between cleaner passes resets the idle counter.
	m.LookupByID(id)
	retired := m.RunCleanerOnce()
	assert.Empty(t, retired)

	retired = m.RunCleanerOnce()
	assert.Empty(t, retired) // first fully-idle pass, cycles=1 < maxIdleCycles=2

	retired = m.RunCleanerOnce()
	require.Len(t, retired, 1)
	assert.Equal(t, id, retired[0].ID)

	_, ok := m.LookupByID(id)
	assert.False(t, ok)
}
