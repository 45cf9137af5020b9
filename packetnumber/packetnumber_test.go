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

package packetnumber

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateExpandRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 20000; i++ {
		largestAcked := uint64(rng.Intn(1 << 20))
		pn := largestAcked + uint64(rng.Intn(1<<16))

		truncated, length, err := Truncate(pn, largestAcked)
		require.NoError(t, err)

		got := Expand(largestAcked, truncated, 8*length)
		assert.Equal(t, pn, got, "pn=%d largestAcked=%d length=%d", pn, largestAcked, length)
	}
}

func TestTruncateMinimalLength(t *testing.T) {
	_, length, err := Truncate(100, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, length)

	_, length, err = Truncate(1<<20, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, length) // 2*2^20 = 2^21 < 2^24
}

func TestWindowDuplicateDetection(t *testing.T) {
	w := NewWindow(ApplicationData)

	assert.NoError(t, w.Check(5))
	w.Insert(5)

	assert.ErrorIs(t, w.Check(5), ErrDuplicate)

	w.Insert(10)
	assert.Equal(t, uint64(10), w.Largest())

	// 5 is still within the 128-wide window relative to 10.
	assert.ErrorIs(t, w.Check(5), ErrDuplicate)

	w.Insert(200)
	assert.ErrorIs(t, w.Check(5), ErrTooOld)
}

func TestComparisonAcrossSpacesPanics(t *testing.T) {
	a := New(Initial, 1)
	b := New(Handshake, 1)

	assert.Panics(t, func() {
		a.Less(b)
	})
}
