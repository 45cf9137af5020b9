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

package interval

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsertCoalescesAdjacent(t *testing.T) {
	s := New[uint64](0)
	s.Insert(0, 3)
	s.Insert(4, 6)
	assert.Equal(t, 1, s.Len())

	r, ok := s.Min()
	assert.True(t, ok)
	assert.Equal(t, Range[uint64]{0, 6}, r)
}

func TestInsertCoalescesOverlap(t *testing.T) {
	s := New[uint64](0)
	s.Insert(10, 20)
	s.Insert(15, 25)
	assert.Equal(t, 1, s.Len())

	r, _ := s.Min()
	assert.Equal(t, Range[uint64]{10, 25}, r)
}

func TestInsertKeepsDisjoint(t *testing.T) {
	s := New[uint64](0)
	s.Insert(0, 5)
	s.Insert(10, 15)
	assert.Equal(t, 2, s.Len())

	s.Insert(6, 9)
	assert.Equal(t, 1, s.Len())
	r, _ := s.Min()
	assert.Equal(t, Range[uint64]{0, 15}, r)
}

func TestBoundedCapacityEvictsLowest(t *testing.T) {
	s := New[uint64](2)
	s.Insert(0, 0)
	s.Insert(10, 10)

	evicted, ok := s.Insert(20, 20)
	assert.True(t, ok)
	assert.Equal(t, Range[uint64]{0, 0}, evicted)
	assert.Equal(t, 2, s.Len())
}

func TestContains(t *testing.T) {
	s := New[uint64](0)
	s.Insert(5, 10)
	assert.True(t, s.Contains(5))
	assert.True(t, s.Contains(10))
	assert.True(t, s.Contains(7))
	assert.False(t, s.Contains(4))
	assert.False(t, s.Contains(11))
}

func TestRemoveRangeSplits(t *testing.T) {
	s := New[uint64](0)
	s.Insert(0, 20)
	s.RemoveRange(5, 10)

	assert.Equal(t, 2, s.Len())
	assert.False(t, s.Contains(7))
	assert.True(t, s.Contains(0))
	assert.True(t, s.Contains(20))
}

func TestDifference(t *testing.T) {
	s := New[uint64](0)
	s.Insert(0, 5)
	s.Insert(10, 15)

	diff := s.Difference(Range[uint64]{Start: 0, End: 15})
	assert.Equal(t, []Range[uint64]{{6, 9}}, diff)
}

func TestSplitMinMax(t *testing.T) {
	s := New[uint64](0)
	s.Insert(0, 1)
	s.Insert(10, 11)

	min, ok := s.SplitMin()
	assert.True(t, ok)
	assert.Equal(t, Range[uint64]{0, 1}, min)

	max, ok := s.SplitMax()
	assert.True(t, ok)
	assert.Equal(t, Range[uint64]{10, 11}, max)
	assert.True(t, s.IsEmpty())
}

// TestRandomInsertionIsMinimalDisjointCover is the quantified invariant
// from spec.md section 8: for any insertion sequence, sum(lengths)
// equals the size of the union of inputs.
func TestRandomInsertionIsMinimalDisjointCover(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const space = 500

	s := New[uint64](0)
	covered := make(map[uint64]bool)

	for i := 0; i < 2000; i++ {
		start := uint64(rng.Intn(space))
		length := uint64(rng.Intn(20))
		end := start + length
		if end >= space {
			end = space - 1
		}

		s.Insert(start, end)
		for v := start; v <= end; v++ {
			covered[v] = true
		}
	}

	assert.Equal(t, uint64(len(covered)), s.TotalLen())

	// Verify minimality: no two adjacent ranges should have been left
	// unmerged, and every covered value must report Contains == true.
	for v := range covered {
		assert.True(t, s.Contains(v))
	}

	ranges := s.Ranges()
	for i := 1; i < len(ranges); i++ {
		assert.Greater(t, ranges[i].Start, ranges[i-1].End+1)
	}
}
