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
)

func TestDedupRejectsReplay(t *testing.T) {
	d := NewDedup()
	result, _ := d.Check(5)
	assert.Equal(t, DedupOk, result)

	d.Insert(5)
	result, _ = d.Check(5)
	assert.Equal(t, DedupAlreadyExists, result)
}

func TestDedupUnknownBelowWindowBase(t *testing.T) {
	d := NewDedup()
	d.Insert(1000)
	result, minUnseen := d.Check(0)
	assert.Equal(t, DedupUnknown, result)
	assert.Equal(t, d.base, minUnseen)
}

func TestDedupWindowSlides(t *testing.T) {
	d := NewDedup()
	d.Insert(0)
	d.Insert(dedupWindow + 10)

	result, _ := d.Check(0)
	assert.Equal(t, DedupUnknown, result) // slid out of the window

	result, _ = d.Check(dedupWindow + 10)
	assert.Equal(t, DedupAlreadyExists, result)
}
