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

package confengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLooseCoercesWeaklyTypedFields(t *testing.T) {
	type appParams struct {
		MaxStreams int    `config:"maxStreams"`
		Label      string `config:"label"`
	}
	raw := map[string]any{"maxStreams": "8", "label": "gaming"}

	var out appParams
	require.NoError(t, DecodeLoose(raw, &out))
	assert.Equal(t, 8, out.MaxStreams)
	assert.Equal(t, "gaming", out.Label)
}

func TestToDurationParsesStringAndNumeric(t *testing.T) {
	d, err := ToDuration("30s")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	d, err = ToDuration(int64(5))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Nanosecond, d)
}
