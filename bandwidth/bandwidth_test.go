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

package bandwidth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryRateSampleMatchesSteadyRate(t *testing.T) {
	e := NewEstimator()
	base := time.Now()

	const pktSize = 1200
	const interval = 10 * time.Millisecond
	const wantRate = float64(pktSize) / interval.Seconds() // 120000 B/s

	for i := uint64(0); i < 5; i++ {
		e.OnPacketSent(i, base.Add(time.Duration(i)*interval), pktSize)
	}
	for i := uint64(0); i < 5; i++ {
		ackTime := base.Add(time.Duration(i+1) * interval)
		sample, ok := e.OnPacketAcked(i, ackTime)
		require.True(t, ok)
		assert.InDelta(t, wantRate, sample.DeliveryRate, 1)
	}

	_, ok := e.OnPacketAcked(4, base)
	assert.False(t, ok) // already retired above

	assert.Equal(t, 0, e.BytesInFlight())
}

func TestBytesInFlightTracksOutstandingPackets(t *testing.T) {
	e := NewEstimator()
	now := time.Now()
	e.OnPacketSent(0, now, 100)
	e.OnPacketSent(1, now.Add(time.Millisecond), 200)
	assert.Equal(t, 300, e.BytesInFlight())

	e.OnPacketLost(0)
	assert.Equal(t, 200, e.BytesInFlight())

	_, ok := e.OnPacketAcked(1, now.Add(20*time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, 0, e.BytesInFlight())
}

func TestAppLimitedSampleFlagged(t *testing.T) {
	e := NewEstimator()
	now := time.Now()
	e.SetAppLimited()
	e.OnPacketSent(0, now, 100)

	sample, ok := e.OnPacketAcked(0, now.Add(5*time.Millisecond))
	require.True(t, ok)
	assert.True(t, sample.IsAppLimited)
}
