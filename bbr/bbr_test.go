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

package bbr

import (
	"testing"
	"time"

	"github.com/quicd/quicd/bandwidth"
	"github.com/stretchr/testify/assert"
)

func TestControllerStartsInStartup(t *testing.T) {
	c := NewController(10, 1200)
	assert.Equal(t, Startup, c.Mode())
	assert.Equal(t, NotInRecovery, c.Recovery())
	assert.Equal(t, uint64(10*1200), c.CongestionWindow())
}

func TestControllerLeavesStartupOncePlateaued(t *testing.T) {
	c := NewController(10, 1200)
	now := time.Now()

	// A growing bandwidth estimate keeps BBR in Startup.
	for i := 0; i < 3; i++ {
		now = now.Add(20 * time.Millisecond)
		c.OnAck(bandwidth.Sample{DeliveryRate: float64(1000 * (i + 1)), RTT: 20 * time.Millisecond}, 1000, now)
	}
	assert.Equal(t, Startup, c.Mode())

	// Bandwidth plateaus for three consecutive rounds: Startup exits.
	for i := 0; i < 4; i++ {
		now = now.Add(20 * time.Millisecond)
		c.OnAck(bandwidth.Sample{DeliveryRate: 3000, RTT: 20 * time.Millisecond}, 1000, now)
	}
	assert.NotEqual(t, Startup, c.Mode())
}

func TestOnLossEntersConservation(t *testing.T) {
	c := NewController(10, 1200)
	c.OnLoss(5000)
	assert.Equal(t, Conservation, c.Recovery())
	assert.LessOrEqual(t, c.CongestionWindow(), uint64(10*1200))
}

func TestOnAckProgressesRecoverySubstates(t *testing.T) {
	c := NewController(10, 1200)
	c.OnLoss(5000)
	require := assert.New(t)
	require.Equal(Conservation, c.Recovery())

	now := time.Now()
	c.OnAck(bandwidth.Sample{DeliveryRate: 1000, RTT: 20 * time.Millisecond}, 1000, now)
	require.Equal(Growth, c.Recovery())
}
