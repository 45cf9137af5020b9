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

package recovery

import (
	"testing"
	"time"

	"github.com/quicd/quicd/bbr"
	"github.com/quicd/quicd/frame"
	"github.com/quicd/quicd/packetnumber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerDrivesCongestionOnAck(t *testing.T) {
	m := NewManager(packetnumber.ApplicationData, 25*time.Millisecond)
	c := NewCongestion(10, 1200)
	m.Attach(c)

	start := time.Now()
	for i := uint64(0); i <= 3; i++ {
		m.OnPacketSent(&SentPacket{
			Number: i, SentAt: start.Add(time.Duration(i) * time.Millisecond),
			Size: 1200, AckEliciting: true, InFlight: true,
		})
	}

	acked := m.ProcessAck(frame.Ack{LargestAcked: 3, Delay: 0, FirstRange: 3}, start.Add(20*time.Millisecond))
	require.Len(t, acked, 4)

	// The ack sequence drove at least one BBR round and a positive
	// bandwidth estimate.
	assert.Greater(t, c.Controller().BandwidthEstimate(), float64(0))
}

func TestManagerDrivesCongestionOnLoss(t *testing.T) {
	m := NewManager(packetnumber.ApplicationData, 25*time.Millisecond)
	c := NewCongestion(10, 1200)
	m.Attach(c)

	base := time.Now()
	m.OnPacketSent(&SentPacket{Number: 0, SentAt: base, Size: 1200, AckEliciting: true, InFlight: true})
	m.OnPacketSent(&SentPacket{Number: 1, SentAt: base, Size: 1200, AckEliciting: true, InFlight: true})
	m.OnPacketSent(&SentPacket{Number: 2, SentAt: base, Size: 1200, AckEliciting: true, InFlight: true})
	m.OnPacketSent(&SentPacket{Number: 3, SentAt: base, Size: 1200, AckEliciting: true, InFlight: true})

	// Acking only packet 3 puts 0 three-or-more packets behind the
	// packet threshold, declaring it lost immediately.
	m.ProcessAck(frame.Ack{LargestAcked: 3, Delay: 0, FirstRange: 0}, base)
	lost, _ := m.DetectLosses(base)
	require.Len(t, lost, 1)
	assert.Equal(t, uint64(0), lost[0].Number)
	assert.Equal(t, bbr.Conservation, c.Controller().Recovery())
}
