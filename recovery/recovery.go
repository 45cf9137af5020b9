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

// Package recovery implements per-packet-number-space loss detection
// and PTO scheduling, per spec.md section 4.H: sent-packet tracking,
// RTT estimation, the packet- and time-threshold loss rules, and the
// probe-timeout backoff.
package recovery

import (
	"time"

	"github.com/quicd/quicd/frame"
	"github.com/quicd/quicd/packetnumber"
)

const (
	// kPacketThreshold is the number of packets beyond an acked packet
	// number after which an unacked lower packet is declared lost.
	kPacketThreshold = 3
	// kTimeThresholdNumerator/Denominator express the 9/8 multiplier
	// RFC 9002 section 6.1.2 applies to the RTT-based loss delay.
	kTimeThresholdNumerator   = 9
	kTimeThresholdDenominator = 8
	// kGranularity is the assumed system timer granularity.
	kGranularity = time.Millisecond
	// kInitialRTT seeds smoothedRTT before any sample is available.
	kInitialRTT = 333 * time.Millisecond
)

// SentPacket records a packet still awaiting acknowledgement.
type SentPacket struct {
	Number       uint64
	SentAt       time.Time
	Size         int
	AckEliciting bool
	InFlight     bool

	// OnAcked and OnLost notify whatever produced this packet's frames
	// (stream send buffers, the handshake CRYPTO stream, ...) so they
	// can retire or re-queue the corresponding ranges.
	OnAcked func()
	OnLost  func()
}

// Manager tracks in-flight packets and RTT for one packet-number space.
type Manager struct {
	space packetnumber.Space

	sent         map[uint64]*SentPacket
	largestAcked *uint64

	latestRTT    time.Duration
	smoothedRTT  time.Duration
	rttvar       time.Duration
	minRTT       time.Duration
	haveRTT      bool
	maxAckDelay  time.Duration

	lossTime  time.Time
	ptoCount  int

	AckElicitingInFlight int
	BytesInFlight        int

	// congestion, when attached via Attach, receives every sent/acked/
	// lost packet this Manager observes so its bandwidth and BBR models
	// stay current.
	congestion *Congestion
}

func NewManager(space packetnumber.Space, maxAckDelay time.Duration) *Manager {
	return &Manager{
		space:       space,
		sent:        make(map[uint64]*SentPacket),
		smoothedRTT: kInitialRTT,
		rttvar:      kInitialRTT / 2,
		maxAckDelay: maxAckDelay,
	}
}

func (m *Manager) Space() packetnumber.Space { return m.space }

// OnPacketSent registers a freshly transmitted packet.
func (m *Manager) OnPacketSent(p *SentPacket) {
	m.sent[p.Number] = p
	if p.AckEliciting {
		m.AckElicitingInFlight++
	}
	if p.InFlight {
		m.BytesInFlight += p.Size
	}
	if m.congestion != nil && p.InFlight {
		m.congestion.onPacketSent(p.Number, p.SentAt, p.Size)
	}
}

// SmoothedRTT, RTTVar and MinRTT expose the current RTT estimate.
func (m *Manager) SmoothedRTT() time.Duration { return m.smoothedRTT }
func (m *Manager) RTTVar() time.Duration      { return m.rttvar }
func (m *Manager) MinRTT() time.Duration      { return m.minRTT }

// updateRTT folds a fresh sample into the smoothed estimate per RFC
// 9002 section 5.3.
func (m *Manager) updateRTT(sample time.Duration, ackDelay time.Duration) {
	m.latestRTT = sample
	if !m.haveRTT {
		m.minRTT = sample
		m.smoothedRTT = sample
		m.rttvar = sample / 2
		m.haveRTT = true
		return
	}
	if sample < m.minRTT {
		m.minRTT = sample
	}
	adjusted := sample
	if adjusted-m.minRTT >= ackDelay {
		adjusted -= ackDelay
	}
	rttvarSample := m.smoothedRTT - adjusted
	if rttvarSample < 0 {
		rttvarSample = -rttvarSample
	}
	m.rttvar = (3*m.rttvar + rttvarSample) / 4
	m.smoothedRTT = (7*m.smoothedRTT + adjusted) / 8
}

// AckedRange groups newly-acknowledged packets. ProcessAck returns a
// plain []*SentPacket, not an AckedRange, and AckedRange carries no
// byte count.
type AckedRange struct {
	Packets []*SentPacket
}

// ProcessAck applies an ACK frame: it retires acknowledged packets,
// samples RTT from the largest newly-acked packet when it is
// ack-eliciting, and returns the set of packets it newly acknowledged.
func (m *Manager) ProcessAck(ack frame.Ack, now time.Time) []*SentPacket {
	var newlyAcked []*SentPacket

	if m.largestAcked == nil || ack.LargestAcked > *m.largestAcked {
		la := ack.LargestAcked
		m.largestAcked = &la
	}

	for _, iv := range ack.Intervals() {
		for pn := iv[0]; pn <= iv[1]; pn++ {
			p, ok := m.sent[pn]
			if !ok {
				continue
			}
			delete(m.sent, pn)
			if p.AckEliciting {
				m.AckElicitingInFlight--
			}
			if p.InFlight {
				m.BytesInFlight -= p.Size
			}
			newlyAcked = append(newlyAcked, p)
			if m.congestion != nil && p.InFlight {
				m.congestion.onPacketAcked(p.Number, now, m.BytesInFlight)
			}
			if p.OnAcked != nil {
				p.OnAcked()
			}
		}
	}

	if len(newlyAcked) > 0 {
		largest := newlyAcked[0]
		for _, p := range newlyAcked {
			if p.Number > largest.Number {
				largest = p
			}
		}
		if largest.Number == ack.LargestAcked && largest.AckEliciting {
			ackDelay := time.Duration(ack.Delay) * time.Microsecond
			if ackDelay > m.maxAckDelay {
				ackDelay = m.maxAckDelay
			}
			m.updateRTT(now.Sub(largest.SentAt), ackDelay)
		}
	}

	return newlyAcked
}

// lossDelay is the time-threshold loss window, 9/8 of the larger of
// smoothed and latest RTT, floored at kGranularity.
func (m *Manager) lossDelay() time.Duration {
	rtt := m.smoothedRTT
	if m.latestRTT > rtt {
		rtt = m.latestRTT
	}
	d := rtt * kTimeThresholdNumerator / kTimeThresholdDenominator
	if d < kGranularity {
		d = kGranularity
	}
	return d
}

// DetectLosses walks every in-flight packet older than the largest
// acknowledged packet number and declares a loss whenever the packet
// falls kPacketThreshold behind, or has sat unacknowledged longer than
// the time threshold. It returns the lost packets and the time at
// which the next time-threshold loss would fire, if any packet is
// still within its loss window.
func (m *Manager) DetectLosses(now time.Time) (lost []*SentPacket, nextLossTime time.Time) {
	if m.largestAcked == nil {
		return nil, time.Time{}
	}
	delay := m.lossDelay()

	for pn, p := range m.sent {
		if pn > *m.largestAcked {
			continue
		}
		lossTime := p.SentAt.Add(delay)
		if *m.largestAcked-pn >= kPacketThreshold || !now.Before(lossTime) {
			delete(m.sent, pn)
			if p.AckEliciting {
				m.AckElicitingInFlight--
			}
			if p.InFlight {
				m.BytesInFlight -= p.Size
			}
			lost = append(lost, p)
			if m.congestion != nil && p.InFlight {
				m.congestion.onPacketLost(p.Number, m.BytesInFlight)
			}
			if p.OnLost != nil {
				p.OnLost()
			}
			continue
		}
		if nextLossTime.IsZero() || lossTime.Before(nextLossTime) {
			nextLossTime = lossTime
		}
	}
	return lost, nextLossTime
}

// PTOTimeout computes the probe-timeout duration for the current
// backoff count, per RFC 9002 section 6.2.1.
func (m *Manager) PTOTimeout() time.Duration {
	variance := 4 * m.rttvar
	if variance < kGranularity {
		variance = kGranularity
	}
	base := m.smoothedRTT + variance + m.maxAckDelay
	return base << m.ptoCount
}

// OnPTOFired increments the exponential backoff counter.
func (m *Manager) OnPTOFired() { m.ptoCount++ }

// ResetPTOBackoff clears backoff once forward progress is made.
func (m *Manager) ResetPTOBackoff() { m.ptoCount = 0 }
