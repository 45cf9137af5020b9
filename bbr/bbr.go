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

// Package bbr implements a BBRv2-style congestion controller (spec.md
// section 4.J): a data-volume model built on a windowed max-bandwidth
// filter and a windowed min-RTT filter, four operating modes
// (Startup, Drain, ProbeBW, ProbeRTT), and a loss-triggered Recovery
// state machine with Conservation/Growth substates bounding the
// congestion window to an inflight_hi/inflight_lo pair.
package bbr

import (
	"time"

	"github.com/quicd/quicd/bandwidth"
)

// Mode is BBR's top-level phase.
type Mode int

const (
	Startup Mode = iota
	Drain
	ProbeBW
	ProbeRTT
)

func (m Mode) String() string {
	switch m {
	case Startup:
		return "startup"
	case Drain:
		return "drain"
	case ProbeBW:
		return "probe_bw"
	case ProbeRTT:
		return "probe_rtt"
	default:
		return "unknown"
	}
}

// RecoveryState is the loss-recovery substate entered on the first
// loss of a round, per the BBRv2 "Recovered / Conservation / Growth"
// progression.
type RecoveryState int

const (
	NotInRecovery RecoveryState = iota
	Conservation
	Growth
)

func (r RecoveryState) String() string {
	switch r {
	case NotInRecovery:
		return "not_in_recovery"
	case Conservation:
		return "conservation"
	case Growth:
		return "growth"
	default:
		return "unknown"
	}
}

const (
	startupGain = 2.885 // 2/ln(2), doubles bandwidth belief each round
	drainGain   = 1 / startupGain

	minRTTWindow      = 10 * time.Second
	probeRTTDuration  = 200 * time.Millisecond
	probeRTTInterval  = 10 * time.Second
	betaLoss          = 0.7  // inflight_lo shrink factor on loss
	headroom          = 0.85 // inflight_hi safety margin below the last loss-free volume
	pacingMargin      = 0.99 // leaves burst headroom below the raw pacing rate
	minPipeCwndPkts   = 4
	defaultMaxSegment = 1200
)

var probeBWGainCycle = [8]float64{1.25, 0.75, 1, 1, 1, 1, 1, 1}

// StateChange is published to the event subscriber whenever mode or
// recovery state transitions.
type StateChange struct {
	Mode     Mode
	Recovery RecoveryState
}

// Controller is a per-path BBRv2 congestion controller.
type Controller struct {
	mode     Mode
	recovery RecoveryState

	maxSegmentSize int

	maxBWFilter  maxFilter
	minRTT       time.Duration
	minRTTStamp  time.Time
	roundCount   uint64

	cwnd         uint64
	inflightHi   uint64
	inflightLo   uint64
	priorCwnd    uint64

	pacingGain float64
	cwndGain   float64

	cycleIndex int
	cycleStamp time.Time

	probeRTTDoneStamp time.Time
	probeRTTRoundDone bool

	fullBWReached bool
	fullBWCount   int
	fullBW        float64

	sendQuantum int

	OnStateChange func(StateChange)
}

// maxFilter keeps the maximum sample observed in a trailing window of
// rounds, evicting samples older than the window per round advance.
type maxFilter struct {
	samples []sample
	window  int
}

type sample struct {
	round uint64
	value float64
}

func (f *maxFilter) update(round uint64, value float64) {
	if f.window == 0 {
		f.window = 2 // BBR's bandwidth filter spans 2 round trips
	}
	f.samples = append(f.samples, sample{round: round, value: value})
	cut := 0
	for i, s := range f.samples {
		if round-s.round <= uint64(f.window) {
			cut = i
			break
		}
	}
	f.samples = f.samples[cut:]
}

func (f *maxFilter) max() float64 {
	var m float64
	for _, s := range f.samples {
		if s.value > m {
			m = s.value
		}
	}
	return m
}

func NewController(initialCwndPackets int, maxSegmentSize int) *Controller {
	if maxSegmentSize <= 0 {
		maxSegmentSize = defaultMaxSegment
	}
	c := &Controller{
		mode:           Startup,
		maxSegmentSize: maxSegmentSize,
		cwnd:           uint64(initialCwndPackets * maxSegmentSize),
		pacingGain:     startupGain,
		cwndGain:       startupGain,
		sendQuantum:    maxSegmentSize,
	}
	return c
}

func (c *Controller) Mode() Mode                { return c.mode }
func (c *Controller) Recovery() RecoveryState   { return c.recovery }
func (c *Controller) CongestionWindow() uint64  { return c.cwnd }
func (c *Controller) MinRTT() time.Duration     { return c.minRTT }
func (c *Controller) BandwidthEstimate() float64 { return c.maxBWFilter.max() }

// PacingRate returns the current byte/sec pacing rate: the bandwidth
// estimate scaled by the mode's pacing_gain with a small margin kept
// below it to avoid self-inflicted queueing.
func (c *Controller) PacingRate() float64 {
	bw := c.maxBWFilter.max()
	if bw == 0 {
		if c.minRTT > 0 {
			return float64(c.cwnd) / c.minRTT.Seconds()
		}
		return float64(c.cwnd)
	}
	return bw * c.pacingGain * pacingMargin
}

func (c *Controller) setState(mode Mode, recovery RecoveryState) {
	changed := mode != c.mode || recovery != c.recovery
	c.mode = mode
	c.recovery = recovery
	if changed && c.OnStateChange != nil {
		c.OnStateChange(StateChange{Mode: mode, Recovery: recovery})
	}
}

// OnAck folds one delivery-rate sample into the model, advances the
// ProbeBW pacing-gain cycle, and updates the congestion window.
func (c *Controller) OnAck(sample bandwidth.Sample, bytesInFlight int, now time.Time) {
	c.roundCount++

	if c.minRTTStamp.IsZero() || sample.RTT < c.minRTT || now.Sub(c.minRTTStamp) > minRTTWindow {
		c.minRTT = sample.RTT
		c.minRTTStamp = now
	}

	if !sample.IsAppLimited || sample.DeliveryRate > c.maxBWFilter.max() {
		c.maxBWFilter.update(c.roundCount, sample.DeliveryRate)
	}

	switch c.mode {
	case Startup:
		c.updateStartup()
	case Drain:
		c.updateDrain(bytesInFlight)
	case ProbeBW:
		c.updateProbeBWCycle(now)
	case ProbeRTT:
		c.updateProbeRTT(bytesInFlight, now)
	}

	if c.recovery != NotInRecovery {
		c.updateRecovery(sample)
	}

	c.updateCongestionWindow(bytesInFlight)
}

func (c *Controller) updateStartup() {
	bw := c.maxBWFilter.max()
	if bw > c.fullBW*1.25 {
		c.fullBW = bw
		c.fullBWCount = 0
		return
	}
	c.fullBWCount++
	if c.fullBWCount >= 3 {
		c.fullBWReached = true
		c.pacingGain = drainGain
		c.cwndGain = startupGain
		c.setState(Drain, c.recovery)
	}
}

func (c *Controller) updateDrain(bytesInFlight int) {
	target := c.estimatedBDP()
	if uint64(bytesInFlight) <= target {
		c.enterProbeBW(time.Now())
	}
}

func (c *Controller) enterProbeBW(now time.Time) {
	c.cycleIndex = 1 // skip the gain>1 slot the instant we enter, matching BBR's cycle randomization in spirit
	c.cycleStamp = now
	c.pacingGain = probeBWGainCycle[c.cycleIndex]
	c.cwndGain = 2.0
	c.setState(ProbeBW, c.recovery)
}

func (c *Controller) updateProbeBWCycle(now time.Time) {
	if now.Sub(c.cycleStamp) >= c.minRTT && c.minRTT > 0 {
		c.cycleIndex = (c.cycleIndex + 1) % len(probeBWGainCycle)
		c.cycleStamp = now
		c.pacingGain = probeBWGainCycle[c.cycleIndex]
	}
	if !c.probeRTTDoneStamp.IsZero() {
		return
	}
	if time.Since(c.minRTTStamp) > probeRTTInterval {
		c.enterProbeRTT(now)
	}
}

func (c *Controller) enterProbeRTT(now time.Time) {
	c.pacingGain = 1
	c.cwndGain = 1
	c.probeRTTDoneStamp = time.Time{}
	c.probeRTTRoundDone = false
	c.setState(ProbeRTT, c.recovery)
}

func (c *Controller) updateProbeRTT(bytesInFlight int, now time.Time) {
	minCwnd := uint64(minPipeCwndPkts * c.maxSegmentSize)
	if c.probeRTTDoneStamp.IsZero() && uint64(bytesInFlight) <= minCwnd {
		c.probeRTTDoneStamp = now.Add(probeRTTDuration)
	}
	if !c.probeRTTDoneStamp.IsZero() && now.After(c.probeRTTDoneStamp) {
		c.minRTTStamp = now
		c.enterProbeBW(now)
	}
}

// estimatedBDP is the bandwidth-delay product at the current estimate.
func (c *Controller) estimatedBDP() uint64 {
	if c.minRTT == 0 {
		return c.cwnd
	}
	return uint64(c.maxBWFilter.max() * c.minRTT.Seconds())
}

func (c *Controller) updateCongestionWindow(bytesInFlight int) {
	target := uint64(float64(c.estimatedBDP()) * c.cwndGain)
	minCwnd := uint64(minPipeCwndPkts * c.maxSegmentSize)
	if target < minCwnd {
		target = minCwnd
	}

	if c.recovery != NotInRecovery && c.inflightHi > 0 && target > c.inflightHi {
		target = c.inflightHi
	}
	c.cwnd = target

	c.sendQuantum = c.maxSegmentSize
	if rate := c.PacingRate(); rate > 0 {
		// Clamp the GSO-style send quantum to roughly one pacing
		// interval of bytes, as RFC draft BBRv2 does to bound burst size,
		// and never more than ten segments.
		q := int(rate * 0.001) // ~1ms worth of bytes
		if q > c.sendQuantum {
			c.sendQuantum = q
		}
		if c.sendQuantum > 10*c.maxSegmentSize {
			c.sendQuantum = 10 * c.maxSegmentSize
		}
	}
}

// SendQuantum returns the maximum burst size (e.g. for GSO batching) BBR
// currently allows in one pacing interval.
func (c *Controller) SendQuantum() int { return c.sendQuantum }

// OnLoss enters (or deepens) the Recovery state machine: the first
// loss snapshots inflight_hi at headroom*cwnd and inflight_lo at
// beta*cwnd and enters Conservation; inflight_lo is lowered further to
// bytesInFlight when that is smaller, and cwnd is set to inflight_lo.
// The next ack moves Conservation to Growth.
func (c *Controller) OnLoss(bytesInFlight int) {
	if c.recovery == NotInRecovery {
		c.priorCwnd = c.cwnd
		c.inflightHi = uint64(float64(c.cwnd) * headroom)
		c.inflightLo = uint64(float64(c.cwnd) * betaLoss)
		c.setState(c.mode, Conservation)
	}
	if uint64(bytesInFlight) < c.inflightLo {
		c.inflightLo = uint64(bytesInFlight)
	}
	c.cwnd = c.inflightLo
}

func (c *Controller) updateRecovery(sample bandwidth.Sample) {
	switch c.recovery {
	case Conservation:
		c.setState(c.mode, Growth)
	case Growth:
		if c.cwnd >= c.priorCwnd {
			c.setState(c.mode, NotInRecovery)
			c.inflightHi = 0
			c.inflightLo = 0
		}
	}
}
