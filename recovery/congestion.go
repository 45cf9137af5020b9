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
	"time"

	"github.com/quicd/quicd/bandwidth"
	"github.com/quicd/quicd/bbr"
)

// Congestion binds one connection's delivery-rate estimator to its BBR
// controller and feeds both from the packet-number-space Managers: a
// sent ack-eliciting packet is logged with the estimator, an
// acknowledgement turns into a bandwidth.Sample that drives the BBR
// state machine, and a detected loss enters BBR's Recovery path. This
// is the wiring recovery.Manager alone does not provide: loss
// detection and RTT estimation live in Manager, but "how large may the
// congestion window grow" is BBR's decision, fed by Manager's
// observations.
type Congestion struct {
	estimator *bandwidth.Estimator
	ctrl      *bbr.Controller
}

// NewCongestion constructs a Congestion controller seeded with an
// initial window sized in packets of maxSegmentSize bytes.
func NewCongestion(initialCwndPackets int, maxSegmentSize int) *Congestion {
	return &Congestion{
		estimator: bandwidth.NewEstimator(),
		ctrl:      bbr.NewController(initialCwndPackets, maxSegmentSize),
	}
}

// Controller exposes the underlying BBR controller, e.g. so the event
// subscriber can be wired to OnStateChange.
func (c *Congestion) Controller() *bbr.Controller { return c.ctrl }

// SetAppLimited flags the connection as application-limited, per
// spec.md's bandwidth estimator notes: it should be called whenever
// the sender has no more data queued, so the next send doesn't get
// mistaken for a capacity-limited sample.
func (c *Congestion) SetAppLimited() { c.estimator.SetAppLimited() }

// CongestionWindow and PacingRate expose BBR's current send budget, in
// bytes and bytes/sec respectively.
func (c *Congestion) CongestionWindow() uint64 { return c.ctrl.CongestionWindow() }
func (c *Congestion) PacingRate() float64      { return c.ctrl.PacingRate() }
func (c *Congestion) SendQuantum() int         { return c.ctrl.SendQuantum() }

// CanSend reports whether bytesInFlight is below the congestion window;
// it does not check that a full maxSegmentSize packet still fits.
func (c *Congestion) CanSend(bytesInFlight int) bool {
	return uint64(bytesInFlight) < c.ctrl.CongestionWindow()
}

// onPacketSent feeds the delivery-rate estimator's per-packet
// bookkeeping. Manager calls it for every in-flight packet, whether or
// not it is ack-eliciting.
func (c *Congestion) onPacketSent(number uint64, now time.Time, size int) {
	c.estimator.OnPacketSent(number, now, size)
}

// onPacketAcked turns one acknowledged packet into a bandwidth sample
// and folds it into BBR.
func (c *Congestion) onPacketAcked(number uint64, now time.Time, bytesInFlight int) {
	sample, ok := c.estimator.OnPacketAcked(number, now)
	if !ok {
		return
	}
	c.ctrl.OnAck(sample, bytesInFlight, now)
}

// onPacketLost retires the estimator's bookkeeping for a lost packet
// and tells BBR to enter (or deepen) Recovery.
func (c *Congestion) onPacketLost(number uint64, bytesInFlight int) {
	c.estimator.OnPacketLost(number)
	c.ctrl.OnLoss(bytesInFlight)
}

// Attach binds this Congestion controller to a Manager so every packet
// it tracks in this space also drives the delivery-rate and BBR
// models. A connection with more than one active space (e.g. Initial
// and ApplicationData during the handshake) should attach the same
// Congestion to each Manager that carries application data; Initial
// and Handshake packets are typically excluded since they precede
// BBR's startup bandwidth probe.
func (m *Manager) Attach(c *Congestion) { m.congestion = c }
