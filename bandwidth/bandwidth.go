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

// Package bandwidth implements the delivery-rate sampling algorithm
// BBR is built on (spec.md section 4.I; draft-cheng-iccrg-delivery-rate-estimation):
// every sent packet is stamped with the connection's cumulative
// delivered-byte counter, and acknowledging it yields a rate sample
// covering exactly the interval since that packet was sent.
package bandwidth

import "time"

// PacketInfo is the delivery-rate bookkeeping snapshot captured when a
// packet is sent.
type PacketInfo struct {
	Number   uint64
	SentTime time.Time
	Size     int

	// delivered/deliveredTime are the connection-level counters at the
	// moment this packet was sent; a sample computed when this packet
	// is acknowledged measures the rate over the window between then
	// and now.
	delivered     uint64
	deliveredTime time.Time
	firstSentTime time.Time
	isAppLimited  bool
}

// Sample is one delivery-rate observation, produced when an
// outstanding packet is acknowledged.
type Sample struct {
	DeliveryRate float64 // bytes per second
	SendRate     float64 // bytes per second, the rate this packet's data was actually sent at
	RTT          time.Duration
	AckedBytes   int
	IsAppLimited bool
}

// Estimator tracks the connection-wide delivered-byte counter and
// turns packet acknowledgements into delivery-rate samples.
type Estimator struct {
	delivered       uint64
	deliveredTime   time.Time
	firstSentTime   time.Time
	lastSentTime    time.Time
	appLimitedUntil uint64
	inflight        map[uint64]*PacketInfo
}

func NewEstimator() *Estimator {
	return &Estimator{inflight: make(map[uint64]*PacketInfo)}
}

// SetAppLimited marks the connection as application-limited until
// every byte sent so far has been acknowledged and delivery has moved
// past that point; packets sent before then, including any sent while
// nothing is in flight, yield samples flagged IsAppLimited so BBR can
// ignore them when deciding whether to raise its bandwidth estimate.
func (e *Estimator) SetAppLimited() {
	e.appLimitedUntil = e.delivered + uint64(e.BytesInFlight()) + 1
}

// OnPacketSent records a newly transmitted packet's delivery-rate
// snapshot.
func (e *Estimator) OnPacketSent(number uint64, now time.Time, size int) {
	if e.deliveredTime.IsZero() {
		e.deliveredTime = now
	}
	if e.firstSentTime.IsZero() {
		e.firstSentTime = now
	}
	if len(e.inflight) == 0 {
		// No bytes in flight: the delivery-rate window restarts here,
		// per the draft algorithm's handling of idle restart.
		e.firstSentTime = now
		e.deliveredTime = now
	}
	e.inflight[number] = &PacketInfo{
		Number:        number,
		SentTime:      now,
		Size:          size,
		delivered:     e.delivered,
		deliveredTime: e.deliveredTime,
		firstSentTime: e.firstSentTime,
		isAppLimited:  e.appLimitedUntil > e.delivered,
	}
	e.lastSentTime = now
}

// OnPacketAcked retires an outstanding packet and returns the rate
// sample it yields.
func (e *Estimator) OnPacketAcked(number uint64, now time.Time) (Sample, bool) {
	p, ok := e.inflight[number]
	if !ok {
		return Sample{}, false
	}
	delete(e.inflight, number)

	e.delivered += uint64(p.Size)
	e.deliveredTime = now

	ackElapsed := now.Sub(p.deliveredTime)
	sendElapsed := now.Sub(p.firstSentTime)

	var deliveryRate, sendRate float64
	deliveredInterval := e.delivered - p.delivered
	if ackElapsed > 0 {
		deliveryRate = float64(deliveredInterval) / ackElapsed.Seconds()
	}
	if sendElapsed > 0 {
		sendRate = float64(deliveredInterval) / sendElapsed.Seconds()
	}

	return Sample{
		DeliveryRate: deliveryRate,
		SendRate:     sendRate,
		RTT:          now.Sub(p.SentTime),
		AckedBytes:   p.Size,
		IsAppLimited: p.isAppLimited,
	}, true
}

// OnPacketLost simply retires the bookkeeping entry; a lost packet
// contributes no delivery-rate sample.
func (e *Estimator) OnPacketLost(number uint64) {
	delete(e.inflight, number)
}

// BytesInFlight reports the sum of unacknowledged, un-lost packet sizes.
func (e *Estimator) BytesInFlight() int {
	total := 0
	for _, p := range e.inflight {
		total += p.Size
	}
	return total
}
