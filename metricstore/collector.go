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

package metricstore

import (
	"fmt"
	"time"

	"github.com/quicd/quicd/internal/labels"
	"github.com/quicd/quicd/subscriber"
)

// Collector drains one subscriber queue and folds recognized event
// kinds into a Store; everything else is ignored, since not every
// published event has a metric shape (e.g. KindStreamOpened is
// consumed by connection-level bookkeeping, not telemetry).
type Collector struct {
	store *Store
	queue subscriber.Queue
	done  chan struct{}
}

// NewCollector subscribes a new queue of the given buffer size on
// events and returns a Collector ready to Run.
func NewCollector(store *Store, events *subscriber.Broker, queueSize int) *Collector {
	return &Collector{store: store, queue: events.Subscribe(queueSize), done: make(chan struct{})}
}

// Run drains the queue until Stop is called, polling with timeout so
// it can observe done without the broker ever publishing again.
func (c *Collector) Run() {
	for {
		select {
		case <-c.done:
			return
		default:
		}
		ev, ok := c.queue.PopTimeout(time.Second)
		if !ok {
			continue
		}
		c.observe(ev)
	}
}

// Stop ends Run and unsubscribes the underlying queue.
func (c *Collector) Stop(events *subscriber.Broker) {
	close(c.done)
	events.Unsubscribe(c.queue)
}

func (c *Collector) observe(ev subscriber.Event) {
	switch ev.Kind {
	case subscriber.KindPacketLost:
		c.store.Update(ConstMetric{Model: ModelCounter, Name: "quicd_packet_lost_total", Labels: labelsFor(ev), Value: 1})
	case subscriber.KindDCMapEvicted:
		c.store.Update(ConstMetric{Model: ModelCounter, Name: "quicd_dcmap_evicted_total", Labels: labelsFor(ev), Value: 1})
	case subscriber.KindConnectionOpened:
		c.store.Update(ConstMetric{Model: ModelCounter, Name: "quicd_connection_opened_total", Labels: labelsFor(ev), Value: 1})
	case subscriber.KindConnectionClosed:
		c.store.Update(ConstMetric{Model: ModelCounter, Name: "quicd_connection_closed_total", Labels: labelsFor(ev), Value: 1})
	case subscriber.KindPathValidated:
		c.store.Update(ConstMetric{Model: ModelCounter, Name: "quicd_path_validated_total", Labels: labelsFor(ev), Value: 1})
	case subscriber.KindHandshakeConfirmed:
		c.store.Update(ConstMetric{Model: ModelCounter, Name: "quicd_handshake_confirmed_total", Labels: labelsFor(ev), Value: 1})
	}
}

// labelsFor extracts a "data" label from whatever Data the event
// carries, when it is printable; events without a useful Data payload
// get an empty label set instead of a panic.
func labelsFor(ev subscriber.Event) labels.Labels {
	if ev.Data == nil {
		return nil
	}
	if s, ok := ev.Data.(fmt.Stringer); ok {
		return labels.Labels{{Name: "data", Value: s.String()}}
	}
	if s, ok := ev.Data.(string); ok {
		return labels.Labels{{Name: "data", Value: s}}
	}
	return nil
}
