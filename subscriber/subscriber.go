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

// Package subscriber implements the enumerated event side-channel
// (spec.md section 9): the endpoint, path and dcmap packages publish
// handshake, close, path-validation and dc map eviction events to a
// broker, and callers (metricstore's Collector, tests) subscribe to a
// queue of their own without slowing down the packet-processing hot
// path.
package subscriber

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the event types a connection ever emits.
type Kind int

const (
	KindConnectionOpened Kind = iota
	KindConnectionClosed
	KindHandshakeConfirmed
	KindPathValidated
	KindPacketLost
	KindCongestionStateChanged
	KindStreamOpened
	KindStreamClosed
	KindDCMapEvicted
)

func (k Kind) String() string {
	switch k {
	case KindConnectionOpened:
		return "connection_opened"
	case KindConnectionClosed:
		return "connection_closed"
	case KindHandshakeConfirmed:
		return "handshake_confirmed"
	case KindPathValidated:
		return "path_validated"
	case KindPacketLost:
		return "packet_lost"
	case KindCongestionStateChanged:
		return "congestion_state_changed"
	case KindStreamOpened:
		return "stream_opened"
	case KindStreamClosed:
		return "stream_closed"
	case KindDCMapEvicted:
		return "dc_map_evicted"
	default:
		return "unknown"
	}
}

// Event is one published occurrence; Data holds a Kind-specific
// payload (e.g. a *bbr.StateChange or a connection id string).
type Event struct {
	Kind Kind
	At   time.Time
	Data any
}

// Queue is a single subscriber's inbox.
type Queue interface {
	ID() string
	PopTimeout(timeout time.Duration) (Event, bool)
	push(e Event)
	close()
}

type channel struct {
	id     string
	ch     chan Event
	closed atomic.Bool
}

func newChannel(size int) *channel {
	if size <= 0 {
		size = 1
	}
	return &channel{id: uuid.New().String(), ch: make(chan Event, size)}
}

func (c *channel) ID() string { return c.id }

func (c *channel) PopTimeout(timeout time.Duration) (Event, bool) {
	if c.closed.Load() {
		return Event{}, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	case e, ok := <-c.ch:
		return e, ok
	case <-ctx.Done():
		return Event{}, false
	}
}

func (c *channel) push(e Event) {
	if c.closed.Load() {
		return
	}
	select {
	case c.ch <- e:
	default: // a slow subscriber drops events rather than stall the publisher
	}
}

func (c *channel) close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.ch)
	}
}

// Broker fans published events out to every subscribed Queue.
type Broker struct {
	mut    sync.RWMutex
	queues map[string]*channel
}

func NewBroker() *Broker {
	return &Broker{queues: make(map[string]*channel)}
}

func (b *Broker) Num() int {
	b.mut.RLock()
	defer b.mut.RUnlock()
	return len(b.queues)
}

// Subscribe returns a new Queue with the given buffer size.
func (b *Broker) Subscribe(size int) Queue {
	b.mut.Lock()
	defer b.mut.Unlock()

	ch := newChannel(size)
	b.queues[ch.ID()] = ch
	return ch
}

// Unsubscribe removes and closes q.
func (b *Broker) Unsubscribe(q Queue) {
	b.mut.Lock()
	defer b.mut.Unlock()

	if ch, ok := b.queues[q.ID()]; ok {
		delete(b.queues, q.ID())
		ch.close()
	}
}

// Publish fans out an event of kind with the given payload to every
// current subscriber. Publish never blocks: subscribers that cannot
// keep up drop events.
func (b *Broker) Publish(kind Kind, data any) {
	b.mut.RLock()
	defer b.mut.RUnlock()

	e := Event{Kind: kind, At: time.Now(), Data: data}
	for _, q := range b.queues {
		q.push(e)
	}
}
