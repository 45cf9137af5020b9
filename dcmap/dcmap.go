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

// Package dcmap implements the dc path-secret map (spec.md section
// 4.O): a read-mostly, sharded concurrent map from credential id and
// from peer address to a shared Entry, with per-entry replay
// detection and a periodic cleaner that retires entries nobody has
// touched in a while. Sharding uses xxhash of the credential id so a
// reader never blocks a writer working on an unrelated shard.
package dcmap

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/quicd/quicd/internal/fasttime"
	"github.com/quicd/quicd/subscriber"
)

// Id is a dc credential identifier.
type Id [16]byte

const (
	accessedBitID   = 1 << 0
	accessedBitAddr = 1 << 1
)

// Entry is one credential's path secret and its replay-detection
// state. Once installed into a Map, only accessed/Dedup are mutated in
// place; every other field is set once at construction (spec.md's
// "install fully initialized value, then publish" commit ordering).
type Entry struct {
	ID                Id
	Secret            []byte
	PeerAddr          string
	CreationTime      int64
	ApplicationParams []byte

	Dedup *Dedup

	mu          sync.Mutex
	accessed    uint8
	idleCycles  int
}

func newEntry(id Id, secret []byte, addr string, creationTime int64, appParams []byte) *Entry {
	return &Entry{
		ID:                id,
		Secret:            secret,
		PeerAddr:          addr,
		CreationTime:      creationTime,
		ApplicationParams: appParams,
		Dedup:             NewDedup(),
	}
}

func (e *Entry) markAccessedID() {
	e.mu.Lock()
	e.accessed |= accessedBitID
	e.mu.Unlock()
}

func (e *Entry) markAccessedAddr() {
	e.mu.Lock()
	e.accessed |= accessedBitAddr
	e.mu.Unlock()
}

// clearAccessedAndCheckIdle clears both accessed bits and returns
// whether they were both already unset, i.e. this entry saw no
// traffic during the cycle just ending.
func (e *Entry) clearAccessedAndCheckIdle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	wasIdle := e.accessed == 0
	e.accessed = 0
	return wasIdle
}

type shard struct {
	mu      sync.RWMutex
	byID    map[Id]*Entry
	byAddr  map[string]*Entry
}

// Map is the sharded dc path-secret map.
type Map struct {
	shards []*shard

	retentionSeconds int64
	maxIdleCycles    int

	events *subscriber.Broker
}

// New constructs a Map with numShards shards (rounded up to a power of
// two isn't required here since xxhash%numShards is fine for any
// positive count). retentionSeconds and maxIdleCycles configure the
// cleaner's eviction policy.
func New(numShards int, retentionSeconds int64, maxIdleCycles int, events *subscriber.Broker) *Map {
	if numShards < 1 {
		numShards = 1
	}
	m := &Map{
		shards:           make([]*shard, numShards),
		retentionSeconds: retentionSeconds,
		maxIdleCycles:    maxIdleCycles,
		events:           events,
	}
	for i := range m.shards {
		m.shards[i] = &shard{byID: make(map[Id]*Entry), byAddr: make(map[string]*Entry)}
	}
	return m
}

func (m *Map) shardFor(id Id) *shard {
	h := xxhash.Sum64(id[:])
	return m.shards[h%uint64(len(m.shards))]
}

// Insert installs a new entry. If id collides with an existing entry,
// the one with the newer CreationTime wins and the other is retired
// and returned to the caller so it can be released back to its pool.
func (m *Map) Insert(id Id, secret []byte, addr string, creationTime int64, appParams []byte) (installed *Entry, retired *Entry) {
	e := newEntry(id, secret, addr, creationTime, appParams)
	s := m.shardFor(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byID[id]; ok {
		if existing.CreationTime >= e.CreationTime {
			return existing, e
		}
		retired = existing
	}
	s.byID[id] = e
	s.byAddr[addr] = e
	return e, retired
}

// LookupByID returns the entry for id, marking its id-accessed bit.
func (m *Map) LookupByID(id Id) (*Entry, bool) {
	s := m.shardFor(id)
	s.mu.RLock()
	e, ok := s.byID[id]
	s.mu.RUnlock()
	if ok {
		e.markAccessedID()
	}
	return e, ok
}

// LookupByAddr returns the most recent entry for addr, marking its
// addr-accessed bit. Since entries are sharded by id, every shard must
// be checked, and the entry with the newest CreationTime among them
// wins; a real deployment would additionally maintain an
// addr-sharded index if this path proves hot.
func (m *Map) LookupByAddr(addr string) (*Entry, bool) {
	var best *Entry
	for _, s := range m.shards {
		s.mu.RLock()
		e, ok := s.byAddr[addr]
		s.mu.RUnlock()
		if ok && (best == nil || e.CreationTime > best.CreationTime) {
			best = e
		}
	}
	if best == nil {
		return nil, false
	}
	best.markAccessedAddr()
	return best, true
}

// RunCleanerOnce performs one pass of the periodic cleaner (spec.md
// section 4.O): it clears each entry's two accessed bits, and retires
// any entry whose bits have been unset for maxIdleCycles consecutive
// passes and whose age exceeds the configured retention. The cleaner
// holds at most one shard's lock at a time.
func (m *Map) RunCleanerOnce() []*Entry {
	now := fasttime.UnixTimestamp()
	var retired []*Entry

	for _, s := range m.shards {
		s.mu.Lock()
		for id, e := range s.byID {
			idle := e.clearAccessedAndCheckIdle()
			if !idle {
				e.mu.Lock()
				e.idleCycles = 0
				e.mu.Unlock()
				continue
			}
			e.mu.Lock()
			e.idleCycles++
			cycles := e.idleCycles
			e.mu.Unlock()

			age := now - e.CreationTime
			if cycles >= m.maxIdleCycles && age > m.retentionSeconds {
				delete(s.byID, id)
				if s.byAddr[e.PeerAddr] == e {
					delete(s.byAddr, e.PeerAddr)
				}
				retired = append(retired, e)
			}
		}
		s.mu.Unlock()
	}

	if m.events != nil {
		for _, e := range retired {
			m.events.Publish(subscriber.KindDCMapEvicted, e.ID)
		}
	}
	return retired
}
