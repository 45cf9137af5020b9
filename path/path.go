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

// Package path implements connection migration and the per-path
// anti-amplification limit (spec.md section 4.L).
package path

import (
	"github.com/quicd/quicd/common"
	"github.com/quicd/quicd/errkind"
	"github.com/quicd/quicd/subscriber"
)

// Validator decides whether a new (local, remote) tuple is acceptable
// as a migration target. The embedder supplies the policy (NAT
// rebinding heuristics, blocked-port checks, rate limiting); this
// package only sequences the decision.
type Validator interface {
	Validate(t common.Tuple) error
}

// Path is one address 4-tuple a connection may send and receive on.
type Path struct {
	Tuple     common.Tuple
	Validated bool

	challenge   [8]byte
	hasChallenge bool

	UnverifiedBytesSent uint64
	BytesReceived       uint64
}

// CanSend reports whether proposedSize more bytes may be transmitted
// on this path under the anti-amplification limit (spec.md section
// 4.L): bytes_received*3 >= unverified_bytes_sent + proposed_size.
// Validated paths have no limit.
func (p *Path) CanSend(proposedSize uint64) bool {
	if p.Validated {
		return true
	}
	return p.BytesReceived*3 >= p.UnverifiedBytesSent+proposedSize
}

// OnBytesSent records proposedSize bytes sent on this path, counting
// them against the anti-amplification budget until validated.
func (p *Path) OnBytesSent(n uint64) {
	if !p.Validated {
		p.UnverifiedBytesSent += n
	}
}

// OnBytesReceived records n bytes received on this path.
func (p *Path) OnBytesReceived(n uint64) {
	p.BytesReceived += n
}

// Manager tracks every path known to a connection, enforcing
// maxPaths and driving the migration state machine.
type Manager struct {
	maxPaths int
	paths    []*Path
	active   int

	validator Validator
	events    *subscriber.Broker

	// issueChallenge produces the 8 random bytes for a new
	// PATH_CHALLENGE; overridable for deterministic tests.
	issueChallenge func() [8]byte

	peerCIDCapacity int
}

// NewManager constructs a Manager seeded with the initial, already
// validated path a connection was accepted or dialed on.
func NewManager(maxPaths int, initial common.Tuple, validator Validator, events *subscriber.Broker, issueChallenge func() [8]byte) *Manager {
	if maxPaths <= 0 {
		maxPaths = 1
	}
	m := &Manager{
		maxPaths:        maxPaths,
		validator:       validator,
		events:          events,
		issueChallenge:  issueChallenge,
		peerCIDCapacity: 1,
	}
	m.paths = append(m.paths, &Path{Tuple: initial, Validated: true})
	return m
}

// Active returns the path currently used for non-probing traffic.
func (m *Manager) Active() *Path { return m.paths[m.active] }

// SetPeerConnectionIDCapacity records how many spare peer-issued
// connection ids are available for new paths.
func (m *Manager) SetPeerConnectionIDCapacity(n int) { m.peerCIDCapacity = n }

// OnDatagramFromNewTuple runs the migration sequence from spec.md
// section 4.L steps 1-3 for a datagram arriving from a tuple this
// connection has not seen before. The previously active path remains
// in use for non-probing traffic until the new path's PATH_RESPONSE
// arrives (step 4 is therefore a caller-side routing decision, not
// performed here).
func (m *Manager) OnDatagramFromNewTuple(t common.Tuple) (*Path, error) {
	if m.validator != nil {
		if err := m.validator.Validate(t); err != nil {
			return nil, err
		}
	}
	if m.peerCIDCapacity <= 0 {
		return nil, errkind.InsufficientConnectionIDs()
	}
	if len(m.paths) >= m.maxPaths {
		return nil, errkind.PathLimitExceeded()
	}

	p := &Path{Tuple: t}
	if m.issueChallenge != nil {
		p.challenge = m.issueChallenge()
		p.hasChallenge = true
	}
	m.paths = append(m.paths, p)
	m.peerCIDCapacity--
	return p, nil
}

// OnPathResponse validates p if resp matches the challenge issued for
// it, promoting it to the active path on success.
func (m *Manager) OnPathResponse(p *Path, resp [8]byte) bool {
	if !p.hasChallenge || resp != p.challenge {
		return false
	}
	p.Validated = true
	for i, candidate := range m.paths {
		if candidate == p {
			m.active = i
			break
		}
	}
	if m.events != nil {
		m.events.Publish(subscriber.KindPathValidated, p.Tuple)
	}
	return true
}

// Paths returns every path this connection currently tracks.
func (m *Manager) Paths() []*Path { return m.paths }
