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

// Package endpoint implements the per-connection handshake state
// machine (spec.md section 4.K): TLS session progress, per-space key
// installation/discard, and stateless-reset recognition. One endpoint
// owns the connection's three recovery.Managers and holds the broker
// it publishes connection events to.
package endpoint

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/quicd/quicd/packetnumber"
	"github.com/quicd/quicd/recovery"
	"github.com/quicd/quicd/subscriber"
)

// HandshakeStatus is the connection-wide handshake progress, per
// spec.md section 4.K.
type HandshakeStatus int

const (
	HandshakeInProgress HandshakeStatus = iota
	// ServerCompletePending means the server has finished its side of
	// the TLS handshake and a HANDSHAKE_DONE frame is scheduled but not
	// yet acknowledged.
	ServerCompletePending
	ClientComplete
	Confirmed
)

func (s HandshakeStatus) String() string {
	switch s {
	case HandshakeInProgress:
		return "in_progress"
	case ServerCompletePending:
		return "server_complete_pending"
	case ClientComplete:
		return "client_complete"
	case Confirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Side distinguishes the client/server role, which governs which
// handshake transitions apply.
type Side int

const (
	SideClient Side = iota
	SideServer
)

// Keys bundles one encryption level's read/write key material as an
// opaque handle; the TLS/crypto layer that derives these is out of
// scope for this core and is supplied by the embedder.
type Keys struct {
	Installed bool
}

// Endpoint is a single connection's handshake and key-schedule state.
type Endpoint struct {
	Side   Side
	Status HandshakeStatus

	initialKeys   Keys
	handshakeKeys Keys
	oneRTTKeys    Keys

	Initial     *recovery.Manager
	Handshake   *recovery.Manager
	Application *recovery.Manager

	StatelessResetTokens map[[16]byte]struct{}

	Events *subscriber.Broker

	// handshakeDoneScheduled is set (server only) while a HANDSHAKE_DONE
	// frame is waiting to be sent: on handshake completion and again
	// after the frame is reported lost.
	handshakeDoneScheduled bool
}

// New constructs an Endpoint with all three packet-number spaces
// active and an empty stateless-reset token table.
func New(side Side, events *subscriber.Broker, maxAckDelay time.Duration) *Endpoint {
	e := &Endpoint{
		Side:                 side,
		Initial:              recovery.NewManager(packetnumber.Initial, maxAckDelay),
		Handshake:            recovery.NewManager(packetnumber.Handshake, maxAckDelay),
		Application:          recovery.NewManager(packetnumber.ApplicationData, maxAckDelay),
		StatelessResetTokens: make(map[[16]byte]struct{}),
		Events:               events,
	}
	e.initialKeys.Installed = true
	return e
}

// OnHandshakeComplete is the TLS stack's notification that its side of
// the handshake has finished. Server and client follow different
// transition paths, per spec.md section 4.K.
func (e *Endpoint) OnHandshakeComplete() {
	switch e.Side {
	case SideServer:
		e.Status = ServerCompletePending
		e.handshakeDoneScheduled = true
	case SideClient:
		e.Status = ClientComplete
	}
	if e.Events != nil {
		e.Events.Publish(subscriber.KindHandshakeConfirmed, e.Status)
	}
}

// OnHandshakeDoneAcked is called once the server's HANDSHAKE_DONE
// frame is acknowledged (never called on the client, which instead
// calls OnHandshakeDoneReceived).
func (e *Endpoint) OnHandshakeDoneAcked() {
	if e.Status == ServerCompletePending {
		e.Status = Confirmed
	}
}

// OnHandshakeDoneLost re-schedules the frame; the caller is
// responsible for actually re-queuing it on the stream of frames to
// send.
func (e *Endpoint) OnHandshakeDoneLost() {
	if e.Status == ServerCompletePending {
		e.handshakeDoneScheduled = true
	}
}

// PendingHandshakeDone reports whether a HANDSHAKE_DONE frame should
// be sent (server only), consuming the pending flag.
func (e *Endpoint) PendingHandshakeDone() bool {
	if !e.handshakeDoneScheduled {
		return false
	}
	e.handshakeDoneScheduled = false
	return true
}

// OnHandshakeDoneReceived is the client's reaction to receiving
// HANDSHAKE_DONE.
func (e *Endpoint) OnHandshakeDoneReceived() {
	if e.Side == SideClient {
		e.Status = Confirmed
	}
}

// InstallHandshakeKeys installs the Handshake encryption level and
// discards Initial keys and the Initial recovery space, per spec.md
// section 4.K.
func (e *Endpoint) InstallHandshakeKeys() {
	e.handshakeKeys.Installed = true
	e.initialKeys.Installed = false
	e.Initial = nil
}

// InstallOneRTTKeys installs the 1-RTT encryption level and discards
// Handshake keys and the Handshake recovery space.
func (e *Endpoint) InstallOneRTTKeys() {
	e.oneRTTKeys.Installed = true
	e.handshakeKeys.Installed = false
	e.Handshake = nil
}

// HasInitialKeys, HasHandshakeKeys and HasOneRTTKeys report whether the
// corresponding keys are currently installed.
func (e *Endpoint) HasInitialKeys() bool   { return e.initialKeys.Installed }
func (e *Endpoint) HasHandshakeKeys() bool { return e.handshakeKeys.Installed }
func (e *Endpoint) HasOneRTTKeys() bool    { return e.oneRTTKeys.Installed }

// RegisterStatelessResetToken adds a token this connection may later
// be identified by if the peer issues a stateless reset.
func (e *Endpoint) RegisterStatelessResetToken(token [16]byte) {
	e.StatelessResetTokens[token] = struct{}{}
}

// IsStatelessReset reports whether the trailing 16 bytes of a short
// packet that failed AEAD verification matches a known stateless-reset
// token for this connection.
func (e *Endpoint) IsStatelessReset(trailing [16]byte) bool {
	_, ok := e.StatelessResetTokens[trailing]
	return ok
}

// Close aggregates every close-triggering error this connection's
// stream and path layers reported, mirroring how a multi-causal
// shutdown (some streams reset, a path invalidated, a frame encoding
// error) is reported back to the caller as one error value.
func (e *Endpoint) Close(causes ...error) error {
	var merr *multierror.Error
	for _, c := range causes {
		if c != nil {
			merr = multierror.Append(merr, c)
		}
	}
	if e.Events != nil {
		e.Events.Publish(subscriber.KindConnectionClosed, merr.ErrorOrNil())
	}
	return merr.ErrorOrNil()
}
