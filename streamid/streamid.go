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

// Package streamid implements stream-id arithmetic from spec.md
// section 3: a 62-bit value whose two low bits encode the initiator
// (client/server) and stream type (bidi/uni).
package streamid

// Initiator identifies which endpoint opened a stream.
type Initiator uint8

const (
	Client Initiator = 0
	Server Initiator = 1
)

// Type identifies whether a stream is bidirectional or unidirectional.
type Type uint8

const (
	Bidi Type = 0
	Uni  Type = 1
)

func (t Type) String() string {
	if t == Uni {
		return "uni"
	}
	return "bidi"
}

// ID is a stream identifier. Initial ids are 0,1,2,3 for
// {client-bidi, server-bidi, client-uni, server-uni}; successors of
// the same (initiator, type) step by 4.
type ID uint64

// New builds the nth (zero-based) stream id of the given initiator and type.
func New(initiator Initiator, typ Type, n uint64) ID {
	return ID(n*4 + uint64(initiator)*1 + uint64(typ)*2)
}

func (id ID) Initiator() Initiator {
	if id&0x1 != 0 {
		return Server
	}
	return Client
}

func (id ID) Type() Type {
	if id&0x2 != 0 {
		return Uni
	}
	return Bidi
}

// Index returns the zero-based ordinal of id among streams sharing its
// (Initiator, Type).
func (id ID) Index() uint64 {
	return uint64(id) / 4
}

// NextOfType returns the next stream id after id with the same
// initiator and type.
func (id ID) NextOfType() ID {
	return id + 4
}

// InitiatedBy reports whether id was opened by the given initiator.
func (id ID) InitiatedBy(who Initiator) bool {
	return id.Initiator() == who
}
