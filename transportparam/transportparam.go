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

// Package transportparam encodes and decodes the QUIC transport
// parameters exchanged during the TLS handshake (spec.md section 6).
package transportparam

import (
	"github.com/quicd/quicd/errkind"
	"github.com/quicd/quicd/varint"
)

// ID is a transport parameter's registered identifier (RFC 9000
// section 18.2).
type ID uint64

const (
	IDOriginalDestinationConnectionID ID = 0x00
	IDMaxIdleTimeout                  ID = 0x01
	IDStatelessResetToken             ID = 0x02
	IDMaxUDPPayloadSize               ID = 0x03
	IDInitialMaxData                  ID = 0x04
	IDInitialMaxStreamDataBidiLocal   ID = 0x05
	IDInitialMaxStreamDataBidiRemote  ID = 0x06
	IDInitialMaxStreamDataUni         ID = 0x07
	IDInitialMaxStreamsBidi           ID = 0x08
	IDInitialMaxStreamsUni            ID = 0x09
	IDAckDelayExponent                ID = 0x0a
	IDMaxAckDelay                      ID = 0x0b
	IDDisableActiveMigration          ID = 0x0c
	IDActiveConnectionIDLimit         ID = 0x0e
	IDInitialSourceConnectionID       ID = 0x0f
	IDRetrySourceConnectionID         ID = 0x10
)

// Defaults from spec.md section 6.
const (
	DefaultAckDelayExponent    = 3
	DefaultMaxAckDelayMillis   = 25
	MaxAckDelayExponent        = 20
	MaxAckDelayMillis          = 1 << 14
	MinActiveConnectionIDLimit = 2
)

// Set is the decoded collection of transport parameters a peer sent.
// Decode seeds it with Default(), so a field holding its default value
// cannot be told apart from one the peer sent explicitly; only
// retry_source_connection_id records whether it is present.
type Set struct {
	OriginalDestinationConnectionID []byte
	MaxIdleTimeoutMillis            uint64
	StatelessResetToken             []byte
	MaxUDPPayloadSize               uint64
	InitialMaxData                  uint64
	InitialMaxStreamDataBidiLocal   uint64
	InitialMaxStreamDataBidiRemote  uint64
	InitialMaxStreamDataUni         uint64
	InitialMaxStreamsBidi           uint64
	InitialMaxStreamsUni            uint64
	AckDelayExponent                uint64
	MaxAckDelayMillis               uint64
	DisableActiveMigration          bool
	ActiveConnectionIDLimit         uint64
	InitialSourceConnectionID       []byte
	RetrySourceConnectionID         []byte
	hasRetrySourceConnectionID      bool
}

// Default returns a Set populated with every RFC 9000 default value.
func Default() Set {
	return Set{
		MaxUDPPayloadSize:        65527,
		AckDelayExponent:         DefaultAckDelayExponent,
		MaxAckDelayMillis:        DefaultMaxAckDelayMillis,
		ActiveConnectionIDLimit:  MinActiveConnectionIDLimit,
	}
}

func putBytesParam(dst []byte, id ID, value []byte) []byte {
	dst, _ = varint.Encode(dst, uint64(id))
	dst, _ = varint.Encode(dst, uint64(len(value)))
	return append(dst, value...)
}

func putVarintParam(dst []byte, id ID, value uint64) []byte {
	var body []byte
	body, _ = varint.Encode(body, value)
	return putBytesParam(dst, id, body)
}

func putFlagParam(dst []byte, id ID) []byte {
	return putBytesParam(dst, id, nil)
}

// Encode serializes s as a sequence of (id, length, value) tuples, per
// RFC 9000 section 18.1. The connection ids, stateless_reset_token,
// max_idle_timeout and disable_active_migration are written only when
// set; every other parameter (max_udp_payload_size, initial_max_*,
// ack_delay_exponent, max_ack_delay, active_connection_id_limit) is
// always written, even at its default value.
func Encode(s Set) []byte {
	var dst []byte

	if len(s.OriginalDestinationConnectionID) > 0 {
		dst = putBytesParam(dst, IDOriginalDestinationConnectionID, s.OriginalDestinationConnectionID)
	}
	if s.MaxIdleTimeoutMillis > 0 {
		dst = putVarintParam(dst, IDMaxIdleTimeout, s.MaxIdleTimeoutMillis)
	}
	if len(s.StatelessResetToken) == 16 {
		dst = putBytesParam(dst, IDStatelessResetToken, s.StatelessResetToken)
	}
	dst = putVarintParam(dst, IDMaxUDPPayloadSize, s.MaxUDPPayloadSize)
	dst = putVarintParam(dst, IDInitialMaxData, s.InitialMaxData)
	dst = putVarintParam(dst, IDInitialMaxStreamDataBidiLocal, s.InitialMaxStreamDataBidiLocal)
	dst = putVarintParam(dst, IDInitialMaxStreamDataBidiRemote, s.InitialMaxStreamDataBidiRemote)
	dst = putVarintParam(dst, IDInitialMaxStreamDataUni, s.InitialMaxStreamDataUni)
	dst = putVarintParam(dst, IDInitialMaxStreamsBidi, s.InitialMaxStreamsBidi)
	dst = putVarintParam(dst, IDInitialMaxStreamsUni, s.InitialMaxStreamsUni)
	dst = putVarintParam(dst, IDAckDelayExponent, s.AckDelayExponent)
	dst = putVarintParam(dst, IDMaxAckDelay, s.MaxAckDelayMillis)
	if s.DisableActiveMigration {
		dst = putFlagParam(dst, IDDisableActiveMigration)
	}
	dst = putVarintParam(dst, IDActiveConnectionIDLimit, s.ActiveConnectionIDLimit)
	if len(s.InitialSourceConnectionID) > 0 {
		dst = putBytesParam(dst, IDInitialSourceConnectionID, s.InitialSourceConnectionID)
	}
	if s.hasRetrySourceConnectionID {
		dst = putBytesParam(dst, IDRetrySourceConnectionID, s.RetrySourceConnectionID)
	}
	return dst
}

// SetRetrySourceConnectionID sets the retry_source_connection_id
// parameter, only present when a Retry packet was issued.
func (s *Set) SetRetrySourceConnectionID(cid []byte) {
	s.RetrySourceConnectionID = cid
	s.hasRetrySourceConnectionID = true
}

// Decode parses a peer's transport parameter block into a Set seeded
// with RFC 9000 defaults, validating the bounded fields (spec.md
// section 6: ack_delay_exponent <= 20, max_ack_delay < 2^14,
// active_connection_id_limit >= 2).
func Decode(b []byte) (Set, error) {
	s := Default()

	for len(b) > 0 {
		id, n, err := varint.Decode(b)
		if err != nil {
			return s, err
		}
		b = b[n:]

		length, n, err := varint.Decode(b)
		if err != nil {
			return s, err
		}
		b = b[n:]
		if uint64(len(b)) < length {
			return s, errkind.TransportParamError("transportparam: truncated value for id 0x%x", id)
		}
		value := b[:length]
		b = b[length:]

		if err := s.apply(ID(id), value); err != nil {
			return s, err
		}
	}
	return s, nil
}

func decodeVarintValue(value []byte) (uint64, error) {
	v, n, err := varint.Decode(value)
	if err != nil {
		return 0, err
	}
	if n != len(value) {
		return 0, errkind.TransportParamError("transportparam: trailing bytes after varint value")
	}
	return v, nil
}

func (s *Set) apply(id ID, value []byte) error {
	switch id {
	case IDOriginalDestinationConnectionID:
		s.OriginalDestinationConnectionID = append([]byte{}, value...)
	case IDMaxIdleTimeout:
		v, err := decodeVarintValue(value)
		if err != nil {
			return err
		}
		s.MaxIdleTimeoutMillis = v
	case IDStatelessResetToken:
		if len(value) != 16 {
			return errkind.TransportParamError("transportparam: stateless_reset_token must be 16 bytes")
		}
		s.StatelessResetToken = append([]byte{}, value...)
	case IDMaxUDPPayloadSize:
		v, err := decodeVarintValue(value)
		if err != nil {
			return err
		}
		s.MaxUDPPayloadSize = v
	case IDInitialMaxData:
		v, err := decodeVarintValue(value)
		if err != nil {
			return err
		}
		s.InitialMaxData = v
	case IDInitialMaxStreamDataBidiLocal:
		v, err := decodeVarintValue(value)
		if err != nil {
			return err
		}
		s.InitialMaxStreamDataBidiLocal = v
	case IDInitialMaxStreamDataBidiRemote:
		v, err := decodeVarintValue(value)
		if err != nil {
			return err
		}
		s.InitialMaxStreamDataBidiRemote = v
	case IDInitialMaxStreamDataUni:
		v, err := decodeVarintValue(value)
		if err != nil {
			return err
		}
		s.InitialMaxStreamDataUni = v
	case IDInitialMaxStreamsBidi:
		v, err := decodeVarintValue(value)
		if err != nil {
			return err
		}
		s.InitialMaxStreamsBidi = v
	case IDInitialMaxStreamsUni:
		v, err := decodeVarintValue(value)
		if err != nil {
			return err
		}
		s.InitialMaxStreamsUni = v
	case IDAckDelayExponent:
		v, err := decodeVarintValue(value)
		if err != nil {
			return err
		}
		if v > MaxAckDelayExponent {
			return errkind.TransportParamError("transportparam: ack_delay_exponent %d exceeds maximum", v)
		}
		s.AckDelayExponent = v
	case IDMaxAckDelay:
		v, err := decodeVarintValue(value)
		if err != nil {
			return err
		}
		if v >= MaxAckDelayMillis {
			return errkind.TransportParamError("transportparam: max_ack_delay %d exceeds maximum", v)
		}
		s.MaxAckDelayMillis = v
	case IDDisableActiveMigration:
		if len(value) != 0 {
			return errkind.TransportParamError("transportparam: disable_active_migration must be empty")
		}
		s.DisableActiveMigration = true
	case IDActiveConnectionIDLimit:
		v, err := decodeVarintValue(value)
		if err != nil {
			return err
		}
		if v < MinActiveConnectionIDLimit {
			return errkind.TransportParamError("transportparam: active_connection_id_limit %d below minimum", v)
		}
		s.ActiveConnectionIDLimit = v
	case IDInitialSourceConnectionID:
		s.InitialSourceConnectionID = append([]byte{}, value...)
	case IDRetrySourceConnectionID:
		s.SetRetrySourceConnectionID(append([]byte{}, value...))
	default:
		// Unrecognized transport parameters MUST be ignored (RFC 9000
		// section 7.4.2), not treated as a protocol violation.
	}
	return nil
}
