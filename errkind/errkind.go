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

// Package errkind defines the error taxonomy used across the transport
// core. Every error raised by the core belongs to exactly one of the
// families below; the family determines how the error propagates
// (packet drop, connection close, stream reset, silent datagram drop).
package errkind

import "github.com/pkg/errors"

// Code is an RFC 9000 transport error code, or an application error code
// when Kind is Transport and the code carries ApplicationError.
type Code uint64

// Transport error codes from RFC 9000 section 20.1.
const (
	NoError                  Code = 0x00
	InternalError            Code = 0x01
	ConnectionRefused        Code = 0x02
	CodeFlowControlError     Code = 0x03
	CodeStreamLimitError     Code = 0x04
	CodeStreamStateError     Code = 0x05
	CodeFinalSizeError       Code = 0x06
	CodeFrameEncodingError   Code = 0x07
	CodeTransportParameterError Code = 0x08
	CodeConnectionIDLimitError  Code = 0x09
	ProtocolViolation        Code = 0x0a
	InvalidToken             Code = 0x0b
	ApplicationErrorCode     Code = 0x0c
	CryptoBufferExceeded     Code = 0x0d
	KeyUpdateError           Code = 0x0e
	AEADLimitReached         Code = 0x0f
	NoViablePath             Code = 0x10
	CryptoErrorBase          Code = 0x100 // CRYPTO_ERROR(AlertCode) = CryptoErrorBase + alert
)

// Kind classifies an error by how the engine must react to it.
type Kind int

const (
	// KindPacketProtection never reaches the wire; the packet is dropped.
	KindPacketProtection Kind = iota
	// KindTransport kills the connection with CONNECTION_CLOSE.
	KindTransport
	// KindCrypto kills the connection with CRYPTO_ERROR(alert).
	KindCrypto
	// KindMigration causes the triggering datagram to be dropped silently.
	KindMigration
	// KindChannel propagates to the calling task.
	KindChannel
)

func (k Kind) String() string {
	switch k {
	case KindPacketProtection:
		return "packet_protection"
	case KindTransport:
		return "transport"
	case KindCrypto:
		return "crypto"
	case KindMigration:
		return "migration"
	case KindChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// Error is the concrete error type raised throughout the core.
type Error struct {
	Kind Kind
	Code Code
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.Kind.String() + ": " + e.msg + ": " + e.err.Error()
	}
	return e.Kind.String() + ": " + e.msg
}

func (e *Error) Unwrap() error { return e.err }

func new(kind Kind, code Code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, msg: errors.Errorf(format, args...).Error()}
}

func wrap(kind Kind, code Code, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, msg: errors.Errorf(format, args...).Error(), err: err}
}

// PacketProtection errors, see spec.md section 7.
func DecryptError(format string, args ...any) *Error {
	return new(KindPacketProtection, NoError, format, args...)
}

func EncodeError(format string, args ...any) *Error {
	return new(KindPacketProtection, NoError, format, args...)
}

func EncryptError(format string, args ...any) *Error {
	return new(KindPacketProtection, NoError, format, args...)
}

func InternalPacketError(err error, format string, args ...any) *Error {
	return wrap(KindPacketProtection, InternalError, err, format, args...)
}

// Transport errors.
func ProtocolViolationError(format string, args ...any) *Error {
	return new(KindTransport, ProtocolViolation, format, args...)
}

func FrameEncodingError(format string, args ...any) *Error {
	return new(KindTransport, CodeFrameEncodingError, format, args...)
}

func FlowControlError(format string, args ...any) *Error {
	return new(KindTransport, CodeFlowControlError, format, args...)
}

func StreamLimitError(format string, args ...any) *Error {
	return new(KindTransport, CodeStreamLimitError, format, args...)
}

func StreamStateError(format string, args ...any) *Error {
	return new(KindTransport, CodeStreamStateError, format, args...)
}

func FinalSizeError(format string, args ...any) *Error {
	return new(KindTransport, CodeFinalSizeError, format, args...)
}

func ConnectionIDLimitError(format string, args ...any) *Error {
	return new(KindTransport, CodeConnectionIDLimitError, format, args...)
}

func TransportParamError(format string, args ...any) *Error {
	return new(KindTransport, CodeTransportParameterError, format, args...)
}

func ApplicationError(code Code, format string, args ...any) *Error {
	return new(KindTransport, code, format, args...)
}

// Crypto errors.
func HandshakeFailure(format string, args ...any) *Error {
	return new(KindCrypto, CryptoErrorBase, format, args...)
}

func DecryptFailure(format string, args ...any) *Error {
	return new(KindCrypto, CryptoErrorBase, format, args...)
}

func MissingExtension(format string, args ...any) *Error {
	return new(KindCrypto, CryptoErrorBase, format, args...)
}

// Migration errors.
func RejectedConnectionMigration() *Error {
	return new(KindMigration, NoViablePath, "rejected connection migration")
}

func InsufficientConnectionIDs() *Error {
	return new(KindMigration, NoViablePath, "insufficient connection ids for new path")
}

func PathLimitExceeded() *Error {
	return new(KindMigration, NoViablePath, "path limit exceeded")
}

// Channel errors.
var (
	ErrChannelClosed     = new(KindChannel, NoError, "channel closed")
	ErrChannelUnallocated = new(KindChannel, NoError, "channel unallocated")
)
