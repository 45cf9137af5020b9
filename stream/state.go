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

// Package stream implements per-stream send/receive state, flow
// control and lifecycle (spec.md section 4.F), plus the stream-id
// minting and concurrency-limit controller (section 4.G).
package stream

// SendState is the send-side lifecycle of a stream, per spec.md
// section 3: Ready -> Send -> DataSent -> DataRecvd | ResetSent -> ResetRecvd.
type SendState int

const (
	SendReady SendState = iota
	SendSending
	SendDataSent
	SendDataRecvd
	SendResetSent
	SendResetRecvd
)

func (s SendState) String() string {
	switch s {
	case SendReady:
		return "ready"
	case SendSending:
		return "send"
	case SendDataSent:
		return "data_sent"
	case SendDataRecvd:
		return "data_recvd"
	case SendResetSent:
		return "reset_sent"
	case SendResetRecvd:
		return "reset_recvd"
	default:
		return "unknown"
	}
}

// RecvState is the receive-side lifecycle, per spec.md section 3:
// Recv -> SizeKnown -> DataRecvd -> DataRead | ResetRecvd -> ResetRead.
type RecvState int

const (
	RecvRecv RecvState = iota
	RecvSizeKnown
	RecvDataRecvd
	RecvDataRead
	RecvResetRecvd
	RecvResetRead
)

func (s RecvState) String() string {
	switch s {
	case RecvRecv:
		return "recv"
	case RecvSizeKnown:
		return "size_known"
	case RecvDataRecvd:
		return "data_recvd"
	case RecvDataRead:
		return "data_read"
	case RecvResetRecvd:
		return "reset_recvd"
	case RecvResetRead:
		return "reset_read"
	default:
		return "unknown"
	}
}
