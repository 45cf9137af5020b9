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

// Package common holds the small set of types shared across package
// boundaries: the process identity used to namespace metrics, and the
// network addressing types the path manager and RX router exchange.
package common

import (
	"fmt"
	"net/netip"
)

// App namespaces every metric and log line emitted by this process.
const App = "quicd"

// Tuple is the 4-tuple a path is identified by.
type Tuple struct {
	Local  netip.AddrPort
	Remote netip.AddrPort
}

func (t Tuple) String() string {
	return fmt.Sprintf("%s<->%s", t.Local, t.Remote)
}

// Reversed returns the tuple as seen from the peer.
func (t Tuple) Reversed() Tuple {
	return Tuple{Local: t.Remote, Remote: t.Local}
}
