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

// Package fasttime provides a coarse, cheap-to-read clock: a
// background goroutine samples time.Now once a second into an atomic,
// and readers load it without a syscall. The dc path-secret map's
// cleaner reads this clock, rather than time.Now, to age entries.
package fasttime

import (
	"sync/atomic"
	"time"
)

func init() {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for tm := range ticker.C {
			atomic.StoreInt64(&currentTimestamp, tm.Unix())
		}
	}()
}

var currentTimestamp = time.Now().Unix()

// UnixTimestamp returns the current second-granularity Unix timestamp.
func UnixTimestamp() int64 {
	return atomic.LoadInt64(&currentTimestamp)
}
