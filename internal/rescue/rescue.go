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

// Package rescue recovers the RX router's per-packet dispatch loop
// from a panic in connection or frame-handling code, so one malformed
// packet or a bug in a single connection cannot take the whole
// listener down.
package rescue

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/quicd/quicd/common"
	"github.com/quicd/quicd/logger"
)

var panicTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: common.App,
		Name:      "panic_total",
		Help:      "total number of recovered panics in packet dispatch",
	},
)

// PanicHandlers runs, in order, whenever HandleCrash recovers a panic.
var PanicHandlers = []func(any){
	incPanicCounter,
	logPanic,
}

func incPanicCounter(_ any) {
	panicTotal.Inc()
}

func logPanic(r any) {
	const size = 64 << 10
	stacktrace := make([]byte, size)
	stacktrace = stacktrace[:runtime.Stack(stacktrace, false)]
	if _, ok := r.(string); ok {
		logger.Errorf("recovered panic: %s\n%s", r, stacktrace)
	} else {
		logger.Errorf("recovered panic: %#v (%v)\n%s", r, r, stacktrace)
	}
}

// HandleCrash should be deferred at the top of any goroutine dispatching
// untrusted per-packet work.
func HandleCrash() {
	if r := recover(); r != nil {
		for _, fn := range PanicHandlers {
			fn(r)
		}
	}
}
