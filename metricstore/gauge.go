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

package metricstore

import (
	"io"
	"sync"
	"time"

	"github.com/prometheus/prometheus/prompb"

	"github.com/quicd/quicd/internal/fasttime"
	"github.com/quicd/quicd/internal/labels"
)

type gaugeSample struct {
	val     float64
	lbs     labels.Labels
	updated int64
}

// Gauge is a point-in-time value tracked per label set, e.g. BBR's
// congestion window or a path's bytes-in-flight. Samples not updated
// within expired are dropped by RemoveExpired so a torn-down
// connection's label set does not linger forever.
type Gauge struct {
	mut     sync.RWMutex
	name    string
	samples map[uint64]*gaugeSample
	expired time.Duration
}

func NewGauge(name string, expired time.Duration) *Gauge {
	return &Gauge{name: name, expired: expired, samples: make(map[uint64]*gaugeSample)}
}

// Set overwrites the current value for lbs, unlike Counter.Add which
// accumulates.
func (g *Gauge) Set(v float64, lbs labels.Labels) {
	hash := lbs.Hash()

	g.mut.Lock()
	defer g.mut.Unlock()

	s, ok := g.samples[hash]
	if !ok {
		s = &gaugeSample{lbs: lbs}
		g.samples[hash] = s
	}
	s.val = v
	s.updated = fasttime.UnixTimestamp()
}

func (g *Gauge) RemoveExpired() {
	g.mut.Lock()
	defer g.mut.Unlock()

	now := fasttime.UnixTimestamp()
	sec := int64(g.expired.Seconds())
	for hash, s := range g.samples {
		if now-s.updated >= sec {
			delete(g.samples, hash)
		}
	}
}

func (g *Gauge) WritePrometheus(w io.Writer) {
	g.mut.RLock()
	defer g.mut.RUnlock()
	for _, s := range g.samples {
		WritePrometheus(w, ConstMetric{Name: g.name, Labels: s.lbs, Value: s.val})
	}
}

func (g *Gauge) PrompbSeriess() []prompb.TimeSeries {
	g.mut.RLock()
	defer g.mut.RUnlock()

	var seriess []prompb.TimeSeries
	for _, s := range g.samples {
		seriess = append(seriess, ToPrompbTimeSeries(ConstMetric{Name: g.name, Labels: s.lbs, Value: s.val})...)
	}
	return seriess
}
