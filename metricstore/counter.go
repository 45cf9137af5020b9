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

type counterSample struct {
	val     float64
	lbs     labels.Labels
	updated int64
}

// Counter is a monotonically accumulated value per label set, e.g.
// packets lost or dc map entries retired.
type Counter struct {
	mut     sync.RWMutex
	name    string
	samples map[uint64]*counterSample
	expired time.Duration
}

func NewCounter(name string, expired time.Duration) *Counter {
	return &Counter{name: name, expired: expired, samples: make(map[uint64]*counterSample)}
}

func (c *Counter) Inc(lbs labels.Labels) { c.Add(1, lbs) }

func (c *Counter) Add(v float64, lbs labels.Labels) {
	hash := lbs.Hash()

	c.mut.Lock()
	defer c.mut.Unlock()

	s, ok := c.samples[hash]
	if !ok {
		s = &counterSample{lbs: lbs}
		c.samples[hash] = s
	}
	s.val += v
	s.updated = fasttime.UnixTimestamp()
}

func (c *Counter) RemoveExpired() {
	c.mut.Lock()
	defer c.mut.Unlock()

	now := fasttime.UnixTimestamp()
	sec := int64(c.expired.Seconds())
	for hash, s := range c.samples {
		if now-s.updated >= sec {
			delete(c.samples, hash)
		}
	}
}

func (c *Counter) WritePrometheus(w io.Writer) {
	c.mut.RLock()
	defer c.mut.RUnlock()
	for _, s := range c.samples {
		WritePrometheus(w, ConstMetric{Name: c.name, Labels: s.lbs, Value: s.val})
	}
}

func (c *Counter) PrompbSeriess() []prompb.TimeSeries {
	c.mut.RLock()
	defer c.mut.RUnlock()

	var seriess []prompb.TimeSeries
	for _, s := range c.samples {
		seriess = append(seriess, ToPrompbTimeSeries(ConstMetric{Name: c.name, Labels: s.lbs, Value: s.val})...)
	}
	return seriess
}
