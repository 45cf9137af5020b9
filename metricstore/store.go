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

// Package metricstore is a windowed in-process metrics set, fed by
// subscriber events through Collector (packet lost, dc map evicted,
// connection opened/closed, path validated, handshake confirmed, each
// folded into a counter) and exported both as live Prometheus
// gauges/counters and as periodic prompb remote-write batches. There is
// no histogram type: every signal stored here is a value or a count,
// not a latency distribution.
package metricstore

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/prometheus/prompb"

	"github.com/quicd/quicd/confengine"
	"github.com/quicd/quicd/internal/fasttime"
	"github.com/quicd/quicd/internal/labels"
)

// Model discriminates a ConstMetric's aggregation semantics.
type Model uint8

const (
	ModelCounter Model = iota
	ModelGauge
)

// ConstMetric is one named, labeled sample applied to the store.
type ConstMetric struct {
	Model  Model
	Name   string
	Labels labels.Labels
	Value  float64
}

// Config is the metricsStorage section of the endpoint's configuration.
type Config struct {
	Enabled bool          `config:"enabled"`
	Expired time.Duration `config:"expired"`
}

// Store is a named set of Counters and Gauges, periodically swept for
// label sets that stopped being updated.
type Store struct {
	mut      sync.RWMutex
	expired  time.Duration
	counters map[string]*Counter
	gauges   map[string]*Gauge
	done     chan struct{}
}

// New decodes the "metricsStorage" config section and constructs a
// Store. It returns a nil Store (not an error) when disabled.
func New(conf *confengine.Config) (*Store, error) {
	var config Config
	if err := conf.UnpackChild("metricsStorage", &config); err != nil {
		return nil, err
	}
	if !config.Enabled {
		return nil, nil
	}
	if config.Expired <= 0 {
		config.Expired = 5 * time.Minute
	}

	s := newStore(config.Expired)
	go s.gc()
	return s, nil
}

func newStore(expired time.Duration) *Store {
	return &Store{
		expired:  expired,
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		done:     make(chan struct{}),
	}
}

// Close stops the background expiry sweep.
func (s *Store) Close() { close(s.done) }

func (s *Store) getOrCreateCounter(name string) *Counter {
	s.mut.RLock()
	if inst, ok := s.counters[name]; ok {
		s.mut.RUnlock()
		return inst
	}
	s.mut.RUnlock()

	s.mut.Lock()
	defer s.mut.Unlock()
	if inst, ok := s.counters[name]; ok {
		return inst
	}
	s.counters[name] = NewCounter(name, s.expired)
	return s.counters[name]
}

func (s *Store) getOrCreateGauge(name string) *Gauge {
	s.mut.RLock()
	if inst, ok := s.gauges[name]; ok {
		s.mut.RUnlock()
		return inst
	}
	s.mut.RUnlock()

	s.mut.Lock()
	defer s.mut.Unlock()
	if inst, ok := s.gauges[name]; ok {
		return inst
	}
	s.gauges[name] = NewGauge(name, s.expired)
	return s.gauges[name]
}

// Update applies a batch of samples, matching the teacher's
// ConstMetric-batch update call shape.
func (s *Store) Update(cms ...ConstMetric) {
	for _, cm := range cms {
		switch cm.Model {
		case ModelCounter:
			s.getOrCreateCounter(cm.Name).Add(cm.Value, cm.Labels)
		case ModelGauge:
			s.getOrCreateGauge(cm.Name).Set(cm.Value, cm.Labels)
		}
	}
}

func (s *Store) gc() {
	interval := s.expired / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.done:
			return
		}
	}
}

func (s *Store) removeExpired() {
	s.mut.RLock()
	defer s.mut.RUnlock()
	for _, c := range s.counters {
		c.RemoveExpired()
	}
	for _, g := range s.gauges {
		g.RemoveExpired()
	}
}

// WritePrometheus renders every tracked sample in text exposition
// format.
func (s *Store) WritePrometheus(w io.Writer) {
	s.mut.RLock()
	defer s.mut.RUnlock()
	for _, c := range s.counters {
		c.WritePrometheus(w)
	}
	for _, g := range s.gauges {
		g.WritePrometheus(w)
	}
}

// WriteRequest snapshots every tracked sample as a prompb remote-write
// request, timestamped at the current fasttime second.
func (s *Store) WriteRequest() *prompb.WriteRequest {
	s.mut.RLock()
	defer s.mut.RUnlock()

	var seriess []prompb.TimeSeries
	for _, c := range s.counters {
		seriess = append(seriess, c.PrompbSeriess()...)
	}
	for _, g := range s.gauges {
		seriess = append(seriess, g.PrompbSeriess()...)
	}
	return &prompb.WriteRequest{Timeseries: seriess}
}

// WritePrometheus renders a single sample batch without a Store; Counter
// and Gauge use it to render their samples.
func WritePrometheus(w io.Writer, metrics ...ConstMetric) {
	for _, metric := range metrics {
		fmt.Fprint(w, metric.Name, "{")
		for i, label := range metric.Labels {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `%s="%s"`, label.Name, label.Value)
		}
		fmt.Fprintf(w, "} %f\n", metric.Value)
	}
}

// ToPrompbTimeSeries converts a sample batch to prompb's wire shape.
func ToPrompbTimeSeries(metrics ...ConstMetric) []prompb.TimeSeries {
	ts := fasttime.UnixTimestamp() * 1000
	seriess := make([]prompb.TimeSeries, 0, len(metrics))
	for _, metric := range metrics {
		lbs := make([]prompb.Label, 0, len(metric.Labels)+1)
		lbs = append(lbs, prompb.Label{Name: "__name__", Value: metric.Name})
		for _, label := range metric.Labels {
			lbs = append(lbs, prompb.Label{Name: label.Name, Value: label.Value})
		}
		seriess = append(seriess, prompb.TimeSeries{
			Labels:  lbs,
			Samples: []prompb.Sample{{Value: metric.Value, Timestamp: ts}},
		})
	}
	return seriess
}
